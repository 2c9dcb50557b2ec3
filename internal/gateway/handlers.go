package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/indexbridge/z3950gateway/internal/config"
	"github.com/indexbridge/z3950gateway/internal/diag"
	"github.com/indexbridge/z3950gateway/internal/query"
	"github.com/indexbridge/z3950gateway/internal/record"
	"github.com/indexbridge/z3950gateway/internal/session"
	"github.com/indexbridge/z3950gateway/internal/sortplan"
	"github.com/indexbridge/z3950gateway/internal/zoom"
)

// InitRequest carries the credentials and target config presented at
// Init (spec §4.1/§6).
type InitRequest struct {
	Username string
	Password string
	Config   config.GatewayConfig // re-read snapshot per spec §5
}

type InitResponse struct {
	Accepted bool
}

// Init authenticates (if configured) and captures the session's config
// snapshot (spec §5: "re-read at each Init, so ongoing sessions continue
// with the snapshot they captured").
func Init(ctx context.Context, sess *session.Session, req InitRequest) (InitResponse, *diag.Error) {
	if req.Config.Authentication != "" {
		if derr := authenticate(ctx, req.Config.Authentication, req.Username, req.Password); derr != nil {
			slog.Warn("init rejected", "conn_id", sess.ConnID, "user", req.Username, "error", derr.AddInfo)
			return InitResponse{Accepted: false}, derr
		}
	}
	sess.Config = req.Config
	sess.Username = req.Username
	sess.Password = req.Password
	slog.Info("init accepted", "conn_id", sess.ConnID, "user", req.Username)
	return InitResponse{Accepted: true}, nil
}

// SearchRequest is a decoded Z39.50 SearchRequest (spec §4.4).
type SearchRequest struct {
	DatabaseNames []string
	SetName       string
	Query         query.Node
}

type SearchResponse struct {
	Hits    int
	SetName string
}

// Search compiles the RPN tree per the resolved database's dialect,
// obtains/creates a connection, issues the search, and publishes a new
// ResultSet under SETNAME (spec §4.4).
func Search(ctx context.Context, sess *session.Session, req SearchRequest) (SearchResponse, *diag.Error) {
	db, derr := resolveDatabase(sess.Config, req.DatabaseNames)
	if derr != nil {
		slog.Warn("search failed", "conn_id", sess.ConnID, "databases", req.DatabaseNames, "error", derr.AddInfo)
		return SearchResponse{}, derr
	}
	if db.NoNamedResultSets && req.SetName != "default" {
		slog.Warn("search rejected", "conn_id", sess.ConnID, "db", db.Name, "set", req.SetName)
		return SearchResponse{}, diag.New(diag.NonDefaultSetNotAllowed, req.SetName)
	}

	queryText, derr := compileQuery(sess, db, req.Query)
	if derr != nil {
		slog.Warn("search failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr.AddInfo)
		return SearchResponse{}, derr
	}

	conn, derr := sess.Pool().Get(ctx, db.Name, db, sess.Username, sess.Password)
	if derr != nil {
		slog.Error("search failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr)
		return SearchResponse{}, translate(derr)
	}
	conn.SetOption("presentChunk", "0")

	result, derr := conn.Search(ctx, queryText)
	if derr != nil {
		slog.Error("search failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr)
		return SearchResponse{}, translate(derr)
	}

	sess.Bind(req.SetName, &session.ResultSet{
		DBName:   db.Name,
		DBConfig: db,
		SetName:  req.SetName,
		QText:    queryText,
		RSID:     result.RSID,
		Hits:     result.Hits,
	})
	slog.Info("search processed", "conn_id", sess.ConnID, "db", db.Name, "set", req.SetName, "hits", result.Hits)
	return SearchResponse{Hits: result.Hits, SetName: req.SetName}, nil
}

// compileQuery dispatches to the CQL, Solr, or PQF compiler per the
// database's search.querytype (spec §4.3/§4.4).
func compileQuery(sess *session.Session, db config.DatabaseConfig, n query.Node) (string, *diag.Error) {
	lookup := session.ResultSetLookup{Sess: sess}
	switch db.Search.QueryType {
	case "cql":
		return query.CompileCQL(n, db.Search.UseMap(), lookup)
	case "solr":
		return query.CompileSolr(n, db.Search.UseMap(), lookup)
	default:
		return query.CompilePQF(n)
	}
}

// PresentRequest is a decoded Z39.50 PresentRequest (spec §4.5).
type PresentRequest struct {
	SetName string
	Start   int
	Number  int
}

type PresentResponse struct{}

// Present validates that [START, START+NUMBER) lies within the
// result-set's reported hit count (spec §4.5: "out-of-range → 13").
func Present(sess *session.Session, req PresentRequest) (PresentResponse, *diag.Error) {
	rs, ok := sess.ResultSet(req.SetName)
	if !ok {
		slog.Warn("present failed", "conn_id", sess.ConnID, "set", req.SetName, "error", "no such result set")
		return PresentResponse{}, diag.New(diag.ResultSetDoesNotExist, req.SetName)
	}
	if req.Start < 1 || req.Start+req.Number-1 > rs.Hits {
		slog.Warn("present out of range", "conn_id", sess.ConnID, "db", rs.DBName, "set", req.SetName, "start", req.Start, "number", req.Number, "hits", rs.Hits)
		return PresentResponse{}, diag.New(diag.PresentOutOfRange, strconv.Itoa(req.Start))
	}
	rs.Cursor = req.Start
	slog.Info("present processed", "conn_id", sess.ConnID, "db", rs.DBName, "set", req.SetName, "start", req.Start, "number", req.Number)
	return PresentResponse{}, nil
}

// FetchRequest is a decoded single-record fetch within a result set
// (spec §4.5).
type FetchRequest struct {
	SetName      string
	Offset       int
	Schema       string
	RecordSyntax string // "usmarc", "grs-1", "sutrs", or "xml"
}

type FetchResponse struct {
	Data   []byte
	Syntax string
}

// Fetch retrieves and converts a single record (spec §4.5).
func Fetch(ctx context.Context, sess *session.Session, req FetchRequest) (FetchResponse, *diag.Error) {
	rs, ok := sess.ResultSet(req.SetName)
	if !ok {
		slog.Warn("fetch failed", "conn_id", sess.ConnID, "set", req.SetName, "error", "no such result set")
		return FetchResponse{}, diag.New(diag.ResultSetDoesNotExist, req.SetName)
	}
	conn, derr := sess.Pool().Get(ctx, rs.DBName, rs.DBConfig, sess.Username, sess.Password)
	if derr != nil {
		slog.Error("fetch failed", "conn_id", sess.ConnID, "db", rs.DBName, "error", derr)
		return FetchResponse{}, translate(derr)
	}

	usingSchema := false
	if req.Schema != "" {
		if sc, ok := rs.DBConfig.Schema[req.Schema]; ok {
			usingSchema = true
			conn.SetOption("schema", sc.SRU)
			charset := "utf8"
			if rs.DBConfig.Charset != "" {
				charset += "," + rs.DBConfig.Charset
			}
			conn.SetOption("charset", charset)
		}
	}

	raw, derr := conn.Record(ctx, req.Offset)
	if derr != nil {
		slog.Error("fetch failed", "conn_id", sess.ConnID, "db", rs.DBName, "offset", req.Offset, "error", derr)
		return FetchResponse{}, translate(derr)
	}
	slog.Info("fetch processed", "conn_id", sess.ConnID, "db", rs.DBName, "set", req.SetName, "offset", req.Offset, "syntax", req.RecordSyntax)

	if usingSchema {
		inner, err := record.ExtractEnvelope(raw, rs.DBConfig.Charset)
		if err != nil {
			return FetchResponse{}, translate(diag.FromZOOM(err.Error()))
		}
		data, err := record.BuildMARC21(inner, []config.FieldSpec{{Content: "full"}}, rs.DBConfig.Charset)
		if err != nil {
			return FetchResponse{}, translate(diag.FromZOOM(err.Error()))
		}
		return FetchResponse{Data: data, Syntax: "usmarc"}, nil
	}

	inner, err := record.ExtractEnvelope(raw, rs.DBConfig.Charset)
	if err != nil {
		return FetchResponse{}, translate(diag.FromZOOM(err.Error()))
	}
	return dispatchSyntax(inner, rs.DBConfig, req.RecordSyntax)
}

// dispatchSyntax implements spec §4.7's per-syntax conversion, including
// the 238 "unsupported syntax" failure with its sorted supported list.
func dispatchSyntax(inner []byte, db config.DatabaseConfig, syntax string) (FetchResponse, *diag.Error) {
	switch syntax {
	case "xml", "":
		return FetchResponse{Data: inner, Syntax: "xml"}, nil
	case "usmarc":
		if len(db.USMARCRecord) == 0 {
			return unsupportedSyntax(db)
		}
		data, err := record.BuildMARC21(inner, db.USMARCRecord, db.Charset)
		if err != nil {
			return FetchResponse{}, translate(diag.FromZOOM(err.Error()))
		}
		if db.ExplicitAvailability {
			data = record.PatchExplicitAvailability(data)
		}
		return FetchResponse{Data: data, Syntax: "usmarc"}, nil
	case "grs-1":
		if len(db.GRS1Record) == 0 {
			return unsupportedSyntax(db)
		}
		text, err := record.BuildGRS1(inner, db.GRS1Record, db.Charset)
		if err != nil {
			return FetchResponse{}, translate(diag.FromZOOM(err.Error()))
		}
		return FetchResponse{Data: []byte(text), Syntax: "grs-1"}, nil
	case "sutrs":
		if len(db.SUTRSRecord) == 0 {
			return unsupportedSyntax(db)
		}
		text, err := record.BuildSUTRS(inner, db.Charset)
		if err != nil {
			return FetchResponse{}, translate(diag.FromZOOM(err.Error()))
		}
		return FetchResponse{Data: []byte(text), Syntax: "sutrs"}, nil
	default:
		return unsupportedSyntax(db)
	}
}

func unsupportedSyntax(db config.DatabaseConfig) (FetchResponse, *diag.Error) {
	return FetchResponse{}, diag.New(diag.UnsupportedRecordSyntax, strings.Join(db.SupportedSyntaxes(), ","))
}

// sruAtLeast12 compares a "major.minor" SRU version string against 1.2,
// per spec §4.8's "if the back-end advertises sru_version ≥ 1.2" rule.
func sruAtLeast12(v string) bool {
	major, minor, ok := strings.Cut(v, ".")
	if !ok {
		return false
	}
	maj, err1 := strconv.Atoi(major)
	min, err2 := strconv.Atoi(minor)
	if err1 != nil || err2 != nil {
		return false
	}
	return maj > 1 || (maj == 1 && min >= 2)
}

// ScanRequest is a decoded Z39.50 ScanRequest (spec §4.6).
type ScanRequest struct {
	DatabaseNames []string
	Query         query.Node
	Number        int
	Position      int
	StepSize      int
}

type ScanResponse struct {
	Entries []zoom.ScanEntry
	Partial bool
}

// Scan compiles the RPN tree and delegates to the back-end's Scan
// service (spec §4.6).
func Scan(ctx context.Context, sess *session.Session, req ScanRequest) (ScanResponse, *diag.Error) {
	db, derr := resolveDatabase(sess.Config, req.DatabaseNames)
	if derr != nil {
		slog.Warn("scan failed", "conn_id", sess.ConnID, "databases", req.DatabaseNames, "error", derr.AddInfo)
		return ScanResponse{}, derr
	}
	queryText, derr := compileQuery(sess, db, req.Query)
	if derr != nil {
		slog.Warn("scan failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr.AddInfo)
		return ScanResponse{}, derr
	}
	conn, derr := sess.Pool().Get(ctx, db.Name, db, sess.Username, sess.Password)
	if derr != nil {
		slog.Error("scan failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr)
		return ScanResponse{}, translate(derr)
	}
	conn.SetOption("number", strconv.Itoa(req.Number))
	conn.SetOption("position", strconv.Itoa(req.Position))
	conn.SetOption("stepSize", strconv.Itoa(req.StepSize))

	result, derr := conn.Scan(ctx, queryText, req.Number, req.Position, req.StepSize)
	if derr != nil {
		slog.Error("scan failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr)
		return ScanResponse{}, translate(derr)
	}
	slog.Info("scan processed", "conn_id", sess.ConnID, "db", db.Name, "found", len(result.Entries), "partial", result.Partial)
	return ScanResponse{Entries: result.Entries, Partial: result.Partial}, nil
}

// SortRequest is a decoded Z39.50 SortRequest (spec §4.8).
type SortRequest struct {
	Input    []string
	Output   string
	Sequence []sortplan.Request
}

type SortResponse struct {
	Hits int
}

// Sort recompiles the input sets as a single search over the union
// query, ordered per SEQUENCE, and registers the result under OUTPUT
// exactly as Search does (spec §4.8: "execute the resulting search and
// register the result under OUTPUT exactly as in §4.4").
func Sort(ctx context.Context, sess *session.Session, req SortRequest) (SortResponse, *diag.Error) {
	if len(req.Input) == 0 {
		slog.Warn("sort failed", "conn_id", sess.ConnID, "error", "no input sets")
		return SortResponse{}, diag.New(diag.ResultSetDoesNotExist, "no input sets")
	}
	first, ok := sess.ResultSet(req.Input[0])
	if !ok {
		slog.Warn("sort failed", "conn_id", sess.ConnID, "input", req.Input[0], "error", "no such result set")
		return SortResponse{}, diag.New(diag.ResultSetDoesNotExist, req.Input[0])
	}
	db := first.DBConfig

	keys := make([]sortplan.SortKey, 0, len(req.Sequence))
	for _, sr := range req.Sequence {
		sk, derr := sortplan.Extract(sr)
		if derr != nil {
			return SortResponse{}, derr
		}
		keys = append(keys, sk)
	}

	conn, derr := sess.Pool().Get(ctx, db.Name, db, sess.Username, sess.Password)
	if derr != nil {
		slog.Error("sort failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr)
		return SortResponse{}, translate(derr)
	}

	var queryText string
	switch db.Search.QueryType {
	case "cql":
		lookup := session.ResultSetLookup{Sess: sess}
		cqlQuery, extraSortOption, derr := sortplan.ComposeCQL(req.Input, keys, db.Search.UseMap(), sruAtLeast12(conn.SRUVersion()), lookup)
		if derr != nil {
			slog.Warn("sort failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr.AddInfo)
			return SortResponse{}, derr
		}
		if extraSortOption != "" {
			conn.SetOption("sort", extraSortOption)
		}
		queryText = cqlQuery
	default:
		pqfQuery, yazSortSpec := sortplan.ComposePQF(req.Input, keys)
		conn.SetOption("sort", yazSortSpec)
		queryText = pqfQuery
	}

	conn.SetOption("presentChunk", "0")
	result, derr := conn.Search(ctx, queryText)
	if derr != nil {
		slog.Error("sort failed", "conn_id", sess.ConnID, "db", db.Name, "error", derr)
		return SortResponse{}, translate(derr)
	}

	sess.Bind(req.Output, &session.ResultSet{
		DBName:   db.Name,
		DBConfig: db,
		SetName:  req.Output,
		QText:    queryText,
		RSID:     result.RSID,
		Hits:     result.Hits,
	})
	slog.Info("sort processed", "conn_id", sess.ConnID, "db", db.Name, "output", req.Output, "hits", result.Hits)
	return SortResponse{Hits: result.Hits}, nil
}

// DeleteRequest names the result sets a client asked to delete (spec
// §4.1's non-goal: "implementing the Z39.50 Delete service (specified
// as a no-op reply)").
type DeleteRequest struct {
	SetNames []string
}

type DeleteResponse struct{}

// Delete always succeeds without touching the resultsets map — the
// core's contract is a no-op reply (spec §9 flags the client-intent loss
// as a known, accepted tradeoff).
func Delete(sess *session.Session, req DeleteRequest) (DeleteResponse, *diag.Error) {
	slog.Info("delete processed", "conn_id", sess.ConnID, "sets", req.SetNames)
	return DeleteResponse{}, nil
}

// Close tears down every pooled connection for the session (spec §5).
func Close(sess *session.Session) {
	slog.Info("session closed", "conn_id", sess.ConnID)
	sess.Close()
}
