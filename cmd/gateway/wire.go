package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/indexbridge/z3950gateway/internal/config"
	"github.com/indexbridge/z3950gateway/internal/diag"
	"github.com/indexbridge/z3950gateway/internal/gateway"
	"github.com/indexbridge/z3950gateway/internal/query"
	"github.com/indexbridge/z3950gateway/internal/session"
	"github.com/indexbridge/z3950gateway/internal/sortplan"
	"github.com/indexbridge/z3950gateway/internal/telemetry"
)

// Top-level APDU tags, adapted from the teacher's own tag constants and
// extended with Sort/Delete/Close.
const (
	tagInitializeRequest      = 20
	tagInitializeResponse     = 21
	tagSearchRequest          = 22
	tagSearchResponse         = 23
	tagPresentRequest         = 24
	tagPresentResponse        = 25
	tagDeleteResultSetRequest = 26
	tagScanRequest            = 35
	tagScanResponse           = 36
	tagSortRequest            = 43
	tagSortResponse           = 44
	tagClose                  = 48
)

// syntaxOIDs maps the registered Z39.50 record-syntax object identifiers
// a PresentRequest's preferredRecordSyntax carries to the internal
// syntax names dispatchSyntax understands (spec §4.5/§4.7).
var syntaxOIDs = map[string]string{
	"1.2.840.10003.5.10":  "usmarc",
	"1.2.840.10003.5.101": "sutrs",
	"1.2.840.10003.5.105": "grs-1",
	"1.2.840.10003.5.109": "xml",
}

// wireServer accepts raw Z39.50 connections and dispatches decoded PDUs
// to internal/gateway, adapted from the teacher's Server/handleConnection
// pair.
type wireServer struct {
	cfgPath     string
	allowedIPs  []*net.IPNet
	allowAllIPs bool
}

func newWireServer(cfgPath string, allowedIPsEnv string) *wireServer {
	s := &wireServer{cfgPath: cfgPath}
	if allowedIPsEnv == "" {
		s.allowAllIPs = true
		return s
	}
	for _, part := range strings.Split(allowedIPsEnv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			if strings.Contains(part, ":") {
				part += "/128"
			} else {
				part += "/32"
			}
		}
		if _, ipnet, err := net.ParseCIDR(part); err == nil {
			s.allowedIPs = append(s.allowedIPs, ipnet)
		}
	}
	return s
}

func (s *wireServer) checkIP(addr net.Addr) bool {
	if s.allowAllIPs {
		return true
	}
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return false
	}
	for _, ipnet := range s.allowedIPs {
		if ipnet.Contains(tcpAddr.IP) {
			return true
		}
	}
	return false
}

// sessionRegistry tracks live Z39.50 connections for the admin API's
// /admin/sessions endpoint (SPEC_FULL's "session count/age for
// observability").
type sessionRegistry struct {
	mu    sync.Mutex
	start map[string]time.Time
}

var activeSessions = &sessionRegistry{start: make(map[string]time.Time)}

func (r *sessionRegistry) add(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start[id] = time.Now()
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.start, id)
}

func (r *sessionRegistry) snapshot() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]time.Time, len(r.start))
	for k, v := range r.start {
		out[k] = v
	}
	return out
}

func (s *wireServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	connID := conn.RemoteAddr().String()
	slog.Info("new z39.50 connection", "conn_id", connID)

	activeSessions.add(connID)
	defer activeSessions.remove(connID)

	sess := session.New(config.GatewayConfig{})
	sess.ConnID = connID
	defer gateway.Close(sess)

	for {
		pkt, err := ber.ReadPacket(conn)
		if err != nil {
			slog.Info("connection closed", "conn_id", connID)
			return
		}

		switch pkt.Tag {
		case tagInitializeRequest:
			s.handleInit(conn, sess, pkt)
		case tagSearchRequest:
			s.handleSearch(conn, sess, pkt)
		case tagPresentRequest:
			s.handlePresent(conn, sess, pkt)
		case tagScanRequest:
			s.handleScan(conn, sess, pkt)
		case tagSortRequest:
			s.handleSort(conn, sess, pkt)
		case tagDeleteResultSetRequest:
			s.handleDelete(conn, sess, pkt)
		case tagClose:
			return
		default:
			slog.Warn("unhandled PDU tag", "tag", pkt.Tag, "conn_id", connID)
		}
	}
}

func (s *wireServer) handleInit(conn net.Conn, sess *session.Session, req *ber.Packet) {
	_, span := telemetry.Tracer("z3950gateway").Start(context.Background(), "init")
	defer span.End()

	username, password := decodeIdAuthentication(req)
	cfg, err := loadConfig(s.cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		writeInitResponse(conn, false)
		return
	}

	_, derr := gateway.Init(context.Background(), sess, gateway.InitRequest{
		Username: username,
		Password: password,
		Config:   *cfg,
	})
	writeInitResponse(conn, derr == nil)
}

// decodeIdAuthentication reads InitializeRequest's idAuthentication [110]
// as either an open VisibleString (username only) or an IdPass sequence
// carrying userId[1]/password[2].
func decodeIdAuthentication(req *ber.Packet) (user, pass string) {
	for _, c := range req.Children {
		if c.Tag != 110 {
			continue
		}
		if len(c.Children) == 0 {
			return string(c.Data.Bytes()), ""
		}
		for _, sub := range c.Children {
			switch sub.Tag {
			case 1:
				user = string(sub.Data.Bytes())
			case 2:
				pass = string(sub.Data.Bytes())
			}
		}
		return user, pass
	}
	return "", ""
}

func (s *wireServer) handleSearch(conn net.Conn, sess *session.Session, req *ber.Packet) {
	ctx, span := telemetry.Tracer("z3950gateway").Start(context.Background(), "search")
	defer span.End()

	var dbNames []string
	setName := "default"
	var queryNode *ber.Packet
	for _, c := range req.Children {
		switch {
		case c.Tag == ber.TagSequence && c.ClassType == ber.ClassUniversal:
			for _, n := range c.Children {
				if n.Tag == ber.TagVisibleString {
					dbNames = append(dbNames, string(n.Data.Bytes()))
				}
			}
		case c.Tag == 17:
			setName = string(c.Data.Bytes())
		case c.Tag == 21 && c.ClassType == ber.ClassContext:
			queryNode = c
		}
	}

	if queryNode == nil {
		writeSearchResponse(conn, gateway.SearchResponse{}, diag.New(diag.UnsupportedSearch, "missing query"))
		return
	}
	node, err := decodeQuery(queryNode)
	if err != nil {
		writeSearchResponse(conn, gateway.SearchResponse{}, diag.New(diag.UnsupportedSearch, err.Error()))
		return
	}

	result, derr := gateway.Search(ctx, sess, gateway.SearchRequest{
		DatabaseNames: dbNames,
		SetName:       setName,
		Query:         node,
	})
	writeSearchResponse(conn, result, derr)
}

func (s *wireServer) handlePresent(conn net.Conn, sess *session.Session, req *ber.Packet) {
	ctx, span := telemetry.Tracer("z3950gateway").Start(context.Background(), "present")
	defer span.End()

	setName := "default"
	start, number := 1, 1
	syntax, schema := "", ""
	for _, c := range req.Children {
		switch c.Tag {
		case 31:
			setName = string(c.Data.Bytes())
		case 30:
			start = int(decodeInt(c))
		case 29:
			number = int(decodeInt(c))
		case 104:
			syntax = syntaxOIDs[decodeOID(c)]
		case 19:
			schema = firstVisibleString(c)
		}
	}

	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagPresentResponse, nil, "PresentResponse")
	resp.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 2, "ref", "ReferenceId"))

	if _, derr := gateway.Present(sess, gateway.PresentRequest{SetName: setName, Start: start, Number: number}); derr != nil {
		resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 29, 0, "NumberReturned"))
		resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 30, 0, "NextResultSetPosition"))
		resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 27, 1, "PresentStatus"))
		resp.AppendChild(wrapDiagAsRecords(derr))
		conn.Write(resp.Bytes())
		return
	}

	records := ber.Encode(ber.ClassContext, ber.TypeConstructed, 28, nil, "Records")
	returned := 0
	for offset := start; offset < start+number; offset++ {
		fr, ferr := gateway.Fetch(ctx, sess, gateway.FetchRequest{
			SetName: setName, Offset: offset, Schema: schema, RecordSyntax: syntax,
		})
		if ferr != nil {
			surrogate := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "NamePlusRecord")
			surrogate.AppendChild(encodeDiagRec(ferr))
			records.AppendChild(surrogate)
			continue
		}
		namePlusRecord := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "NamePlusRecord")
		dbRecord := ber.Encode(ber.ClassContext, ber.TypeConstructed, 1, nil, "DBRecord")
		dbRecord.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(fr.Data), "Record"))
		namePlusRecord.AppendChild(dbRecord)
		records.AppendChild(namePlusRecord)
		returned++
	}

	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 29, int64(returned), "NumberReturned"))
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 30, 0, "NextResultSetPosition"))
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 27, 0, "PresentStatus"))
	resp.AppendChild(records)
	conn.Write(resp.Bytes())
}

func (s *wireServer) handleScan(conn net.Conn, sess *session.Session, req *ber.Packet) {
	ctx, span := telemetry.Tracer("z3950gateway").Start(context.Background(), "scan")
	defer span.End()

	var dbNames []string
	var termPacket *ber.Packet
	number, position, stepSize := 20, 1, 1
	for _, c := range req.Children {
		switch c.Tag {
		case ber.TagSequence:
			for _, n := range c.Children {
				if n.Tag == ber.TagVisibleString {
					dbNames = append(dbNames, string(n.Data.Bytes()))
				}
			}
		case 5:
			termPacket = c
		case 6:
			stepSize = int(decodeInt(c))
		case 7:
			number = int(decodeInt(c))
		case 8:
			position = int(decodeInt(c))
		}
	}

	if termPacket == nil {
		writeScanResponse(conn, gateway.ScanResponse{}, stepSize, diag.New(diag.UnsupportedSearch, "missing term"))
		return
	}
	term, err := decodeAPT(termPacket)
	if err != nil {
		writeScanResponse(conn, gateway.ScanResponse{}, stepSize, diag.New(diag.UnsupportedSearch, err.Error()))
		return
	}

	result, derr := gateway.Scan(ctx, sess, gateway.ScanRequest{
		DatabaseNames: dbNames,
		Query:         term,
		Number:        number,
		Position:      position,
		StepSize:      stepSize,
	})
	writeScanResponse(conn, result, stepSize, derr)
}

func (s *wireServer) handleSort(conn net.Conn, sess *session.Session, req *ber.Packet) {
	ctx, span := telemetry.Tracer("z3950gateway").Start(context.Background(), "sort")
	defer span.End()

	var inputs []string
	output := "default"
	var seq []sortplan.Request
	for _, c := range req.Children {
		switch c.Tag {
		case 3:
			for _, n := range c.Children {
				inputs = append(inputs, string(n.Data.Bytes()))
			}
		case 4:
			output = string(c.Data.Bytes())
		case 5:
			for _, n := range c.Children {
				seq = append(seq, decodeSortKeySpec(n))
			}
		}
	}

	_, derr := gateway.Sort(ctx, sess, gateway.SortRequest{Input: inputs, Output: output, Sequence: seq})

	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagSortResponse, nil, "SortResponse")
	status := int64(0)
	if derr != nil {
		status = 1
	}
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 3, status, "SortStatus"))
	if derr != nil {
		diags := ber.Encode(ber.ClassContext, ber.TypeConstructed, 218, nil, "Diagnostics")
		diags.AppendChild(encodeDiagRec(derr))
		resp.AppendChild(diags)
	}
	conn.Write(resp.Bytes())
}

func (s *wireServer) handleDelete(conn net.Conn, sess *session.Session, req *ber.Packet) {
	var names []string
	for _, c := range req.Children {
		if c.ClassType == ber.ClassContext && c.Tag == 1 {
			for _, n := range c.Children {
				names = append(names, string(n.Data.Bytes()))
			}
		}
	}
	gateway.Delete(sess, gateway.DeleteRequest{SetNames: names})

	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, 27, nil, "DeleteResultSetResponse")
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 0, 0, "DeleteOperationStatus"))
	conn.Write(resp.Bytes())
}

// decodeQuery decodes an RPNQuery: an optional attributeSet OID followed
// by the RPNStructure, generalizing the teacher's parseRPNQuery (which
// only ever extracted a single Use attribute) to a full query.Node tree.
func decodeQuery(queryPacket *ber.Packet) (query.Node, error) {
	if len(queryPacket.Children) == 0 {
		return nil, fmt.Errorf("empty query packet")
	}
	rpnQuery := queryPacket.Children[0]

	var attrSet string
	var rpnStruct *ber.Packet
	switch len(rpnQuery.Children) {
	case 0:
		rpnStruct = rpnQuery
	case 1:
		rpnStruct = rpnQuery.Children[0]
	default:
		attrSet = decodeOID(rpnQuery.Children[0])
		rpnStruct = rpnQuery.Children[1]
	}

	node, err := decodeRPN(rpnStruct)
	if err != nil {
		return nil, err
	}
	if attrSet != "" && attrSet != diag.OID_Bib1 {
		applyAttrSet(node, attrSet)
	}
	return node, nil
}

func applyAttrSet(n query.Node, oid string) {
	switch t := n.(type) {
	case query.Term:
		for i := range t.Attrs {
			if t.Attrs[i].Set == "" {
				t.Attrs[i].Set = oid
			}
		}
	case query.And:
		applyAttrSet(t.Left, oid)
		applyAttrSet(t.Right, oid)
	case query.Or:
		applyAttrSet(t.Left, oid)
		applyAttrSet(t.Right, oid)
	case query.AndNot:
		applyAttrSet(t.Left, oid)
		applyAttrSet(t.Right, oid)
	}
}

// decodeRPN walks the RPNStructure choice, generalized from the
// teacher's recursiveParseRPN to build the query.Node sum type instead
// of z3950.QueryClause/QueryComplex.
func decodeRPN(p *ber.Packet) (query.Node, error) {
	if p.ClassType == ber.ClassContext && p.Tag == 0 {
		return decodeOperand(p)
	}
	if p.ClassType == ber.ClassContext && p.Tag == 1 {
		if len(p.Children) < 3 {
			return nil, fmt.Errorf("complex RPN missing children")
		}
		left, err := decodeRPN(p.Children[0])
		if err != nil {
			return nil, err
		}
		right, err := decodeRPN(p.Children[1])
		if err != nil {
			return nil, err
		}
		op := 0
		opNode := p.Children[2]
		if len(opNode.Children) > 0 {
			if v, ok := opNode.Children[0].Value.(int64); ok {
				op = int(v)
			}
		}
		switch op {
		case 1:
			return query.Or{Left: left, Right: right}, nil
		case 2:
			return query.AndNot{Left: left, Right: right}, nil
		default:
			return query.And{Left: left, Right: right}, nil
		}
	}
	return nil, fmt.Errorf("unknown RPN tag: %d", p.Tag)
}

// decodeOperand decodes an Operand choice: either an attributesPlusTerm
// [102] or a resultSetId [31] reference (spec §4.3's "RSID emission").
func decodeOperand(operand *ber.Packet) (query.Node, error) {
	if operand.Tag != 0 || operand.ClassType != ber.ClassContext {
		return nil, fmt.Errorf("packet is not an operand")
	}
	if len(operand.Children) == 0 {
		return nil, fmt.Errorf("operand has no children")
	}
	choice := operand.Children[0]
	if choice.Tag == 31 {
		return query.Rsid{SetName: string(choice.Data.Bytes())}, nil
	}
	if choice.Tag != 102 {
		return nil, fmt.Errorf("expected APT (tag 102) inside operand, got %d", choice.Tag)
	}
	term, err := decodeAPT(choice)
	if err != nil {
		return nil, err
	}
	return term, nil
}

// decodeAPT decodes an AttributesPlusTerm, shared by search operands and
// ScanRequest's termListAndStartPoint.
func decodeAPT(apt *ber.Packet) (query.Term, error) {
	var term query.Term
	for _, child := range apt.Children {
		switch child.Tag {
		case 44:
			for _, attr := range child.Children {
				term.Attrs = append(term.Attrs, decodeAttr(attr))
			}
		case 45:
			term.Value = string(child.Data.Bytes())
		}
	}
	if term.Value == "" {
		return term, fmt.Errorf("could not find term in operand")
	}
	return term, nil
}

// decodeAttr decodes a single AttributeElement. It accepts either the
// standard [1]/[120]/[121] context tags or the plain positional
// integers the teacher's own encoder produces, since a real client can
// use either encoding of the same value.
func decodeAttr(attr *ber.Packet) query.Attr {
	var a query.Attr
	var ints []int64
	for _, c := range attr.Children {
		switch {
		case c.Tag == ber.TagObjectIdentifier && c.ClassType == ber.ClassUniversal:
			a.Set = decodeOID(c)
		case c.ClassType == ber.ClassContext && c.Tag == 120:
			a.Type = int(decodeInt(c))
		case c.ClassType == ber.ClassContext && (c.Tag == 121 || c.Tag == 2):
			a.Value = int(decodeInt(c))
		default:
			if v, ok := c.Value.(int64); ok {
				ints = append(ints, v)
			}
		}
	}
	if a.Type == 0 && len(ints) > 0 {
		a.Type = int(ints[0])
	}
	if a.Value == 0 && len(ints) > 1 {
		a.Value = int(ints[1])
	}
	return a
}

// decodeSortKeySpec decodes one SortKeySpec entry of a SortRequest's
// sortSequence (spec §4.8).
func decodeSortKeySpec(p *ber.Packet) sortplan.Request {
	var r sortplan.Request
	for _, c := range p.Children {
		switch c.Tag {
		case 0:
			for _, se := range c.Children {
				switch se.Tag {
				case 0:
					r.SortField = string(se.Data.Bytes())
				case 1:
					r.ElementSpecType = "elementSpec"
					r.ElementSpecValue = string(se.Data.Bytes())
				case 2:
					for _, sub := range se.Children {
						if sub.Tag == ber.TagObjectIdentifier {
							r.AttrSet = decodeOID(sub)
						}
						if sub.Tag == ber.TagSequence {
							for _, attr := range sub.Children {
								a := decodeAttr(attr)
								if a.Type == 1 {
									r.UseAttr = a.Value
									r.HaveUseAttr = true
								}
							}
						}
					}
				}
			}
		case 1:
			r.Relation = int(decodeInt(c))
		case 2:
			r.Case = int(decodeInt(c))
		case 3:
			r.Missing = "abort"
		}
	}
	return r
}

func decodeInt(p *ber.Packet) int64 {
	if v, ok := p.Value.(int64); ok {
		return v
	}
	var val int64
	for _, b := range p.Data.Bytes() {
		val = (val << 8) | int64(b)
	}
	return val
}

func firstVisibleString(p *ber.Packet) string {
	if p.Tag == ber.TagVisibleString || p.Tag == ber.TagOctetString {
		return string(p.Data.Bytes())
	}
	for _, c := range p.Children {
		if s := firstVisibleString(c); s != "" {
			return s
		}
	}
	return ""
}

// decodeOID reads an OBJECT IDENTIFIER's content octets into dotted
// notation. The library's Packet.Value only reliably carries this for a
// handful of universal types, so OIDs are decoded by hand the same way
// pqf_conn.go walks raw BER content for values it needs.
func decodeOID(p *ber.Packet) string {
	if s, ok := p.Value.(string); ok && s != "" {
		return s
	}
	data := p.Data.Bytes()
	if len(data) == 0 {
		return ""
	}
	arcs := []int{int(data[0]) / 40, int(data[0]) % 40}
	val := 0
	for _, b := range data[1:] {
		val = (val << 7) | int(b&0x7f)
		if b&0x80 == 0 {
			arcs = append(arcs, val)
			val = 0
		}
	}
	parts := make([]string, len(arcs))
	for i, a := range arcs {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ".")
}

func encodeOID(oid string) []byte {
	parts := strings.Split(oid, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		nums[i], _ = strconv.Atoi(p)
	}
	out := []byte{byte(40*nums[0] + nums[1])}
	for _, n := range nums[2:] {
		out = append(out, encodeBase128(n)...)
	}
	return out
}

func encodeBase128(n int) []byte {
	if n == 0 {
		return []byte{0}
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte(n & 0x7f)}, buf...)
		n >>= 7
	}
	for i := 0; i < len(buf)-1; i++ {
		buf[i] |= 0x80
	}
	return buf
}

// encodeDiagRec renders a *diag.Error as a DefaultDiagFormat DiagRec
// (spec §7): the BIB-1 OID, the numeric condition, and any addinfo.
func encodeDiagRec(derr *diag.Error) *ber.Packet {
	rec := ber.Encode(ber.ClassContext, ber.TypeConstructed, 1, nil, "DefaultDiagFormat")
	oidPkt := ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagObjectIdentifier, nil, "DiagnosticSetId")
	oidPkt.Data.Write(encodeOID(diag.OID_Bib1))
	rec.AppendChild(oidPkt)
	rec.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 2, int64(derr.Code), "Condition"))
	if derr.AddInfo != "" {
		rec.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 3, derr.AddInfo, "AddInfo"))
	}
	return rec
}

func wrapDiagAsRecords(derr *diag.Error) *ber.Packet {
	records := ber.Encode(ber.ClassContext, ber.TypeConstructed, 28, nil, "Records")
	nonSurrogate := ber.Encode(ber.ClassContext, ber.TypeConstructed, 205, nil, "NonSurrogateDiagnostics")
	nonSurrogate.AppendChild(encodeDiagRec(derr))
	records.AppendChild(nonSurrogate)
	return records
}

func writeInitResponse(conn net.Conn, accepted bool) {
	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagInitializeResponse, nil, "InitializeResponse")
	resp.AppendChild(ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagBitString, []byte{0x00, 0xC0}, "ProtocolVersion"))
	resp.AppendChild(ber.Encode(ber.ClassUniversal, ber.TypePrimitive, ber.TagBitString, []byte{0x00, 0xF0}, "Options"))
	resp.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 1048576, "PreferredMessageSize"))
	resp.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, 1048576, "MaximumRecordSize"))
	resp.AppendChild(ber.NewBoolean(ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, accepted, "Result"))
	resp.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 110, "z3950gateway", "ImplementationId"))
	resp.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 111, "z3950gateway", "ImplementationName"))
	resp.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 112, "1.0.0", "ImplementationVersion"))
	conn.Write(resp.Bytes())
}

func writeSearchResponse(conn net.Conn, result gateway.SearchResponse, derr *diag.Error) {
	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagSearchResponse, nil, "SearchResponse")
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 23, int64(result.Hits), "ResultCount"))
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 24, 0, "NumberOfRecordsReturned"))
	resp.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 25, 0, "NextResultSetPosition"))
	resp.AppendChild(ber.NewBoolean(ber.ClassContext, ber.TypePrimitive, 26, derr == nil, "SearchStatus"))
	if derr != nil {
		resp.AppendChild(wrapDiagAsRecords(derr))
	}
	conn.Write(resp.Bytes())
}

func writeScanResponse(conn net.Conn, result gateway.ScanResponse, stepSize int, derr *diag.Error) {
	resp := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagScanResponse, nil, "ScanResponse")
	resp.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(stepSize), "StepSize"))
	status := int64(0)
	if derr != nil {
		status = 1
	}
	resp.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, status, "ScanStatus"))
	resp.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(len(result.Entries)), "NumberOfEntriesReturned"))

	entriesWrapper := ber.Encode(ber.ClassContext, ber.TypeConstructed, 7, nil, "Entries")
	list := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "List")
	for _, e := range result.Entries {
		entry := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Entry")
		info := ber.Encode(ber.ClassContext, ber.TypeConstructed, 1, nil, "TermInfo")
		info.AppendChild(ber.NewString(ber.ClassContext, ber.TypePrimitive, 45, e.Term, "Term"))
		info.AppendChild(ber.NewInteger(ber.ClassContext, ber.TypePrimitive, 2, int64(e.Count), "Count"))
		entry.AppendChild(info)
		list.AppendChild(entry)
	}
	entriesWrapper.AppendChild(list)
	resp.AppendChild(entriesWrapper)

	if derr != nil {
		diags := ber.Encode(ber.ClassContext, ber.TypeConstructed, 218, nil, "Diagnostics")
		diags.AppendChild(encodeDiagRec(derr))
		resp.AppendChild(diags)
	}
	conn.Write(resp.Bytes())
}
