// Package zoom implements the back-end connectors spec.md treats as "the
// ZOOM client library": one concrete Conn per back-end dialect (native
// Z39.50/PQF, SRU/CQL, Solr), sharing a single interface so the session
// and sort planner never branch on back-end kind.
package zoom

import (
	"context"

	"github.com/indexbridge/z3950gateway/internal/diag"
)

// SearchResult is what a back-end reports after a search (spec §4.4).
type SearchResult struct {
	Hits int
	RSID string
}

// ScanEntry is one term/occurrence pair from a Scan (spec §4.6).
type ScanEntry struct {
	Term  string
	Count int
}

// ScanResult reports whether the scan returned the full requested count.
type ScanResult struct {
	Entries []ScanEntry
	Partial bool
}

// Conn is satisfied by cqlConn, solrConn, and pqfConn.
type Conn interface {
	Connect(ctx context.Context) *diag.Error
	Close() error

	// SetOption mirrors the connection pool's option-copying step (spec
	// §4.9): user, password, presentChunk, preferredRecordSyntax, and any
	// database-configured pass-through options.
	SetOption(key, value string)

	Search(ctx context.Context, queryText string) (SearchResult, *diag.Error)

	// Record fetches a single record at a one-based offset within the
	// connection's current result set, as the back-end's raw XML
	// envelope (spec §4.5's `/doc/str[@name='marcxml']` shape, produced
	// uniformly regardless of back-end kind).
	Record(ctx context.Context, offset int) ([]byte, *diag.Error)

	Scan(ctx context.Context, queryText string, number, position, stepSize int) (ScanResult, *diag.Error)

	// SRUVersion reports the back-end's advertised SRU version, or "" if
	// not applicable (native Z39.50) — used by the sort planner to choose
	// between an embedded `sortby` clause and an attached YAZ sortspec
	// (spec §4.8).
	SRUVersion() string
}

// New builds the Conn appropriate to a database's search.querytype (spec
// §4.4: "Choose dialect per database search.querytype").
func New(zurl string, queryType string) Conn {
	switch queryType {
	case "cql":
		return newCQLConn(zurl)
	case "solr":
		return newSolrConn(zurl)
	default:
		return newPQFConn(zurl)
	}
}
