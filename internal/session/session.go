// Package session implements the per-client state machine spec.md §3
// calls "Session": named result sets over lazily-pooled back-end
// connections, both private to one client and requiring no locking
// beyond what a single session's own connection pool needs internally.
package session

import (
	"github.com/indexbridge/z3950gateway/internal/config"
)

// ResultSet is spec.md §3's ResultSet: a named, materialized hit list
// bound to one database connection.
type ResultSet struct {
	DBName   string
	DBConfig config.DatabaseConfig
	SetName  string
	QText    string
	Cursor   int
	RSID     string
	Hits     int
}

// Lookup reports the fields RSID emission needs from this result set.
// It takes no set name, so ResultSet itself does not satisfy
// query.ResultSetLookup; the ResultSetLookup type below does, by calling
// this after resolving the name.
func (rs ResultSet) Lookup() (qtext, rsid, policy string, ok bool) {
	return rs.QText, rs.RSID, rs.DBConfig.ResultSetIDPolicy(), true
}

// Session is spec.md §3's Session: one per client connection, living
// Init→Close. All fields are private to the session; spec.md §5 requires
// no shared mutable state across sessions.
type Session struct {
	Config     config.GatewayConfig
	Username   string
	Password   string
	ConnID     string // set by the wire listener, used only for logging
	pool       *Pool
	resultsets map[string]*ResultSet
}

func New(cfg config.GatewayConfig) *Session {
	return &Session{
		Config:     cfg,
		pool:       NewPool(DefaultPoolConfig),
		resultsets: make(map[string]*ResultSet),
	}
}

// Close tears down every pooled connection (spec.md §5: "a session close
// aborts pending back-end operations by tearing down connections").
func (s *Session) Close() {
	s.pool.CloseAll()
}

func (s *Session) Pool() *Pool { return s.pool }

// ResultSet looks up a set-name, honoring the double-binding invariant:
// once a set-name has been rebound by a later Search/Sort, the prior
// ResultSet is simply gone from the map (spec.md §8: "after a second
// Search with the same set-name, the prior ResultSet is unreachable").
func (s *Session) ResultSet(name string) (*ResultSet, bool) {
	rs, ok := s.resultsets[name]
	return rs, ok
}

// Bind publishes a ResultSet under setName, replacing any prior binding
// (spec.md §4.4: "publish under SETNAME, replacing any prior binding").
func (s *Session) Bind(setName string, rs *ResultSet) {
	s.resultsets[setName] = rs
}

// ResultSetLookup implements query.ResultSetLookup against this
// session's live resultsets map, for RSID emission (spec.md §4.3).
type ResultSetLookup struct {
	Sess *Session
}

func (l ResultSetLookup) Lookup(setName string) (qtext, rsid, policy string, ok bool) {
	rs, found := l.Sess.ResultSet(setName)
	if !found {
		return "", "", "", false
	}
	return rs.Lookup()
}
