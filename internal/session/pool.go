package session

import (
	"context"
	"sync"
	"time"

	"github.com/indexbridge/z3950gateway/internal/config"
	"github.com/indexbridge/z3950gateway/internal/diag"
	"github.com/indexbridge/z3950gateway/internal/zoom"
)

// PoolConfig mirrors the teacher's pool.Config, generalized to be owned
// per-session rather than as a single process-wide singleton.
type PoolConfig struct {
	MaxIdle     int
	IdleTimeout time.Duration
}

var DefaultPoolConfig = PoolConfig{
	MaxIdle:     5,
	IdleTimeout: 5 * time.Minute,
}

// pooledConn wraps a zoom.Conn with the bookkeeping the teacher's
// ClientWrapper carried (host/port/db plus a last-used timestamp), used
// here to drive per-session idle expiry (spec.md §4.9's "connection idle
// expiry" behavior).
type pooledConn struct {
	conn     zoom.Conn
	dbName   string
	lastUsed time.Time
}

// Pool is a per-Session connection cache keyed by database name (spec.md
// §4.9: "a first request for a database name creates a connection ...
// subsequent requests reuse the cached connection"). Unlike the teacher's
// pool.Pool, this is never a global singleton: each Session owns one, so
// connections never leak across sessions.
type Pool struct {
	mu     sync.Mutex
	conns  map[string]*pooledConn
	config PoolConfig
	stop   chan struct{}
}

func NewPool(cfg PoolConfig) *Pool {
	p := &Pool{
		conns:  make(map[string]*pooledConn),
		config: cfg,
		stop:   make(chan struct{}),
	}
	go p.cleanupLoop()
	return p
}

// Get returns the cached connection for dbName, dialing and initializing
// a fresh one on first use per spec.md §4.9's option-seeding sequence.
func (p *Pool) Get(ctx context.Context, dbName string, db config.DatabaseConfig, username, password string) (zoom.Conn, *diag.Error) {
	p.mu.Lock()
	if pc, ok := p.conns[dbName]; ok {
		if time.Since(pc.lastUsed) <= p.config.IdleTimeout {
			pc.lastUsed = time.Now()
			p.mu.Unlock()
			return pc.conn, nil
		}
		delete(p.conns, dbName)
		p.mu.Unlock()
		pc.conn.Close()
	} else {
		p.mu.Unlock()
	}

	conn := zoom.New(db.ZURL, db.Search.QueryType)
	conn.SetOption("presentChunk", "10")
	conn.SetOption("preferredRecordSyntax", "xml")
	if username != "" {
		conn.SetOption("user", username)
	}
	if password != "" {
		conn.SetOption("password", password)
	}
	for key, opt := range db.Option {
		conn.SetOption(key, opt.Content)
	}

	if derr := conn.Connect(ctx); derr != nil {
		return nil, derr
	}

	p.mu.Lock()
	p.conns[dbName] = &pooledConn{conn: conn, dbName: dbName, lastUsed: time.Now()}
	p.mu.Unlock()
	return conn, nil
}

// CloseAll tears down every pooled connection, called when a session ends
// (spec.md §5's "a session close aborts pending back-end operations by
// tearing down connections").
func (p *Pool) CloseAll() {
	close(p.stop)
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, pc := range p.conns {
		pc.conn.Close()
		delete(p.conns, name)
	}
}

// Has reports whether dbName currently has a live pooled connection,
// used to check the "resultsets[N].dbName ∈ connections" invariant.
func (p *Pool) Has(dbName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.conns[dbName]
	return ok
}

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			now := time.Now()
			for name, pc := range p.conns {
				if now.Sub(pc.lastUsed) > p.config.IdleTimeout {
					pc.conn.Close()
					delete(p.conns, name)
				}
			}
			p.mu.Unlock()
		}
	}
}
