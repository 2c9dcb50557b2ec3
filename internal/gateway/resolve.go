// Package gateway wires the query compiler, sort planner, record
// converter, back-end connectors, and session/result-set registry into
// the Init/Search/Present/Fetch/Scan/Sort/Delete/Close handlers spec.md
// §4 describes, translating every failure into a BIB-1 diagnostic
// before it reaches the reply.
package gateway

import (
	"github.com/indexbridge/z3950gateway/internal/config"
	"github.com/indexbridge/z3950gateway/internal/diag"
)

// resolveDatabase resolves a request's database name list (spec §4.2),
// including `cfg:` virtual databases, against the session's config
// snapshot.
func resolveDatabase(cfg config.GatewayConfig, names []string) (config.DatabaseConfig, *diag.Error) {
	return cfg.Resolve(names)
}
