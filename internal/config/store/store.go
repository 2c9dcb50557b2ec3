// Package store provides a SQL-backed catalog of DatabaseConfig entries,
// for installations with too many back-ends to hand-edit into the YAML
// file. It never stores result sets or hit lists — only configuration
// rows — so it does not touch the "no result caching" Non-goal.
package store

import (
	"fmt"

	"github.com/indexbridge/z3950gateway/internal/config"
)

// Store is a mutable catalog of DatabaseConfig rows, keyed by name, plus
// the admin login table backing the HTTP API's username/password route.
type Store interface {
	List() ([]config.DatabaseConfig, error)
	Get(name string) (config.DatabaseConfig, bool, error)
	Put(dc config.DatabaseConfig) error
	Delete(name string) error
	// Authenticate checks username/password against the stored bcrypt
	// hash and reports the account's role on success.
	Authenticate(username, password string) (role string, ok bool, err error)
	Close() error
}

// ErrNotFound is returned by Get callers that want a typed sentinel;
// Get itself signals absence via its bool result, matching the teacher's
// own `ListTargets`/`GetTarget` shape.
type ErrNotFound struct{ Name string }

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("store: no database config named %q", e.Name)
}
