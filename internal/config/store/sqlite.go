package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
	"golang.org/x/crypto/bcrypt"

	"github.com/indexbridge/z3950gateway/internal/config"
)

// SQLiteStore is a modernc.org/sqlite-backed catalog store, for
// single-node deployments that don't warrant a Postgres instance —
// mirroring the teacher's SqliteProvider fallback.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the sqlite file at path and
// ensures the catalog table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS gateway_databases (
			name TEXT PRIMARY KEY,
			zurl TEXT NOT NULL,
			config_json TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create gateway_databases table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS admin_users (
			username TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("create admin_users table: %w", err)
	}
	var userCount int
	db.QueryRow(`SELECT COUNT(*) FROM admin_users WHERE username = 'admin'`).Scan(&userCount)
	if userCount == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("seed admin user: %w", err)
		}
		if _, err := db.Exec(`INSERT INTO admin_users (username, password_hash, role) VALUES (?, ?, ?)`,
			"admin", string(hash), "admin"); err != nil {
			return nil, fmt.Errorf("seed admin user: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List() ([]config.DatabaseConfig, error) {
	rows, err := s.db.Query(`SELECT config_json FROM gateway_databases ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []config.DatabaseConfig
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var dc config.DatabaseConfig
		if err := json.Unmarshal([]byte(blob), &dc); err != nil {
			return nil, fmt.Errorf("decode catalog row: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Get(name string) (config.DatabaseConfig, bool, error) {
	var blob string
	err := s.db.QueryRow(`SELECT config_json FROM gateway_databases WHERE name = ?`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return config.DatabaseConfig{}, false, nil
	}
	if err != nil {
		return config.DatabaseConfig{}, false, err
	}
	var dc config.DatabaseConfig
	if err := json.Unmarshal([]byte(blob), &dc); err != nil {
		return config.DatabaseConfig{}, false, fmt.Errorf("decode catalog row: %w", err)
	}
	return dc, true, nil
}

func (s *SQLiteStore) Put(dc config.DatabaseConfig) error {
	blob, err := json.Marshal(dc)
	if err != nil {
		return fmt.Errorf("encode catalog row: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO gateway_databases (name, zurl, config_json) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET zurl = excluded.zurl, config_json = excluded.config_json
	`, dc.Name, dc.ZURL, string(blob))
	return err
}

func (s *SQLiteStore) Delete(name string) error {
	_, err := s.db.Exec(`DELETE FROM gateway_databases WHERE name = ?`, name)
	return err
}

func (s *SQLiteStore) Authenticate(username, password string) (string, bool, error) {
	var hash, role string
	err := s.db.QueryRow(`SELECT password_hash, role FROM admin_users WHERE username = ?`, username).Scan(&hash, &role)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return "", false, nil
	}
	return role, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
