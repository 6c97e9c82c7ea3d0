// Package sqlite provides the persistent production outbound adapters:
// tenant, policy, and audit storage backed by a single SQLite database
// file, plus a flock-guarded compaction (VACUUM) admin operation.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store owns the shared *sql.DB connection and schema for the tenant,
// policy, and audit tables. Each domain port is implemented by a thin
// wrapper over the same *Store (TenantStore, PolicyStore, AuditStore).
type Store struct {
	db   *sql.DB
	path string
}

// Open creates the database directory if needed, opens path, enables WAL
// mode and foreign keys, and creates the schema if absent.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY churn

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		tenant_id       TEXT PRIMARY KEY,
		display_name    TEXT NOT NULL,
		credential_hash TEXT NOT NULL UNIQUE,
		argon_hash      TEXT NOT NULL DEFAULT '',
		active          INTEGER NOT NULL DEFAULT 1,
		notify_endpoint TEXT NOT NULL DEFAULT '',
		notify_enabled  INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id       TEXT NOT NULL REFERENCES tenants(tenant_id) ON DELETE CASCADE,
		version         TEXT NOT NULL,
		name            TEXT NOT NULL DEFAULT '',
		default_verdict TEXT NOT NULL,
		active          INTEGER NOT NULL DEFAULT 0,
		rules_json      TEXT NOT NULL,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL,
		UNIQUE(tenant_id, version)
	);
	CREATE INDEX IF NOT EXISTS idx_policies_tenant_active ON policies(tenant_id, active);

	CREATE TABLE IF NOT EXISTS audit_events (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		action_id        TEXT NOT NULL UNIQUE,
		tenant_id        TEXT NOT NULL REFERENCES tenants(tenant_id) ON DELETE CASCADE,
		principal_name   TEXT NOT NULL,
		action_type      TEXT NOT NULL,
		params_json      TEXT NOT NULL DEFAULT '{}',
		allowed          INTEGER NOT NULL,
		reason           TEXT NOT NULL DEFAULT '',
		policy_version   TEXT NOT NULL DEFAULT '',
		eval_duration_ms INTEGER NOT NULL DEFAULT 0,
		timestamp        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_tenant_timestamp ON audit_events(tenant_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
	`
	_, err := db.Exec(schema)
	return err
}

// DB returns the underlying connection, for migrations or shared use by
// callers that need direct SQL access (e.g. an admin CLI command).
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Vacuum compacts the database file. It takes an exclusive flock on
// path+".lock" for the duration, so it is safe to run VACUUM against a
// file other processes may also have open (spec's admin compaction
// operation), mirroring the cross-process coordination the file-based
// state store uses for its own writes.
func (s *Store) Vacuum() error {
	lockPath := s.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := flockLock(lockFile.Fd()); err != nil {
		return fmt.Errorf("acquire vacuum lock: %w", err)
	}
	defer flockUnlock(lockFile.Fd()) //nolint:errcheck

	_, err = s.db.Exec("VACUUM")
	return err
}
