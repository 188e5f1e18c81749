// Package store provides the embedded SQLite record store for taskdock.
//
// The database runs in embedded mode with WAL for concurrent reads and
// holds three tables: tasks (full-snapshot writes), documents (per-id
// upserts, indexed by task), and settings (key/value JSON).
//
// The schema is versioned via PRAGMA user_version. Migrations are
// strictly additive: a later version only adds tables, columns, or
// indexes, so data written under an older version always loads.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection. It is a process-wide singleton in
// practice: opened once at startup and closed on teardown.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a store at the specified path, creating the parent
// directory and schema as needed.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".taskdock/taskdock.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{
		conn: conn,
		path: path,
	}

	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, err
	}

	return st, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// migrations holds one SQL script per schema version, applied in order.
// Never edit a shipped entry; append a new one.
var migrations = []string{
	// v1: initial schema
	`
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		link TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '',
		custom_fields TEXT NOT NULL DEFAULT '{}',  -- JSON map fieldId -> value
		sub_tasks TEXT NOT NULL DEFAULT '[]',      -- JSON array, order preserved
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT 'null',      -- rich-text JSON tree
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_task ON documents(task_id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL                        -- arbitrary JSON
	);
	`,
}

// SchemaVersion is the schema version this build writes.
var SchemaVersion = len(migrations)

// Migrate brings the schema up to SchemaVersion. Idempotent: already
// applied versions are skipped.
func (s *Store) Migrate() error {
	return s.MigrateContext(context.Background())
}

// MigrateContext brings the schema up to date with context support.
func (s *Store) MigrateContext(ctx context.Context) error {
	var version int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for v := version; v < len(migrations); v++ {
		if _, err := s.conn.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("failed to apply schema migration %d: %w", v+1, err)
		}
		// PRAGMA doesn't take bind parameters
		if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", v+1, err)
		}
	}

	return nil
}

// UserVersion returns the schema version currently recorded in the
// database file.
func (s *Store) UserVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
