// Package store persists the committed graph in SQLite. Rows are never
// physically deleted: every node and edge row carries an assertion
// instant and an optional retirement instant, so any past state of the
// graph can be read back by instant.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection for graph storage.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

// cacheDir returns the default cache directory for databases.
func cacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".cache", "codegraph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir cache: %w", err)
	}
	return dir, nil
}

// Open opens or creates a SQLite database named after the project.
func Open(project string) (*Store, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return OpenPath(filepath.Join(dir, project+".db"))
}

// OpenPath opens a SQLite database at the given path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory SQLite database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction.
// The callback receives a transaction-scoped Store: all store methods
// called on txStore use the transaction. The receiver's q field is never
// mutated, so concurrent read-only callers are unaffected.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS groups (
		name TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		namespace TEXT NOT NULL,
		root_path TEXT NOT NULL,
		indexed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_hashes (
		grp TEXT NOT NULL REFERENCES groups(name) ON DELETE CASCADE,
		rel_path TEXT NOT NULL,
		hash TEXT NOT NULL,
		PRIMARY KEY (grp, rel_path)
	);

	CREATE TABLE IF NOT EXISTS nodes (
		grp TEXT NOT NULL,
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		file_path TEXT NOT NULL,
		start_line INTEGER DEFAULT 0,
		end_line INTEGER DEFAULT 0,
		vis TEXT DEFAULT '',
		attrs TEXT DEFAULT '[]',
		hash TEXT NOT NULL,
		payload TEXT DEFAULT '{}',
		asserted_at TEXT NOT NULL,
		retired_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_live
		ON nodes(grp, id) WHERE retired_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(grp, file_path);
	CREATE INDEX IF NOT EXISTS idx_nodes_path ON nodes(grp, path);
	CREATE INDEX IF NOT EXISTS idx_nodes_span ON nodes(grp, asserted_at, retired_at);

	CREATE TABLE IF NOT EXISTS edges (
		grp TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		target_id TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		type TEXT NOT NULL,
		file_path TEXT NOT NULL,
		asserted_at TEXT NOT NULL,
		retired_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_live
		ON edges(grp, source_id, target_id, type) WHERE retired_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(grp, source_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(grp, target_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_file ON edges(grp, file_path);
	`
	_, err := s.db.Exec(schema)
	return err
}

// instantLayout is fixed-width UTC nanoseconds, so stored instants
// compare correctly as text.
const instantLayout = "2006-01-02T15:04:05.000000000Z"

// Now returns the current instant in the store's timestamp format.
func Now() string {
	return time.Now().UTC().Format(instantLayout)
}

// FormatInstant renders a time in the store's timestamp format.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}
