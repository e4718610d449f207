package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[v] upgrades a database at user_version v to v+1. The schema
// version is len(migrations).
var migrations = []string{
	// entries by input id, for finding every attempt of one input across
	// journals
	`CREATE INDEX IF NOT EXISTS idx_entries_input ON entries(input_id)`,
	// entries by status, for failure listings
	`CREATE INDEX IF NOT EXISTS idx_entries_status ON entries(journal_id, status)`,
}

// pragmas are applied to the single connection on open.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

var (
	// ErrNotFound is returned when a journal id is not in the store.
	ErrNotFound = errors.New("store: journal not found")

	// ErrConflict is returned when saving a journal whose id is already
	// stored with different content.
	ErrConflict = errors.New("store: journal id already stored with different content")

	// ErrCorrupt is returned when a loaded journal does not match its
	// stored digest.
	ErrCorrupt = errors.New("store: journal digest mismatch")

	// ErrAmbiguous is returned when an id prefix matches several journals.
	ErrAmbiguous = errors.New("store: ambiguous journal id prefix")
)

// Store provides durable storage for journals.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite journal database at path (":memory:" for
// a throwaway store). Pragmas and migrations are applied on every open, so
// opening an existing database is safe.
//
// The database runs in WAL mode with NORMAL synchronous writes, a 5-second
// busy timeout and foreign keys enforced. Journals are written by a single
// connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initialize(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initialize(db *sql.DB) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragmas: %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate runs the migrations above the database's user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := db.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version < len(migrations) {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
