// Package store implements the entity store: the SQLite-backed
// representation of specs and issues that the sync engine keeps
// consistent with the Markdown and JSONL representations. It is plain
// database/sql over github.com/ncruces/go-sqlite3 — no ORM.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" driver
	_ "github.com/ncruces/go-sqlite3/embed"  // pure-Go SQLite, no cgo

	"github.com/scdev/scd/internal/types"
)

// Store wraps a *sql.DB open against a single SQLite file plus the event
// sink that every mutating call publishes to.
type Store struct {
	db     *sql.DB
	events EventSink
}

// EventSink receives one notification per entity mutation. The Event Bus
// implements this interface; tests may supply a no-op or recording stub.
type EventSink interface {
	Publish(ctx context.Context, evt types.Event)
}

type noopSink struct{}

func (noopSink) Publish(context.Context, types.Event) {}

// Open opens (creating if necessary) the SQLite database at path,
// applies connection pragmas, and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open entity store: %w", err)
	}

	// A single file-backed SQLite database serializes writers regardless
	// of pool size; cap the pool so database/sql doesn't hand out
	// connections that just queue behind SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, events: noopSink{}}, nil
}

// SetEventSink wires the store's post-mutation notifications to sink.
// Called once during wiring, after both the store and the event bus
// exist.
func (s *Store) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	s.events = sink
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing on nil return and
// rolling back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS specs (
		id TEXT PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		file_path TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		priority INTEGER NOT NULL DEFAULT 2,
		parent_uuid TEXT,
		archived INTEGER NOT NULL DEFAULT 0,
		archived_at DATETIME,
		external_links TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_specs_parent_uuid ON specs(parent_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_specs_archived ON specs(archived)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_specs_file_path_live ON specs(file_path) WHERE archived = 0`,

	`CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		file_path TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		priority INTEGER NOT NULL DEFAULT 2,
		assignee TEXT NOT NULL DEFAULT '',
		parent_uuid TEXT,
		archived INTEGER NOT NULL DEFAULT 0,
		archived_at DATETIME,
		closed_at DATETIME,
		external_links TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_parent_uuid ON issues(parent_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status)`,
	`CREATE INDEX IF NOT EXISTS idx_issues_archived ON issues(archived)`,

	`CREATE TABLE IF NOT EXISTS relationships (
		from_uuid TEXT NOT NULL,
		from_type TEXT NOT NULL,
		to_uuid TEXT NOT NULL,
		to_type TEXT NOT NULL,
		rel_type TEXT NOT NULL,
		PRIMARY KEY (from_uuid, to_uuid, rel_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_to_uuid ON relationships(to_uuid)`,

	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		from_uuid TEXT,
		to_uuid TEXT NOT NULL,
		feedback_type TEXT NOT NULL,
		content TEXT NOT NULL,
		anchor_line INTEGER,
		anchor_heading TEXT NOT NULL DEFAULT '',
		anchor_context_before TEXT NOT NULL DEFAULT '',
		anchor_context_after TEXT NOT NULL DEFAULT '',
		anchor_original_offset INTEGER,
		dismissed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_to_uuid ON feedback(to_uuid)`,

	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_uuid TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		action TEXT NOT NULL,
		source TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_entity_uuid ON events(entity_uuid)`,
}
