// Package store is the embedded relational persistence layer: four
// tables (providers, conversations, messages, import_events) plus a
// full-text index over message content maintained by triggers in the
// same transaction as the write that produced it (spec.md §4.4).
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/emberlane/chatvault/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a lookup by id or external id matches no
// row.
var ErrNotFound = errors.New("store: not found")

// ConstraintError wraps a SQLite constraint violation (unique, check,
// foreign key) so callers can distinguish it from other write failures
// with errors.As instead of parsing the driver's message text.
type ConstraintError struct {
	Op  string
	Err error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("store: constraint violation during %s: %v", e.Op, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// Store is the embedded database handle. A single connection is used
// throughout: SQLite serializes writes internally and WAL mode lets
// readers proceed concurrently with a writer, so pooling more than one
// write connection buys nothing and risks SQLITE_BUSY.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applies pragmas tuned for
// the latency budget in spec.md §4.4 (WAL journaling, memory-mapped
// reads, a page cache sized for a hot working set), and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA cache_size=-32768",
		"PRAGMA mmap_size=1073741824",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.seedProviders(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seedProviders(ctx context.Context) error {
	for _, tag := range model.AllProviders {
		if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO providers (tag) VALUES (?)`, string(tag)); err != nil {
			return fmt.Errorf("store: seed provider %q: %w", tag, err)
		}
	}
	return nil
}

// providerID looks up the numeric id for a provider tag. Providers are
// seeded at Open, so a miss means an unrecognized tag reached storage.
func (s *Store) providerID(ctx context.Context, tx *sql.Tx, tag model.ProviderTag) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM providers WHERE tag = ?`, string(tag)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: unrecognized provider tag %q", tag)
	}
	if err != nil {
		return 0, fmt.Errorf("store: look up provider %q: %w", tag, err)
	}
	return id, nil
}

func classifyWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, marker := range []string{"UNIQUE constraint", "CHECK constraint", "FOREIGN KEY constraint", "NOT NULL constraint"} {
		if strings.Contains(msg, marker) {
			return &ConstraintError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("store: %s: %w", op, err)
}
