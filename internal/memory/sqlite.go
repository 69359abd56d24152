package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	symbol     TEXT PRIMARY KEY,
	fast       INTEGER NOT NULL,
	slow       INTEGER NOT NULL,
	objective  REAL NOT NULL,
	pick_label TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entry_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT NOT NULL,
	fast       INTEGER NOT NULL,
	slow       INTEGER NOT NULL,
	objective  REAL NOT NULL,
	pick_label TEXT NOT NULL DEFAULT '',
	forced     INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entry_history_symbol ON entry_history(symbol);
`

// SQLite is a Store backed by a SQLite file. Each upsert is a
// read-compare-write inside one transaction.
type SQLite struct {
	db   *sql.DB
	path string
	opts options
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Use WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer connection keeps upserts serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db, path: path, opts: buildOptions(opts)}, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

// Get returns the entry for symbol.
func (s *SQLite) Get(ctx context.Context, symbol string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, fast, slow, objective, pick_label, updated_at FROM entries WHERE symbol = ?`,
		strings.ToUpper(symbol))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("memory get %s: %w", symbol, err)
	}
	return e, true, nil
}

// Upsert applies u if it improves on the stored entry.
func (s *SQLite) Upsert(ctx context.Context, u Update) (applied bool, err error) {
	u, err = normalize(u)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("memory begin: %w", err)
	}
	defer func() {
		if !applied {
			tx.Rollback()
		}
	}()

	var current Entry
	exists := true
	err = tx.QueryRowContext(ctx, `SELECT objective FROM entries WHERE symbol = ?`, u.Symbol).Scan(&current.Objective)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return false, fmt.Errorf("memory read %s: %w", u.Symbol, err)
	}
	if !improves(u, current, exists) {
		return false, nil
	}

	stamp := s.opts.now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entries (symbol, fast, slow, objective, pick_label, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			fast = excluded.fast,
			slow = excluded.slow,
			objective = excluded.objective,
			pick_label = excluded.pick_label,
			updated_at = excluded.updated_at`,
		u.Symbol, u.Params.Fast, u.Params.Slow, u.Objective, u.PickLabel, stamp); err != nil {
		return false, fmt.Errorf("memory write %s: %w", u.Symbol, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entry_history (symbol, fast, slow, objective, pick_label, forced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Symbol, u.Params.Fast, u.Params.Slow, u.Objective, u.PickLabel, u.Force, stamp); err != nil {
		return false, fmt.Errorf("memory history %s: %w", u.Symbol, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("memory commit: %w", err)
	}
	return true, nil
}

// List returns all entries ordered by symbol.
func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, fast, slow, objective, pick_label, updated_at FROM entries ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("memory list: %w", err)
	}
	return collect(rows)
}

// Recent returns the last n applied updates, newest first.
func (s *SQLite) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, fast, slow, objective, pick_label, updated_at FROM entry_history ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("memory recent: %w", err)
	}
	return collect(rows)
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e     Entry
		stamp string
	)
	if err := row.Scan(&e.Symbol, &e.Params.Fast, &e.Params.Slow, &e.Objective, &e.PickLabel, &stamp); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return Entry{}, fmt.Errorf("bad updated_at %q: %w", stamp, err)
	}
	e.UpdatedAt = t
	return e, nil
}

func collect(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
