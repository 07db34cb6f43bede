// Package history records finished exports in a SQLite database so they can
// be listed after the in-memory job state is gone.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get for an unknown export id.
var ErrNotFound = errors.New("export history entry not found")

// Status values stored with each entry.
const (
	StatusComplete  = "complete"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry is one finished export.
type Entry struct {
	ID           string    `json:"id"`
	TableKey     string    `json:"table_key"`
	Label        string    `json:"label"`
	Path         string    `json:"path"`
	Status       string    `json:"status"`
	TotalRows    int64     `json:"total_rows"`
	RowsWritten  int64     `json:"rows_written"`
	BytesWritten int64     `json:"bytes_written"`
	RenderErrors int64     `json:"render_errors"`
	Workers      int       `json:"workers"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration returns how long the export ran.
func (e Entry) Duration() time.Duration { return e.FinishedAt.Sub(e.StartedAt) }

const schema = `
CREATE TABLE IF NOT EXISTS exports (
	id            TEXT PRIMARY KEY,
	table_key     TEXT NOT NULL,
	label         TEXT NOT NULL,
	path          TEXT NOT NULL,
	status        TEXT NOT NULL,
	total_rows    INTEGER NOT NULL,
	rows_written  INTEGER NOT NULL,
	bytes_written INTEGER NOT NULL,
	render_errors INTEGER NOT NULL,
	workers       INTEGER NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	started_at    INTEGER NOT NULL,
	finished_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS exports_table_finished ON exports (table_key, finished_at);
`

const columns = `id, table_key, label, path, status, total_rows, rows_written,
	bytes_written, render_errors, workers, error, started_at, finished_at`

// Store is a SQLite-backed export history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts or replaces an entry.
func (s *Store) Record(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO exports (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TableKey, e.Label, e.Path, e.Status,
		e.TotalRows, e.RowsWritten, e.BytesWritten, e.RenderErrors, e.Workers, e.Error,
		e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record export %s: %w", e.ID, err)
	}
	return nil
}

// Get returns a single entry.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM exports WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get export %s: %w", id, err)
	}
	return e, nil
}

// List returns the newest entries first. An empty tableKey lists every
// table; limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, tableKey string, limit int) ([]Entry, error) {
	query := `SELECT ` + columns + ` FROM exports`
	var args []any
	if tableKey != "" {
		query += ` WHERE table_key = ?`
		args = append(args, tableKey)
	}
	query += ` ORDER BY finished_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries that finished before the cutoff and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE finished_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune exports: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e                 Entry
		started, finished int64
	)
	err := sc.Scan(&e.ID, &e.TableKey, &e.Label, &e.Path, &e.Status,
		&e.TotalRows, &e.RowsWritten, &e.BytesWritten, &e.RenderErrors, &e.Workers, &e.Error,
		&started, &finished)
	if err != nil {
		return Entry{}, err
	}
	e.StartedAt = time.UnixMilli(started).UTC()
	e.FinishedAt = time.UnixMilli(finished).UTC()
	return e, nil
}
