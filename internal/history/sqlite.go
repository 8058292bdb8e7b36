// Package history persists finished build results in SQLite so the daemon
// can report past builds across restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values stored per build record.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Record is one finished build of a DC file in one format.
type Record struct {
	ID          int64
	Project     string
	Branch      string
	DCFile      string
	Format      string
	Commit      string
	Outcome     string
	ArchivePath string
	LogPath     string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns the build wall time.
func (r *Record) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
}

// Open opens (and initializes) the history database.
// Use ":memory:" for an in-memory database.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL,
		branch TEXT NOT NULL,
		dc_file TEXT NOT NULL,
		format TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		archive_path TEXT,
		log_path TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_project ON builds(project);
	CREATE INDEX IF NOT EXISTS idx_builds_finished ON builds(finished_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Add inserts a finished build record.
func (s *Store) Add(ctx context.Context, rec *Record) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO builds (project, branch, dc_file, format, commit_hash, outcome, archive_path, log_path, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Project, rec.Branch, rec.DCFile, rec.Format, rec.Commit, rec.Outcome,
		rec.ArchivePath, rec.LogPath, rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert build record: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Recent returns the most recently finished builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, branch, dc_file, format, commit_hash, outcome, archive_path, log_path, started_at, finished_at
		 FROM builds ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ForProject returns the most recent builds of one project, newest first.
func (s *Store) ForProject(ctx context.Context, project string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, branch, dc_file, format, commit_hash, outcome, archive_path, log_path, started_at, finished_at
		 FROM builds WHERE project = ? ORDER BY finished_at DESC, id DESC LIMIT ?`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var out []*Record
	for rows.Next() {
		var rec Record
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Project, &rec.Branch, &rec.DCFile, &rec.Format,
			&rec.Commit, &rec.Outcome, &rec.ArchivePath, &rec.LogPath, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan build record: %w", err)
		}
		rec.StartedAt = time.Unix(started, 0)
		rec.FinishedAt = time.Unix(finished, 0)
		out = append(out, &rec)
	}
	return out, rows.Err()
}
