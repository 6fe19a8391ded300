// Package journal keeps a local history of sweep runs in SQLite. The
// journal is an operator convenience: recording failures are logged and
// never fail the sweep that produced them.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded sweep outcome.
type Run struct {
	ID           string
	Target       string
	Strategy     string
	Started      time.Time
	Duration     time.Duration
	Scanned      int
	Kept         int
	Expendable   int
	Deleted      int
	BytesFreed   int64
	DryRun       bool
	Aborted      bool
	Truncated    bool
	ManifestPath string
	Error        string
}

// Journal stores run history in a single-file SQLite database.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path with WAL mode enabled.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Strictly one connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return j, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate() error {
	_, err := j.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    target TEXT NOT NULL,
    strategy TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    scanned INTEGER NOT NULL DEFAULT 0,
    kept INTEGER NOT NULL DEFAULT 0,
    expendable INTEGER NOT NULL DEFAULT 0,
    deleted INTEGER NOT NULL DEFAULT 0,
    bytes_freed INTEGER NOT NULL DEFAULT 0,
    dry_run INTEGER NOT NULL DEFAULT 0,
    aborted INTEGER NOT NULL DEFAULT 0,
    truncated INTEGER NOT NULL DEFAULT 0,
    manifest_path TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Record inserts one finished run.
func (j *Journal) Record(ctx context.Context, r *Run) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, target, strategy, started_at, duration_ms, scanned, kept, expendable,
		                   deleted, bytes_freed, dry_run, aborted, truncated, manifest_path, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Target, r.Strategy, r.Started.Unix(), r.Duration.Milliseconds(), r.Scanned, r.Kept,
		r.Expendable, r.Deleted, r.BytesFreed, r.DryRun, r.Aborted, r.Truncated, r.ManifestPath, r.Error)
	return err
}

// Recent returns up to limit runs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, target, strategy, started_at, duration_ms, scanned, kept, expendable,
		        deleted, bytes_freed, dry_run, aborted, truncated, manifest_path, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt, durationMS int64
		if err := rows.Scan(&r.ID, &r.Target, &r.Strategy, &startedAt, &durationMS, &r.Scanned, &r.Kept,
			&r.Expendable, &r.Deleted, &r.BytesFreed, &r.DryRun, &r.Aborted, &r.Truncated,
			&r.ManifestPath, &r.Error); err != nil {
			return nil, err
		}
		r.Started = time.Unix(startedAt, 0).UTC()
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, nil
}
