// Package history keeps an append-only SQLite journal of terminal scan
// jobs. The journal is diagnostic: losing it never affects the catalog,
// and a broken journal never fails a scan.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dshills/projdex/pkg/types"
)

// Entry is one recorded scan run.
type Entry struct {
	ID            string          `json:"id"`
	Status        types.JobStatus `json:"status"`
	StartedAt     time.Time       `json:"startedAt"`
	CompletedAt   *time.Time      `json:"completedAt,omitempty"`
	Discovered    int             `json:"discovered"`
	Processed     int             `json:"processed"`
	GitRepos      int             `json:"gitRepos"`
	LocalProjects int             `json:"localProjects"`
	ScanErrors    int             `json:"scanErrors"`
	DurationMS    int64           `json:"durationMs"`
	Error         string          `json:"error,omitempty"`
}

// ListOptions narrows a List call.
type ListOptions struct {
	Status types.JobStatus // "" matches all
	Limit  int             // 0 means DefaultListLimit
}

// DefaultListLimit caps List when the caller does not.
const DefaultListLimit = 50

// Journal is a SQLite-backed scan history.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database and applies pending
// migrations.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one terminal job. Re-recording the same job ID replaces
// the earlier row, so a cancelled-then-drained job lands once.
func (j *Journal) Record(ctx context.Context, job types.Job) error {
	var durationMS int64
	if job.CompletedAt != nil {
		durationMS = job.CompletedAt.Sub(job.StartedAt).Milliseconds()
	}

	var gitRepos, localProjects, scanErrors int
	if job.Result != nil {
		gitRepos = job.Result.Stats.GitRepos
		localProjects = job.Result.Stats.LocalProjects
		scanErrors = len(job.Result.Errors)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO scan_history
			(id, status, started_at, completed_at, discovered, processed,
			 git_repos, local_projects, scan_errors, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			discovered = excluded.discovered,
			processed = excluded.processed,
			git_repos = excluded.git_repos,
			local_projects = excluded.local_projects,
			scan_errors = excluded.scan_errors,
			duration_ms = excluded.duration_ms,
			error = excluded.error`,
		job.ID, string(job.Status), job.StartedAt, job.CompletedAt,
		job.Progress.Discovered, job.Progress.Processed,
		gitRepos, localProjects, scanErrors, durationMS, job.Error)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}
	return nil
}

// List returns recorded scans, most recent first.
func (j *Journal) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, status, started_at, completed_at, discovered, processed,
		       git_repos, local_projects, scan_errors, duration_ms, error
		FROM scan_history`
	args := []any{}
	if opts.Status != "" {
		query += " WHERE status = ?"
		args = append(args, string(opts.Status))
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &status, &e.StartedAt, &completedAt,
			&e.Discovered, &e.Processed, &e.GitRepos, &e.LocalProjects,
			&e.ScanErrors, &e.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Status = types.JobStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		e.Error = errMsg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scan history: %w", err)
	}
	return entries, nil
}
