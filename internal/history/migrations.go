package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion tracks the journal schema version.
const CurrentSchemaVersion = "1.1.0"

// Migration represents a journal schema migration.
type Migration struct {
	Version string
	Up      string
}

// AllMigrations contains all journal migrations in order.
var AllMigrations = []Migration{
	{Version: "1.0.0", Up: migrationV1Up},
	{Version: "1.1.0", Up: migrationV1_1Up},
}

const migrationV1Up = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- One row per terminal scan job
CREATE TABLE IF NOT EXISTS scan_history (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    discovered INTEGER DEFAULT 0,
    processed INTEGER DEFAULT 0,
    git_repos INTEGER DEFAULT 0,
    local_projects INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_scan_history_started ON scan_history(started_at);
CREATE INDEX IF NOT EXISTS idx_scan_history_status ON scan_history(status);
`

const migrationV1_1Up = `
-- Candidates that failed extraction during the scan
ALTER TABLE scan_history ADD COLUMN scan_errors INTEGER DEFAULT 0;
`

// maxRecordedVersion returns the highest version in schema_version, or
// 0.0.0 when the table is empty.
func maxRecordedVersion(ctx context.Context, db *sql.DB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer rows.Close()

	max := semver.MustParse("0.0.0")
	for rows.Next() {
		var versionStr string
		if err := rows.Scan(&versionStr); err != nil {
			return nil, fmt.Errorf("failed to read schema_version: %w", err)
		}
		version, err := semver.NewVersion(versionStr)
		if err != nil {
			return nil, fmt.Errorf("invalid recorded schema version %s: %w", versionStr, err)
		}
		if version.GreaterThan(max) {
			max = version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	return max, nil
}

// ApplyMigrations runs all pending migrations.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		// applied_at has second resolution, so migrations recorded in the
		// same second tie; take the semver max instead of ordering by time.
		currentVersion, err = maxRecordedVersion(ctx, db)
		if err != nil {
			return err
		}
	}

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}
		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err := db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}
		currentVersion = migrationVersion
	}

	return nil
}
