package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is the version written by CreateSchema.
const SchemaVersion = "1"

// CreateSchema creates the tables and indexes of the metrics store.
// Uses a transaction so schema creation succeeds or fails as a whole.
//
// Schema includes:
//   - runs: one row per scan (directory scan or release pipeline)
//   - records: one metrics row per analyzed file and run
//   - skipped: files a run could not analyze, with the failure kind
//   - store_metadata: key/value bootstrap data (schema_version)
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	if _, err := tx.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Create all tables in dependency order
	tables := []struct {
		name string
		ddl  string
	}{
		{"runs", createRunsTable},
		{"records", createRecordsTable},
		{"skipped", createSkippedTable},
		{"store_metadata", createStoreMetadataTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		"INSERT INTO store_metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)",
		SchemaVersion, now,
	); err != nil {
		return fmt.Errorf("failed to bootstrap store_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}

	return nil
}

// GetSchemaVersion retrieves the schema version from store_metadata.
// Returns "0" if the table doesn't exist (new database).
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='store_metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check store_metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil // New database
	}

	var version string
	err = db.QueryRow("SELECT value FROM store_metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in store_metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

// UpdateSchemaVersion sets or updates the schema version in store_metadata.
func UpdateSchemaVersion(db *sql.DB, version string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO store_metadata (key, value, updated_at)
		VALUES ('schema_version', ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := db.Exec(query, version, now); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

// Table DDL constants

const createRunsTable = `
CREATE TABLE runs (
    run_id TEXT PRIMARY KEY,                     -- UUID v4
    source TEXT NOT NULL,                        -- Scanned directory or repository path
    release_tag TEXT NOT NULL DEFAULT '',        -- Target release for pipeline runs
    started_at TEXT NOT NULL,                    -- ISO 8601
    duration_ms INTEGER NOT NULL DEFAULT 0,
    record_count INTEGER NOT NULL DEFAULT 0,     -- Denormalized count
    skipped_count INTEGER NOT NULL DEFAULT 0     -- Denormalized count
)
`

const createRecordsTable = `
CREATE TABLE records (
    run_id TEXT NOT NULL,
    file_path TEXT NOT NULL,                     -- Path relative to the scan root
    loc INTEGER NOT NULL,
    comment_lines INTEGER NOT NULL,
    blank_lines INTEGER NOT NULL,
    function_count INTEGER NOT NULL,
    class_count INTEGER NOT NULL,
    avg_params REAL NOT NULL,
    avg_methods REAL NOT NULL,
    raise_count INTEGER NOT NULL,
    except_count INTEGER NOT NULL,
    complexity INTEGER NOT NULL,
    max_depth INTEGER NOT NULL,
    internal_calls INTEGER NOT NULL DEFAULT 0,
    external_calls INTEGER NOT NULL DEFAULT 0,
    bug INTEGER NOT NULL DEFAULT 0,              -- Boolean
    updated_at TEXT NOT NULL,                    -- ISO 8601, changes on watch-mode upserts
    PRIMARY KEY (run_id, file_path),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createSkippedTable = `
CREATE TABLE skipped (
    run_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    kind TEXT NOT NULL,                          -- IOError, LexError, SyntaxError, InternalError
    message TEXT NOT NULL,
    PRIMARY KEY (run_id, file_path),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createStoreMetadataTable = `
CREATE TABLE store_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

// getAllIndexes returns all index creation statements.
func getAllIndexes() []string {
	return []string{
		"CREATE INDEX idx_runs_started_at ON runs(started_at)",
		"CREATE INDEX idx_records_bug ON records(run_id, bug)",
		"CREATE INDEX idx_skipped_kind ON skipped(run_id, kind)",
	}
}
