// Package storage persists scan runs in SQLite: the metrics record of every
// analyzed file and the files each run had to skip. Watch mode keeps the
// latest run current by upserting and deleting single files.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Run describes one persisted scan.
type Run struct {
	ID           string
	Source       string // scanned directory or repository path
	ReleaseTag   string // empty for plain directory scans
	StartedAt    time.Time
	Duration     time.Duration
	RecordCount  int
	SkippedCount int
}

// Store reads and writes scan runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at dbPath and ensures
// the schema exists.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	version, err := GetSchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}

	if version == "0" {
		if err := CreateSchema(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// NewStore wraps a database that already has the schema, e.g. from NewTestDB.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a run with its records and skipped files in one
// transaction. An empty run.ID gets a new UUID and a zero StartedAt is set to
// now; counts are taken from the slices.
func (s *Store) SaveRun(run Run, records []metrics.Record, skipped []scanner.Skipped) (*Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.RecordCount = len(records)
	run.SkippedCount = len(skipped)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	_, err = sq.Insert("runs").
		Columns("run_id", "source", "release_tag", "started_at", "duration_ms", "record_count", "skipped_count").
		Values(
			run.ID,
			run.Source,
			run.ReleaseTag,
			formatTime(run.StartedAt),
			run.Duration.Milliseconds(),
			run.RecordCount,
			run.SkippedCount,
		).
		RunWith(tx).
		Exec()
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	if err := writeRecordsBatch(tx, run.ID, records); err != nil {
		return nil, err
	}
	if err := writeSkippedBatch(tx, run.ID, skipped); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}

	return &run, nil
}

// LatestRun returns the most recently started run.
// Returns (nil, nil) if the store has no runs.
func (s *Store) LatestRun() (*Run, error) {
	run, err := scanRun(selectRuns().
		OrderBy("started_at DESC", "rowid DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// GetRun returns the run with the given ID or ErrRunNotFound.
func (s *Store) GetRun(runID string) (*Run, error) {
	run, err := scanRun(selectRuns().
		Where(sq.Eq{"run_id": runID}).
		RunWith(s.db).
		QueryRow())
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

func selectRuns() sq.SelectBuilder {
	return sq.Select("run_id", "source", "release_tag", "started_at", "duration_ms", "record_count", "skipped_count").
		From("runs")
}

func scanRun(row sq.RowScanner) (*Run, error) {
	run := &Run{}
	var startedAt string
	var durationMS int64

	err := row.Scan(
		&run.ID,
		&run.Source,
		&run.ReleaseTag,
		&startedAt,
		&durationMS,
		&run.RecordCount,
		&run.SkippedCount,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
