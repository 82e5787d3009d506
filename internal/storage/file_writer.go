package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

var recordColumns = []string{
	"run_id", "file_path",
	"loc", "comment_lines", "blank_lines",
	"function_count", "class_count", "avg_params", "avg_methods",
	"raise_count", "except_count", "complexity", "max_depth",
	"internal_calls", "external_calls", "bug", "updated_at",
}

func recordValues(runID string, r metrics.Record, now string) []interface{} {
	return []interface{}{
		runID, r.File,
		r.LOC, r.CommentLines, r.BlankLines,
		r.Functions, r.Classes, r.AvgParams, r.AvgMethods,
		r.Raises, r.Excepts, r.Complexity, r.MaxDepth,
		r.InternalCalls, r.ExternalCalls, r.BugLabel, now,
	}
}

// writeRecordsBatch inserts records with one prepared statement.
func writeRecordsBatch(tx *sql.Tx, runID string, records []metrics.Record) error {
	if len(records) == 0 {
		return nil
	}

	now := formatTime(time.Now())

	// Build the query once with Squirrel, then get SQL for preparation
	sqlStr, _, err := sq.Insert("records").
		Columns(recordColumns...).
		Values(recordValues(runID, metrics.Record{}, now)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(recordValues(runID, r, now)...); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.File, err)
		}
	}
	return nil
}

// writeSkippedBatch inserts skipped files with one prepared statement.
func writeSkippedBatch(tx *sql.Tx, runID string, skipped []scanner.Skipped) error {
	if len(skipped) == 0 {
		return nil
	}

	sqlStr, _, err := sq.Insert("skipped").
		Columns("run_id", "file_path", "kind", "message").
		Values("", "", "", "").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL: %w", err)
	}

	stmt, err := tx.Prepare(sqlStr)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range skipped {
		if _, err := stmt.Exec(runID, s.Path, s.Kind.String(), errorMessage(s.Err)); err != nil {
			return fmt.Errorf("failed to insert skipped file %s: %w", s.Path, err)
		}
	}
	return nil
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// UpsertRecord writes or replaces the record of one file in a run. A skipped
// entry for the same file is removed, since the file now analyzes cleanly.
func (s *Store) UpsertRecord(runID string, rec metrics.Record) error {
	return s.updateFile(runID, rec.File, func(tx *sql.Tx) error {
		_, err := sq.Insert("records").
			Columns(recordColumns...).
			Values(recordValues(runID, rec, formatTime(time.Now()))...).
			Options("OR REPLACE").
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.File, err)
		}

		_, err = sq.Delete("skipped").
			Where(sq.Eq{"run_id": runID, "file_path": rec.File}).
			RunWith(tx).
			Exec()
		return err
	})
}

// UpsertSkipped marks one file of a run as skipped, replacing its record.
func (s *Store) UpsertSkipped(runID string, skip scanner.Skipped) error {
	return s.updateFile(runID, skip.Path, func(tx *sql.Tx) error {
		_, err := sq.Delete("records").
			Where(sq.Eq{"run_id": runID, "file_path": skip.Path}).
			RunWith(tx).
			Exec()
		if err != nil {
			return err
		}

		_, err = sq.Insert("skipped").
			Columns("run_id", "file_path", "kind", "message").
			Values(runID, skip.Path, skip.Kind.String(), errorMessage(skip.Err)).
			Options("OR REPLACE").
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("failed to upsert skipped file %s: %w", skip.Path, err)
		}
		return nil
	})
}

// DeleteRecord removes every trace of a file from a run. Deleting a file the
// run does not know is not an error.
func (s *Store) DeleteRecord(runID, filePath string) error {
	return s.updateFile(runID, filePath, func(tx *sql.Tx) error {
		for _, table := range []string{"records", "skipped"} {
			_, err := sq.Delete(table).
				Where(sq.Eq{"run_id": runID, "file_path": filePath}).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("failed to delete %s from %s: %w", filePath, table, err)
			}
		}
		return nil
	})
}

// updateFile runs fn in a transaction after checking the run exists, then
// refreshes the run's denormalized counts.
func (s *Store) updateFile(runID, filePath string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	var exists int
	err = sq.Select("COUNT(*)").
		From("runs").
		Where(sq.Eq{"run_id": runID}).
		RunWith(tx).
		QueryRow().
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}

	if err := fn(tx); err != nil {
		return err
	}

	_, err = sq.Update("runs").
		Set("record_count", sq.Expr("(SELECT COUNT(*) FROM records WHERE run_id = ?)", runID)).
		Set("skipped_count", sq.Expr("(SELECT COUNT(*) FROM skipped WHERE run_id = ?)", runID)).
		Where(sq.Eq{"run_id": runID}).
		RunWith(tx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to refresh counts for %s: %w", filePath, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
