package storage

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// SkippedFile is a stored skip entry. The original error is kept as text.
type SkippedFile struct {
	Path    string
	Kind    string // IOError, LexError, SyntaxError or InternalError
	Message string
}

// Records returns the records of a run ordered by file path.
func (s *Store) Records(runID string) ([]metrics.Record, error) {
	rows, err := sq.Select(
		"file_path",
		"loc", "comment_lines", "blank_lines",
		"function_count", "class_count", "avg_params", "avg_methods",
		"raise_count", "except_count", "complexity", "max_depth",
		"internal_calls", "external_calls", "bug",
	).
		From("records").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("file_path").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query records of run %s: %w", runID, err)
	}
	defer rows.Close()

	records := []metrics.Record{}
	for rows.Next() {
		var r metrics.Record
		err := rows.Scan(
			&r.File,
			&r.LOC,
			&r.CommentLines,
			&r.BlankLines,
			&r.Functions,
			&r.Classes,
			&r.AvgParams,
			&r.AvgMethods,
			&r.Raises,
			&r.Excepts,
			&r.Complexity,
			&r.MaxDepth,
			&r.InternalCalls,
			&r.ExternalCalls,
			&r.BugLabel,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// Skipped returns the skipped files of a run ordered by path.
func (s *Store) Skipped(runID string) ([]SkippedFile, error) {
	rows, err := sq.Select("file_path", "kind", "message").
		From("skipped").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("file_path").
		RunWith(s.db).
		Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query skipped files of run %s: %w", runID, err)
	}
	defer rows.Close()

	skipped := []SkippedFile{}
	for rows.Next() {
		var f SkippedFile
		if err := rows.Scan(&f.Path, &f.Kind, &f.Message); err != nil {
			return nil, fmt.Errorf("failed to scan skipped file: %w", err)
		}
		skipped = append(skipped, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return skipped, nil
}
