package watcher

import (
	"context"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

// FileWatcher monitors source files for changes with debouncing and pause/resume support.
type FileWatcher interface {
	// Start begins watching, calling callback with debounced batches of
	// changed root-relative paths.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause, fires immediately.
	Resume()
}

// PathFilter selects the files and directories to watch. *scanner.Matcher
// satisfies it.
type PathFilter interface {
	Match(relPath string) bool
	Ignored(relPath string) bool
}

// Analyzer computes the record of one file. *scanner.Scanner satisfies it.
type Analyzer interface {
	Analyze(path string, src []byte) (metrics.Record, error)
}

// RecordStore receives per-file updates of a run. *storage.Store satisfies it.
type RecordStore interface {
	UpsertRecord(runID string, rec metrics.Record) error
	UpsertSkipped(runID string, skip scanner.Skipped) error
	DeleteRecord(runID, filePath string) error
}

// UpdateStats summarizes one batch of file changes.
type UpdateStats struct {
	Updated int
	Skipped int
	Deleted int
	Failed  int
}
