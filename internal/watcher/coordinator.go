package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

// WatchCoordinator routes debounced file changes to the analyzer and keeps
// one stored run current: changed files are re-analyzed and upserted,
// unparsable files become skip entries and deleted files are removed.
type WatchCoordinator struct {
	root     string
	runID    string
	files    FileWatcher
	analyzer Analyzer
	store    RecordStore
	logger   *slog.Logger
	onBatch  func(files []string, stats UpdateStats)
}

// NewWatchCoordinator creates a new watch coordinator for the run runID of
// the directory root.
func NewWatchCoordinator(
	root string,
	runID string,
	files FileWatcher,
	analyzer Analyzer,
	store RecordStore,
	logger *slog.Logger,
) *WatchCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchCoordinator{
		root:     root,
		runID:    runID,
		files:    files,
		analyzer: analyzer,
		store:    store,
		logger:   logger,
	}
}

// OnBatch registers fn to be called after every processed batch.
func (c *WatchCoordinator) OnBatch(fn func(files []string, stats UpdateStats)) {
	c.onBatch = fn
}

// Start begins routing file changes to the store.
// Blocks until context is cancelled.
func (c *WatchCoordinator) Start(ctx context.Context) error {
	if err := c.files.Start(ctx, c.handleFileChange); err != nil {
		c.cleanup()
		return err
	}

	<-ctx.Done()
	c.cleanup()
	return ctx.Err()
}

// cleanup stops the file watcher.
func (c *WatchCoordinator) cleanup() {
	if err := c.files.Stop(); err != nil {
		c.logger.Warn("file watcher stop failed", "error", err)
	}
}

// handleFileChange processes file change events from the file watcher.
func (c *WatchCoordinator) handleFileChange(files []string) {
	if len(files) == 0 {
		return
	}

	c.logger.Debug("processing file changes", "count", len(files))
	stats := c.apply(files)
	c.logger.Info("updated run",
		"run", c.runID,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"deleted", stats.Deleted,
		"failed", stats.Failed)

	if c.onBatch != nil {
		c.onBatch(files, stats)
	}
}

// apply updates the store for each changed root-relative path.
func (c *WatchCoordinator) apply(files []string) UpdateStats {
	var stats UpdateStats

	for _, rel := range files {
		src, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := c.store.DeleteRecord(c.runID, rel); err != nil {
				c.logger.Error("failed to delete record", "path", rel, "error", err)
				stats.Failed++
				continue
			}
			stats.Deleted++
			continue
		case err != nil:
			err = &metrics.AnalysisError{Path: rel, Kind: metrics.KindIO, Err: err}
		default:
			var rec metrics.Record
			rec, err = c.analyzer.Analyze(rel, src)
			if err == nil {
				if err := c.store.UpsertRecord(c.runID, rec); err != nil {
					c.logger.Error("failed to store record", "path", rel, "error", err)
					stats.Failed++
					continue
				}
				stats.Updated++
				continue
			}
		}

		skip := scanner.NewSkipped(rel, err)
		c.logger.Warn("skipping file", "path", skip.Path, "kind", skip.Kind.String(), "error", skip.Err)
		if err := c.store.UpsertSkipped(c.runID, skip); err != nil {
			c.logger.Error("failed to store skipped file", "path", rel, "error", err)
			stats.Failed++
			continue
		}
		stats.Skipped++
	}

	return stats
}
