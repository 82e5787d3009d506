package watcher

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
	"github.com/mvp-joe/pymetrix/internal/storage"
)

// Test Plan for WatchCoordinator:
// - Changed files are analyzed and upserted into the run
// - Unparsable files are stored as skipped with their failure kind
// - Deleted files are removed from the run
// - Store failures are counted and do not stop the batch
// - Start returns file watcher start errors
// - Start blocks until the context is cancelled and then stops the watcher
// - End to end: editing a file on disk updates the stored run

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// mockFileWatcher is a FileWatcher driven by the test.
type mockFileWatcher struct {
	mu       sync.Mutex
	callback func(files []string)
	startErr error
	stopped  int
}

func (m *mockFileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.callback = callback
	return nil
}

func (m *mockFileWatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

func (m *mockFileWatcher) Pause()  {}
func (m *mockFileWatcher) Resume() {}

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) UpsertRecord(string, metrics.Record) error   { return errors.New("disk full") }
func (failingStore) UpsertSkipped(string, scanner.Skipped) error { return errors.New("disk full") }
func (failingStore) DeleteRecord(string, string) error           { return errors.New("disk full") }

func newRun(t *testing.T, records ...metrics.Record) (*storage.Store, string) {
	t.Helper()
	store := storage.NewStore(storage.NewTestDB(t))
	run, err := store.SaveRun(storage.Run{Source: "watch"}, records, nil)
	require.NoError(t, err)
	return store, run.ID
}

func TestWatchCoordinator_Apply(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "pkg/ok.py", "def f(a, b):\n    return a\n")
	writeFile(t, root, "pkg/bad.py", "def f(:\n")

	store, runID := newRun(t, metrics.Record{File: "pkg/removed.py", LOC: 3, Complexity: 1})
	c := NewWatchCoordinator(root, runID, &mockFileWatcher{}, scanner.New(), store, quietLogger())

	stats := c.apply([]string{"pkg/bad.py", "pkg/ok.py", "pkg/removed.py"})
	assert.Equal(t, UpdateStats{Updated: 1, Skipped: 1, Deleted: 1}, stats)

	records, err := store.Records(runID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "pkg/ok.py", records[0].File)
	assert.Equal(t, 2.0, records[0].AvgParams)

	skipped, err := store.Skipped(runID)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "pkg/bad.py", skipped[0].Path)
	assert.Equal(t, "SyntaxError", skipped[0].Kind)
}

func TestWatchCoordinator_StoreFailures(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.py", "def (\n")

	c := NewWatchCoordinator(root, "run", &mockFileWatcher{}, scanner.New(), failingStore{}, quietLogger())

	stats := c.apply([]string{"a.py", "b.py", "missing.py"})
	assert.Equal(t, UpdateStats{Failed: 3}, stats)
}

func TestWatchCoordinator_StartError(t *testing.T) {
	t.Parallel()

	files := &mockFileWatcher{startErr: errors.New("watch failed")}
	c := NewWatchCoordinator(t.TempDir(), "run", files, scanner.New(), failingStore{}, quietLogger())

	err := c.Start(context.Background())
	assert.EqualError(t, err, "watch failed")
	assert.Equal(t, 1, files.stopped)
}

func TestWatchCoordinator_RoutesBatchesUntilCancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	store, runID := newRun(t)

	files := &mockFileWatcher{}
	c := NewWatchCoordinator(root, runID, files, scanner.New(), store, quietLogger())

	batches := make(chan UpdateStats, 1)
	c.OnBatch(func(_ []string, stats UpdateStats) { batches <- stats })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		files.mu.Lock()
		defer files.mu.Unlock()
		return files.callback != nil
	}, time.Second, 10*time.Millisecond)

	files.mu.Lock()
	callback := files.callback
	files.mu.Unlock()

	callback(nil) // empty batches are ignored
	callback([]string{"a.py"})
	assert.Equal(t, UpdateStats{Updated: 1}, <-batches)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancellation")
	}
	assert.Equal(t, 1, files.stopped)
}

func TestWatchCoordinator_EndToEnd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "mod.py", "x = 1\n")
	store, runID := newRun(t, metrics.Record{File: "mod.py", LOC: 1, Complexity: 1, MaxDepth: 3})

	fw, err := NewFileWatcher(root, newTestMatcher(t), WithDebounce(testDebounce), WithLogger(quietLogger()))
	require.NoError(t, err)

	c := NewWatchCoordinator(root, runID, fw, scanner.New(), store, quietLogger())
	batches := make(chan UpdateStats, 4)
	c.OnBatch(func(_ []string, stats UpdateStats) { batches <- stats })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the coordinator time to start the watcher
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "mod.py"), []byte("if a:\n    x = 1\nelse:\n    x = 2\n"), 0644))

	select {
	case <-batches:
	case <-time.After(3 * time.Second):
		t.Fatal("no batch processed")
	}

	records, err := store.Records(runID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 4, records[0].LOC)
	assert.Equal(t, 2, records[0].Complexity)
}
