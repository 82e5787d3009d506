package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/dataset"
	"github.com/mvp-joe/pymetrix/internal/git"
	"github.com/mvp-joe/pymetrix/internal/storage"
)

// Test Plan for Run:
// - The third newest non-patch release is analyzed from its tree
// - Files changed by bug-fix commits in the window are labelled buggy
// - Raw and transformed datasets are written with release-derived names
// - The run is saved with the release tag and every record
// - Too few releases fail with ErrNotEnoughReleases
// - A directory that is not a repository fails with ErrNotGitRepo
// - TransformOptions compiles the exclude pattern and rejects invalid ones

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 12, 0, 0, 0, time.UTC)
}

// projectRepo creates a repository with one commit per entry, tagging the
// commits that name a tag.
func projectRepo(t *testing.T, history []historyEntry) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for i, entry := range history {
		for rel, content := range entry.files {
			path := filepath.Join(dir, filepath.FromSlash(rel))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))
			_, err := wt.Add(rel)
			require.NoError(t, err)
		}

		hash, err := wt.Commit(entry.message, &gogit.CommitOptions{
			Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: day(i + 1)},
		})
		require.NoError(t, err)

		if entry.tag != "" {
			_, err := repo.CreateTag(entry.tag, hash, nil)
			require.NoError(t, err)
		}
	}

	return dir
}

type historyEntry struct {
	message string
	tag     string
	files   map[string]string
}

var threeReleases = []historyEntry{
	{message: "Initial import", tag: "1.0.0", files: map[string]string{
		"setup.py":           "from setuptools import setup\nsetup()\n",
		"pkg/core.py":        "def run(a):\n    if a:\n        return 1\n    return 0\n",
		"pkg/helpers.py":     "def add(a, b):\n    return a + b\n",
		"tests/test_core.py": "def test_run():\n    assert True\n",
		"README.md":          "# demo\n",
	}},
	{message: "Fix crash in core", files: map[string]string{
		"pkg/core.py": "def run(a):\n    if a is None:\n        return 0\n    return 1\n",
	}},
	{message: "Add feature", tag: "1.1.0", files: map[string]string{
		"pkg/feature.py": "def feature():\n    return 42\n",
	}},
	{message: "Fix bug in helpers", files: map[string]string{
		"pkg/helpers.py": "def add(a, b):\n    return (a or 0) + b\n",
		"README.md":      "# demo\n\nUsage.\n",
	}},
	{message: "Prepare release", tag: "2.0.0", files: map[string]string{
		"CHANGELOG.md": "2.0.0\n",
	}},
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestRun(t *testing.T) {
	t.Parallel()

	repoDir := projectRepo(t, threeReleases)
	outDir := filepath.Join(t.TempDir(), "datasets")
	store := storage.NewStore(storage.NewTestDB(t))

	report, err := Run(context.Background(), Options{
		Config:     config.Default(),
		Repository: repoDir,
		OutputDir:  outDir,
		Store:      store,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", report.Window.Target.Tag)
	assert.Equal(t, "2.0.0", report.Window.Latest.Tag)
	assert.Equal(t, "2024-03-01", report.Window.StartDate())
	assert.Equal(t, "2024-03-05", report.Window.EndDate())
	assert.Equal(t, 2, report.BugFixCommits)
	assert.Equal(t, []string{"pkg/core.py", "pkg/helpers.py"}, report.BuggyFiles)
	assert.Equal(t, 4, report.Records)
	assert.Equal(t, 2, report.Buggy)
	assert.Empty(t, report.Skipped)

	// Raw dataset
	assert.Equal(t, filepath.Join(outDir, "1_0_0_sdp_pos_release_raw_dataset.csv"), report.RawPath)
	records, _, err := dataset.Read(report.RawPath)
	require.NoError(t, err)
	labels := make(map[string]bool, len(records))
	for _, r := range records {
		labels[r.File] = r.BugLabel
	}
	assert.Equal(t, map[string]bool{
		"pkg/core.py":        true,
		"pkg/helpers.py":     true,
		"setup.py":           false,
		"tests/test_core.py": false,
	}, labels)

	// Transformed dataset
	assert.Equal(t, filepath.Join(outDir, "1_0_0_sdp_pos_release_trf_dataset.csv"), report.TransformedPath)
	assert.FileExists(t, report.TransformedPath)
	tr := report.Transform
	assert.Equal(t, 4, tr.Input)
	assert.Equal(t, 1, tr.Excluded)
	assert.Equal(t, tr.Input, tr.Excluded+tr.Sparse+tr.Outliers+tr.Kept)

	// Stored run
	require.NotNil(t, report.Run)
	run, err := store.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, report.Run.ID, run.ID)
	assert.Equal(t, RunSource, run.Source)
	assert.Equal(t, "1.0.0", run.ReleaseTag)
	assert.Equal(t, 4, run.RecordCount)

	stored, err := store.Records(run.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestRun_WithoutStore(t *testing.T) {
	t.Parallel()

	report, err := Run(context.Background(), Options{
		Repository: projectRepo(t, threeReleases),
		OutputDir:  t.TempDir(),
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	assert.Nil(t, report.Run)
	assert.FileExists(t, report.RawPath)
}

func TestRun_NotEnoughReleases(t *testing.T) {
	t.Parallel()

	repoDir := projectRepo(t, threeReleases[:2])
	_, err := Run(context.Background(), Options{
		Repository: repoDir,
		OutputDir:  t.TempDir(),
		Logger:     quietLogger(),
	})
	assert.ErrorIs(t, err, git.ErrNotEnoughReleases)
}

func TestRun_NotARepository(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Options{
		Repository: t.TempDir(),
		OutputDir:  t.TempDir(),
		Logger:     quietLogger(),
	})
	assert.ErrorIs(t, err, git.ErrNotGitRepo)
}

func TestTransformOptions(t *testing.T) {
	t.Parallel()

	opts, err := TransformOptions(config.Default().Dataset)
	require.NoError(t, err)
	require.NotNil(t, opts.Exclude)
	assert.True(t, opts.Exclude.MatchString("tests/test_core.py"))
	assert.False(t, opts.Exclude.MatchString("pkg/core.py"))
	assert.Equal(t, 0.5, opts.MaxZeroFraction)
	assert.Equal(t, 3.0, opts.ZThreshold)

	opts, err = TransformOptions(config.DatasetConfig{ZThreshold: 2})
	require.NoError(t, err)
	assert.Nil(t, opts.Exclude)

	_, err = TransformOptions(config.DatasetConfig{ExcludePattern: "(unclosed"})
	assert.Error(t, err)
}
