package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

// Test Plan for the command environment:
// - loadEnvironment uses defaults without a config file
// - loadEnvironment reads .pymetrix/config.yml below the root or an explicit file
// - loadEnvironment fails for a missing explicit file and invalid values
// - --verbose switches the logger to debug
// - environment.path resolves relative paths against the root
// - newScanner works with and without a result cache
// - formatNumber inserts thousands separators
// - CLIProgressReporter prints a summary unless quiet
// - version prints the build information

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// testEnvironment returns an environment with default configuration rooted
// at a fresh temporary directory.
func testEnvironment(t *testing.T) *environment {
	t.Helper()
	return &environment{
		root:   t.TempDir(),
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		root := t.TempDir()
		env, err := loadEnvironment(root, "", false, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, root, env.root)
		assert.Equal(t, config.Default(), env.cfg)
	})

	t.Run("project config", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, ".pymetrix/config.yml", "scan:\n  workers: 2\ndataset:\n  include_calls: true\n")

		env, err := loadEnvironment(root, "", false, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 2, env.cfg.Scan.Workers)
		assert.True(t, env.cfg.Dataset.IncludeCalls)
		assert.Equal(t, []string{"**/*.py"}, env.cfg.Scan.Include)
	})

	t.Run("explicit config file", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "custom.yml", "git:\n  target_offset: 1\n")

		env, err := loadEnvironment(root, filepath.Join(root, "custom.yml"), false, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 1, env.cfg.Git.TargetOffset)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		root := t.TempDir()
		_, err := loadEnvironment(root, filepath.Join(root, "absent.yml"), false, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, ".pymetrix/config.yml", "scan:\n  workers: -1\n")

		_, err := loadEnvironment(root, "", false, &bytes.Buffer{})
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrInvalidWorkers)
	})

	t.Run("verbose logs debug", func(t *testing.T) {
		var logs bytes.Buffer
		env, err := loadEnvironment(t.TempDir(), "", true, &logs)
		require.NoError(t, err)
		assert.Equal(t, "debug", env.cfg.Logging.Level)

		env.logger.Debug("probe")
		assert.Contains(t, logs.String(), "probe")
	})
}

func TestEnvironment_Path(t *testing.T) {
	t.Parallel()

	env := testEnvironment(t)
	assert.Equal(t, filepath.Join(env.root, ".pymetrix", "metrics.db"), env.path(".pymetrix/metrics.db"))

	abs := filepath.Join(t.TempDir(), "out")
	assert.Equal(t, abs, env.path(abs))
}

func TestEnvironment_NewScanner(t *testing.T) {
	t.Parallel()

	for _, cacheSize := range []int{0, 16} {
		env := testEnvironment(t)
		env.cfg.Scan.CacheSize = cacheSize

		sc, cleanup, err := env.newScanner(nil)
		require.NoError(t, err)
		rec, err := sc.Analyze("a.py", []byte("x = 1\n"))
		require.NoError(t, err)
		assert.Equal(t, 1, rec.LOC)
		cleanup()
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		0:        "0",
		7:        "7",
		999:      "999",
		1000:     "1,000",
		12345:    "12,345",
		1234567:  "1,234,567",
		-1234:    "-1,234",
		100000:   "100,000",
		10000000: "10,000,000",
	}
	for n, want := range tests {
		assert.Equal(t, want, formatNumber(n), "formatNumber(%d)", n)
	}
}

func TestCLIProgressReporter(t *testing.T) {
	t.Parallel()

	result := &scanner.Result{
		Records: make([]metrics.Record, 3),
		Skipped: []scanner.Skipped{{Path: "bad.py"}},
	}

	t.Run("reports progress and summary", func(t *testing.T) {
		var out bytes.Buffer
		p := NewCLIProgressReporter(&out, false)
		p.OnDiscoveryStart()
		p.OnDiscoveryComplete(4)
		for _, f := range []string{"a.py", "b.py", "c.py", "bad.py"} {
			p.OnFileAnalyzed(f)
		}
		p.OnComplete(result)

		assert.Contains(t, out.String(), "Analyzing 4 Python files")
		assert.Contains(t, out.String(), "Analysis complete: 3 records")
		assert.Contains(t, out.String(), "Skipped:   1 files")
	})

	t.Run("quiet", func(t *testing.T) {
		var out bytes.Buffer
		p := NewCLIProgressReporter(&out, true)
		p.OnDiscoveryStart()
		p.OnDiscoveryComplete(4)
		p.OnFileAnalyzed("a.py")
		p.OnComplete(result)
		assert.Empty(t, out.String())
	})
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "pymetrix "+Version)
	assert.Contains(t, out.String(), "Git commit: "+GitCommit)
}
