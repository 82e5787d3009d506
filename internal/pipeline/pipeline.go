// Package pipeline builds the defect-prediction dataset of one release.
//
// A run selects the target release from the repository's version tags, mines
// the bug-fix commits of its post-release window, analyzes every Python file
// of the release tree, labels the files touched by those fixes and writes the
// raw and transformed datasets. The run is optionally saved to storage.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/dataset"
	"github.com/mvp-joe/pymetrix/internal/git"
	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
	"github.com/mvp-joe/pymetrix/internal/storage"
)

// RunSource identifies pipeline runs in storage.
const RunSource = "pipeline"

// RunStore persists a finished run. *storage.Store satisfies it.
type RunStore interface {
	SaveRun(run storage.Run, records []metrics.Record, skipped []scanner.Skipped) (*storage.Run, error)
}

// Options configures one pipeline run.
type Options struct {
	Config     *config.Config
	Repository string           // local clone to mine
	OutputDir  string           // directory receiving the datasets
	Scanner    *scanner.Scanner // nil creates a default scanner
	Store      RunStore         // nil skips saving the run
	Logger     *slog.Logger
}

// Report summarizes a pipeline run.
type Report struct {
	Window          git.Window
	BugFixCommits   int
	BuggyFiles      []string
	Records         int
	Buggy           int
	Skipped         []scanner.Skipped
	RawPath         string
	TransformedPath string
	Transform       dataset.TransformReport
	Run             *storage.Run
	Duration        time.Duration
}

// Run executes the pipeline.
func Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sc := opts.Scanner
	if sc == nil {
		sc = scanner.New(scanner.WithLogger(logger))
	}

	repo, err := git.Open(opts.Repository)
	if err != nil {
		return nil, err
	}

	releases, err := repo.Releases(cfg.Git.TagPattern)
	if err != nil {
		return nil, err
	}
	logger.Debug("found releases", "count", len(releases))

	window, err := git.Timeline(releases, cfg.Git.TargetOffset)
	if err != nil {
		return nil, err
	}
	logger.Info("selected target release",
		"release", window.Target.Tag,
		"start", window.StartDate(),
		"end", window.EndDate(),
		"latest", window.Latest.Tag)

	commits, err := repo.BugFixCommits(window.Since, window.Until, cfg.Git.BugfixPattern)
	if err != nil {
		return nil, err
	}
	buggy := git.BuggyFiles(commits, cfg.Git.FileTypes)
	logger.Info("mined bug-fix commits", "commits", len(commits), "buggy_files", len(buggy))

	matcher, err := scanner.NewMatcher(cfg.Scan.Include, cfg.Scan.Ignore)
	if err != nil {
		return nil, fmt.Errorf("invalid scan patterns: %w", err)
	}
	source, err := repo.TreeSource(window.Target.Tag, matcher)
	if err != nil {
		return nil, err
	}

	result, err := sc.Scan(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze release %s: %w", window.Target.Tag, err)
	}

	labeled := metrics.Label(result.Records, metrics.PathSet(buggy))
	report := &Report{
		Window:        window,
		BugFixCommits: len(commits),
		BuggyFiles:    buggy,
		Records:       len(labeled),
		Skipped:       result.Skipped,
	}
	for _, r := range labeled {
		if r.BugLabel {
			report.Buggy++
		}
	}

	report.RawPath = filepath.Join(opts.OutputDir, dataset.RawName(window.Target.Tag))
	if err := dataset.Write(report.RawPath, labeled, dataset.Options{IncludeCalls: cfg.Dataset.IncludeCalls}); err != nil {
		return nil, fmt.Errorf("failed to write raw dataset: %w", err)
	}
	logger.Info("wrote raw dataset", "path", report.RawPath, "records", report.Records, "buggy", report.Buggy)

	transformOpts, err := TransformOptions(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	report.TransformedPath, report.Transform, err = dataset.TransformFile(report.RawPath, transformOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to transform dataset: %w", err)
	}
	logger.Info("wrote transformed dataset",
		"path", report.TransformedPath,
		"kept", report.Transform.Kept,
		"excluded", report.Transform.Excluded,
		"sparse", report.Transform.Sparse,
		"outliers", report.Transform.Outliers)

	report.Duration = time.Since(start)

	if opts.Store != nil {
		run, err := opts.Store.SaveRun(storage.Run{
			Source:     RunSource,
			ReleaseTag: window.Target.Tag,
			StartedAt:  start,
			Duration:   report.Duration,
		}, labeled, result.Skipped)
		if err != nil {
			return nil, err
		}
		report.Run = run
		logger.Info("saved run", "run", run.ID)
	}

	return report, nil
}

// TransformOptions converts the dataset configuration into transform options.
// An empty exclude pattern keeps every path.
func TransformOptions(cfg config.DatasetConfig) (dataset.TransformOptions, error) {
	opts := dataset.TransformOptions{
		MaxZeroFraction: cfg.MaxZeroFraction,
		ZThreshold:      cfg.ZThreshold,
	}
	if cfg.ExcludePattern != "" {
		re, err := regexp.Compile(cfg.ExcludePattern)
		if err != nil {
			return opts, fmt.Errorf("invalid exclude pattern: %w", err)
		}
		opts.Exclude = re
	}
	return opts, nil
}
