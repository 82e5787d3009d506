// Package scanner analyzes every Python file of a source tree in parallel.
//
// A scan never fails because of a single file: files that cannot be read,
// decoded or parsed are collected as Skipped entries and logged, and the
// scan continues with the rest. Only discovery failures and cancellation
// abort a scan.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// Source enumerates and reads the files of one scan.
type Source interface {
	// Files returns the paths to analyze. Paths are used verbatim as record keys.
	Files(ctx context.Context) ([]string, error)

	// ReadFile returns the content of a path returned by Files.
	ReadFile(path string) ([]byte, error)
}

// Skipped describes a file excluded from a scan's records.
type Skipped struct {
	Path string
	Kind metrics.ErrorKind
	Err  error
}

// Result is the outcome of one scan.
type Result struct {
	Records  []metrics.Record // sorted by File
	Skipped  []Skipped        // sorted by Path
	Duration time.Duration
}

// Scanner runs metrics analysis over a Source with bounded parallelism.
type Scanner struct {
	workers  int
	cache    *Cache
	logger   *slog.Logger
	progress ProgressReporter
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers bounds the number of files analyzed concurrently. Zero or less
// uses one worker per CPU.
func WithWorkers(n int) Option {
	return func(s *Scanner) { s.workers = n }
}

// WithCache serves unchanged files from c.
func WithCache(c *Cache) Option {
	return func(s *Scanner) { s.cache = c }
}

// WithLogger sets the logger receiving skip warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(s *Scanner) { s.progress = p }
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		s.workers = runtime.NumCPU()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.progress == nil {
		s.progress = &NoOpProgressReporter{}
	}
	return s
}

// Analyze analyzes one file's content, consulting the cache first.
func (s *Scanner) Analyze(path string, src []byte) (metrics.Record, error) {
	key := Key(path, src)
	if rec, ok := s.cache.Get(key); ok {
		return rec, nil
	}

	rec, err := metrics.AnalyzeSource(path, src)
	if err != nil {
		return metrics.Record{}, err
	}
	s.cache.Set(key, rec)
	return rec, nil
}

// Scan analyzes every file of source.
func (s *Scanner) Scan(ctx context.Context, source Source) (*Result, error) {
	start := time.Now()

	s.progress.OnDiscoveryStart()
	files, err := source.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	s.progress.OnDiscoveryComplete(len(files))
	s.logger.Debug("discovered files", "count", len(files))

	records := make([]*metrics.Record, len(files))
	skipped := make([]*Skipped, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer s.progress.OnFileAnalyzed(path)

			rec, err := s.analyzeFromSource(source, path)
			if err != nil {
				skip := NewSkipped(path, err)
				s.logger.Warn("skipping file", "path", skip.Path, "kind", skip.Kind.String(), "error", skip.Err)
				skipped[i] = &skip
				return nil
			}
			records[i] = &rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Records: make([]metrics.Record, 0, len(files)),
		Skipped: []Skipped{},
	}
	for i := range files {
		switch {
		case records[i] != nil:
			result.Records = append(result.Records, *records[i])
		case skipped[i] != nil:
			result.Skipped = append(result.Skipped, *skipped[i])
		}
	}
	sort.Slice(result.Records, func(i, j int) bool { return result.Records[i].File < result.Records[j].File })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })
	result.Duration = time.Since(start)

	s.logger.Info("scan complete",
		"records", len(result.Records),
		"skipped", len(result.Skipped),
		"duration", result.Duration)
	s.progress.OnComplete(result)

	return result, nil
}

func (s *Scanner) analyzeFromSource(source Source, path string) (metrics.Record, error) {
	src, err := source.ReadFile(path)
	if err != nil {
		return metrics.Record{}, &metrics.AnalysisError{Path: path, Kind: metrics.KindIO, Err: err}
	}
	return s.Analyze(path, src)
}

// NewSkipped converts an analysis failure into a skip entry. Errors that are
// not AnalysisErrors count as IO failures.
func NewSkipped(path string, err error) Skipped {
	var analysisErr *metrics.AnalysisError
	if errors.As(err, &analysisErr) {
		return Skipped{Path: path, Kind: analysisErr.Kind, Err: analysisErr.Err}
	}
	return Skipped{Path: path, Kind: metrics.KindIO, Err: err}
}
