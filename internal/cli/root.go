package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/scanner"
	"github.com/mvp-joe/pymetrix/internal/storage"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pymetrix",
	Short: "Static code metrics and defect-prediction datasets for Python projects",
	Long: `pymetrix computes static code metrics for Python source files and builds
defect-prediction datasets from a project's release history.

Every file gets one record: lines of code, comment and blank lines, function
and class counts, average parameters per function, average methods per class,
raise and except counts, cyclomatic complexity and maximum syntax tree depth.

Configuration is read from .pymetrix/config.yml in the current directory (or
the file given with --config) and PYMETRIX_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .pymetrix/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// environment is the configuration every command starts from.
type environment struct {
	root   string // project root, the working directory
	cfg    *config.Config
	logger *slog.Logger
}

// loadEnvironment loads the configuration of the project at root and builds
// the process logger writing to logOut.
func loadEnvironment(root, configFile string, debug bool, logOut io.Writer) (*environment, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	loader := config.NewLoader(absRoot)
	if configFile != "" {
		loader = config.NewFileLoader(configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if debug {
		cfg.Logging.Level = "debug"
	}
	logger, err := cfg.Logging.NewLogger(logOut)
	if err != nil {
		return nil, err
	}

	return &environment{root: absRoot, cfg: cfg, logger: logger}, nil
}

// commandEnvironment loads the environment for the current working directory
// using the persistent flags.
func commandEnvironment() (*environment, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return loadEnvironment(wd, cfgFile, verbose, os.Stderr)
}

// path resolves a configured path against the project root.
func (e *environment) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.root, p)
}

// newScanner builds a scanner from the scan configuration. The returned
// cleanup releases the result cache.
func (e *environment) newScanner(progress scanner.ProgressReporter) (*scanner.Scanner, func(), error) {
	opts := []scanner.Option{
		scanner.WithWorkers(e.cfg.Scan.Workers),
		scanner.WithLogger(e.logger),
	}
	if progress != nil {
		opts = append(opts, scanner.WithProgress(progress))
	}

	cleanup := func() {}
	if e.cfg.Scan.CacheSize > 0 {
		cache, err := scanner.NewCache(e.cfg.Scan.CacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create result cache: %w", err)
		}
		opts = append(opts, scanner.WithCache(cache))
		cleanup = cache.Close
	}

	return scanner.New(opts...), cleanup, nil
}

// newMatcher compiles the configured include and ignore patterns.
func (e *environment) newMatcher() (*scanner.Matcher, error) {
	m, err := scanner.NewMatcher(e.cfg.Scan.Include, e.cfg.Scan.Ignore)
	if err != nil {
		return nil, fmt.Errorf("invalid scan patterns: %w", err)
	}
	return m, nil
}

// openStore opens the configured database, creating it when missing.
func (e *environment) openStore() (*storage.Store, error) {
	return storage.Open(e.path(e.cfg.Storage.Database))
}
