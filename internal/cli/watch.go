package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/scanner"
	"github.com/mvp-joe/pymetrix/internal/storage"
	"github.com/mvp-joe/pymetrix/internal/watcher"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Keep the metrics of a directory current while files change",
	Long: `Watch analyzes a directory (default: the current directory), saves the
result as a new run and then re-analyzes Python files as they change. Changed
files are upserted into the run, deleted files are removed and files that stop
parsing are recorded as skipped. Stop with Ctrl+C.

Example:
  pymetrix watch src
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := commandEnvironment()
		if err != nil {
			return err
		}
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		return runWatch(cmd.Context(), env, dir, watchDebounce)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before changed files are analyzed")
}

// runWatch performs the initial scan and watches until ctx is cancelled.
func runWatch(ctx context.Context, env *environment, dir string, debounce time.Duration) error {
	root := env.path(dir)
	if info, err := os.Stat(root); err != nil {
		return fmt.Errorf("failed to access %s: %w", dir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	matcher, err := env.newMatcher()
	if err != nil {
		return err
	}
	sc, cleanup, err := env.newScanner(nil)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := env.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	started := time.Now()
	result, err := sc.Scan(ctx, scanner.NewDirSource(root, matcher))
	if err != nil {
		return fmt.Errorf("initial analysis failed: %w", err)
	}
	run, err := store.SaveRun(storage.Run{
		Source:    root,
		StartedAt: started,
		Duration:  result.Duration,
	}, result.Records, result.Skipped)
	if err != nil {
		return err
	}
	env.logger.Info("initial analysis complete",
		"run", run.ID,
		"records", run.RecordCount,
		"skipped", run.SkippedCount)

	files, err := watcher.NewFileWatcher(root, matcher,
		watcher.WithDebounce(debounce),
		watcher.WithLogger(env.logger))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	coordinator := watcher.NewWatchCoordinator(root, run.ID, files, sc, store, env.logger)
	env.logger.Info("watching for changes", "root", root)

	if err := coordinator.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch mode failed: %w", err)
	}
	env.logger.Info("watch mode stopped")
	return nil
}
