package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/dataset"
	"github.com/mvp-joe/pymetrix/internal/scanner"
	"github.com/mvp-joe/pymetrix/internal/storage"
)

// analyzeOptions holds the flags of the analyze command.
type analyzeOptions struct {
	output string
	save   bool
	quiet  bool
}

var analyzeFlags analyzeOptions

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [dir]",
	Short: "Compute metrics for every Python file of a directory",
	Long: `Analyze scans a directory tree (default: the current directory), computes
the metrics record of every Python file and writes them as a semicolon-delimited
CSV dataset. Files that cannot be read, decoded or parsed are logged and skipped.

Examples:
  # Print the dataset of the current project
  pymetrix analyze

  # Write the dataset of src/ to a file and save the run
  pymetrix analyze src -o metrics.csv --save
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
		_, err = runAnalyze(cmd.Context(), env, dir, analyzeFlags, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeFlags.output, "output", "o", "", "write the dataset to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeFlags.save, "save", false, "save the run to the metrics database")
	analyzeCmd.Flags().BoolVarP(&analyzeFlags.quiet, "quiet", "q", false, "disable progress output")
}

// runAnalyze scans dir and writes its dataset to opts.output or stdout.
// Progress goes to stderr. Returns the scan result.
func runAnalyze(ctx context.Context, env *environment, dir string, opts analyzeOptions, stdout, stderr io.Writer) (*scanner.Result, error) {
	root := env.path(dir)
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("failed to access %s: %w", dir, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	matcher, err := env.newMatcher()
	if err != nil {
		return nil, err
	}
	sc, cleanup, err := env.newScanner(NewCLIProgressReporter(stderr, opts.quiet))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	started := time.Now()
	result, err := sc.Scan(ctx, scanner.NewDirSource(root, matcher))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("analysis cancelled")
		}
		return nil, fmt.Errorf("analysis failed: %w", err)
	}

	layout := dataset.Options{IncludeCalls: env.cfg.Dataset.IncludeCalls}
	if opts.output == "" {
		if err := dataset.WriteTo(stdout, result.Records, layout); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
	} else {
		if err := dataset.Write(opts.output, result.Records, layout); err != nil {
			return nil, fmt.Errorf("%s: %w", opts.output, err)
		}
		if !opts.quiet {
			fmt.Fprintf(stderr, "✓ Wrote %s records to %s\n", formatNumber(len(result.Records)), opts.output)
		}
	}

	if opts.save {
		store, err := env.openStore()
		if err != nil {
			return nil, err
		}
		defer store.Close()

		run, err := store.SaveRun(storage.Run{
			Source:    root,
			StartedAt: started,
			Duration:  result.Duration,
		}, result.Records, result.Skipped)
		if err != nil {
			return nil, err
		}
		env.logger.Info("saved run", "run", run.ID, "records", run.RecordCount, "skipped", run.SkippedCount)
	}

	return result, nil
}
