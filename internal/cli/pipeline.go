package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/pipeline"
)

// pipelineOptions holds the flags of the pipeline command.
type pipelineOptions struct {
	repository string
	outputDir  string
	noSave     bool
	quiet      bool
}

var pipelineFlags pipelineOptions

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Build the labelled defect-prediction dataset of a release",
	Long: `Pipeline builds a defect-prediction dataset from a local clone:

  1. Select the non-patch releases matching git.tag_pattern, newest first
  2. Take the release at git.target_offset (default: the third newest) as target
  3. Mine commits matching git.bugfix_pattern between the target and the newest release
  4. Collect the files with git.file_types changed by those commits
  5. Analyze every Python file of the target release tree (no checkout needed)
  6. Label the records of the buggy files and write the raw dataset
  7. Transform the raw dataset and save the run to the metrics database

Examples:
  # Run against the repository configured in .pymetrix/config.yml
  pymetrix pipeline

  # Run against another clone and write the datasets to out/
  pymetrix pipeline --repo ../scikit-learn --output-dir out
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := commandEnvironment()
		if err != nil {
			return err
		}
		_, err = runPipeline(cmd.Context(), env, pipelineFlags, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.Flags().StringVar(&pipelineFlags.repository, "repo", "", "local clone to mine (default: git.repository)")
	pipelineCmd.Flags().StringVar(&pipelineFlags.outputDir, "output-dir", "", "dataset directory (default: dataset.output_dir)")
	pipelineCmd.Flags().BoolVar(&pipelineFlags.noSave, "no-save", false, "do not save the run to the metrics database")
	pipelineCmd.Flags().BoolVarP(&pipelineFlags.quiet, "quiet", "q", false, "disable progress output")
}

func runPipeline(ctx context.Context, env *environment, opts pipelineOptions, stdout, stderr io.Writer) (*pipeline.Report, error) {
	repository := opts.repository
	if repository == "" {
		repository = env.path(env.cfg.Git.Repository)
	}
	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = env.path(env.cfg.Dataset.OutputDir)
	}

	sc, cleanup, err := env.newScanner(NewCLIProgressReporter(stderr, opts.quiet))
	if err != nil {
		return nil, err
	}
	defer cleanup()

	runOpts := pipeline.Options{
		Config:     env.cfg,
		Repository: repository,
		OutputDir:  outputDir,
		Scanner:    sc,
		Logger:     env.logger,
	}
	if !opts.noSave {
		store, err := env.openStore()
		if err != nil {
			return nil, err
		}
		defer store.Close()
		runOpts.Store = store
	}

	report, err := pipeline.Run(ctx, runOpts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("pipeline cancelled")
		}
		return nil, err
	}

	fmt.Fprintf(stdout, "✓ Release %s (%s .. %s)\n", report.Window.Target.Tag, report.Window.StartDate(), report.Window.EndDate())
	fmt.Fprintf(stdout, "  Bug-fix commits: %s\n", formatNumber(report.BugFixCommits))
	fmt.Fprintf(stdout, "  Buggy files:     %s\n", formatNumber(len(report.BuggyFiles)))
	fmt.Fprintf(stdout, "  Records:         %s (%s buggy, %s skipped)\n",
		formatNumber(report.Records), formatNumber(report.Buggy), formatNumber(len(report.Skipped)))
	fmt.Fprintf(stdout, "  Raw dataset:     %s\n", report.RawPath)
	printTransformReport(stdout, report.TransformedPath, report.Transform)
	if report.Run != nil {
		fmt.Fprintf(stdout, "  Run:             %s\n", report.Run.ID)
	}

	return report, nil
}
