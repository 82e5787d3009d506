package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/dataset"
	"github.com/mvp-joe/pymetrix/internal/pipeline"
)

// transformCmd represents the transform command
var transformCmd = &cobra.Command{
	Use:   "transform <raw-dataset>",
	Short: "Filter a raw dataset into a transformed dataset",
	Long: `Transform reads a raw dataset and writes the filtered rows next to it, with
"raw" in the file name replaced by "trf". Rows are dropped when their path
matches dataset.exclude_pattern, when more than dataset.max_zero_fraction of
their metrics are zero, or when any metric's z-score reaches
dataset.z_threshold.

Example:
  pymetrix transform 1_5_0_sdp_pos_release_raw_dataset.csv
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := commandEnvironment()
		if err != nil {
			return err
		}
		_, err = runTransform(env.cfg.Dataset, args[0], cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

// runTransform transforms rawPath and prints the filter counts.
func runTransform(cfg config.DatasetConfig, rawPath string, out io.Writer) (string, error) {
	opts, err := pipeline.TransformOptions(cfg)
	if err != nil {
		return "", err
	}

	outPath, report, err := dataset.TransformFile(rawPath, opts)
	if err != nil {
		return "", err
	}

	printTransformReport(out, outPath, report)
	return outPath, nil
}

func printTransformReport(out io.Writer, path string, r dataset.TransformReport) {
	fmt.Fprintf(out, "✓ Transformed dataset: %s\n", path)
	fmt.Fprintf(out, "  Input:    %s rows\n", formatNumber(r.Input))
	fmt.Fprintf(out, "  Excluded: %s\n", formatNumber(r.Excluded))
	fmt.Fprintf(out, "  Sparse:   %s\n", formatNumber(r.Sparse))
	fmt.Fprintf(out, "  Outliers: %s\n", formatNumber(r.Outliers))
	fmt.Fprintf(out, "  Kept:     %s\n", formatNumber(r.Kept))
}
