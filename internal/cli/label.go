package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/dataset"
	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// labelOptions holds the flags of the label command.
type labelOptions struct {
	dataset string
	buggy   string
	prefix  string
	output  string
}

var labelFlags labelOptions

// labelCmd represents the label command
var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Set the BUG column of a dataset from a list of buggy files",
	Long: `Label rewrites the BUG column of a dataset: a record is buggy exactly when
its FILE equals one of the paths listed in the buggy file (one path per line,
blank lines and lines starting with # are ignored). Labelling is idempotent.

Buggy paths are usually repository-relative. When the dataset was built from a
subdirectory, --prefix is prepended to every buggy path before matching.

Examples:
  pymetrix label --dataset raw.csv --buggy buggy.txt
  pymetrix label --dataset raw.csv --buggy buggy.txt --prefix scikit-learn/ -o labelled.csv
`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLabel(labelFlags, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(labelCmd)
	labelCmd.Flags().StringVar(&labelFlags.dataset, "dataset", "", "dataset to label (required)")
	labelCmd.Flags().StringVar(&labelFlags.buggy, "buggy", "", "file listing buggy paths (required)")
	labelCmd.Flags().StringVar(&labelFlags.prefix, "prefix", "", "prefix prepended to every buggy path")
	labelCmd.Flags().StringVarP(&labelFlags.output, "output", "o", "", "output dataset (default: overwrite --dataset)")
	_ = labelCmd.MarkFlagRequired("dataset")
	_ = labelCmd.MarkFlagRequired("buggy")
}

// runLabel labels the dataset and writes it back, keeping its column layout.
func runLabel(opts labelOptions, out io.Writer) error {
	records, layout, err := dataset.Read(opts.dataset)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.dataset, err)
	}

	buggy, err := readPathList(opts.buggy)
	if err != nil {
		return err
	}
	for i, p := range buggy {
		buggy[i] = opts.prefix + p
	}

	labeled := metrics.Label(records, metrics.PathSet(buggy))

	output := opts.output
	if output == "" {
		output = opts.dataset
	}
	if err := dataset.Write(output, labeled, layout); err != nil {
		return fmt.Errorf("%s: %w", output, err)
	}

	count := 0
	for _, r := range labeled {
		if r.BugLabel {
			count++
		}
	}
	fmt.Fprintf(out, "✓ Labelled %s of %s records buggy in %s\n",
		formatNumber(count), formatNumber(len(labeled)), output)
	return nil
}

// readPathList reads one path per line, skipping blank lines and # comments.
func readPathList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open path list: %w", err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read path list: %w", err)
	}
	return paths, nil
}
