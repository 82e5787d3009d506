package dataset

import (
	"fmt"
	"math"
	"regexp"

	"gonum.org/v1/gonum/stat"

	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// TransformOptions configures the row filters of Transform.
type TransformOptions struct {
	// Exclude drops rows whose path matches, e.g. tests and examples. Nil keeps all paths.
	Exclude *regexp.Regexp
	// MaxZeroFraction drops rows where more than this fraction of the metric
	// columns is zero.
	MaxZeroFraction float64
	// ZThreshold drops rows with any metric |z-score| at or above it.
	ZThreshold float64
}

// TransformReport counts the rows removed by each filter.
type TransformReport struct {
	Input    int
	Excluded int
	Sparse   int
	Outliers int
	Kept     int
}

// Transform filters records in three passes: excluded paths, mostly-zero
// rows, then statistical outliers. Z-scores use the mean and sample standard
// deviation of each metric column over the rows that survived the first two
// passes; a column without variance scores 0 for every row. Relative order is
// preserved.
func Transform(records []metrics.Record, opts TransformOptions) ([]metrics.Record, TransformReport) {
	report := TransformReport{Input: len(records)}

	var dense []metrics.Record
	for _, r := range records {
		if opts.Exclude != nil && opts.Exclude.MatchString(r.File) {
			report.Excluded++
			continue
		}
		if zeroFraction(r) > opts.MaxZeroFraction {
			report.Sparse++
			continue
		}
		dense = append(dense, r)
	}

	columns := make([][]float64, len(MetricColumns))
	for c := range columns {
		columns[c] = make([]float64, len(dense))
	}
	for i, r := range dense {
		for c, v := range metricValues(r) {
			columns[c][i] = v
		}
	}

	means := make([]float64, len(columns))
	stds := make([]float64, len(columns))
	for c, col := range columns {
		if len(col) > 1 {
			means[c], stds[c] = stat.MeanStdDev(col, nil)
		}
	}

	kept := []metrics.Record{}
	for i, r := range dense {
		outlier := false
		for c := range columns {
			if stds[c] == 0 || math.IsNaN(stds[c]) {
				continue
			}
			if math.Abs((columns[c][i]-means[c])/stds[c]) >= opts.ZThreshold {
				outlier = true
				break
			}
		}
		if outlier {
			report.Outliers++
			continue
		}
		kept = append(kept, r)
	}

	report.Kept = len(kept)
	return kept, report
}

func metricValues(r metrics.Record) []float64 {
	return []float64{
		float64(r.LOC),
		float64(r.CommentLines),
		float64(r.BlankLines),
		float64(r.Functions),
		float64(r.Classes),
		r.AvgParams,
		r.AvgMethods,
		float64(r.Raises),
		float64(r.Excepts),
		float64(r.Complexity),
		float64(r.MaxDepth),
	}
}

func zeroFraction(r metrics.Record) float64 {
	values := metricValues(r)
	zeros := 0
	for _, v := range values {
		if v == 0 {
			zeros++
		}
	}
	return float64(zeros) / float64(len(values))
}

// TransformFile reads the raw dataset at rawPath, transforms it and writes the
// result next to it under TransformedName. The output keeps the input's
// layout and is written even when every row was removed.
func TransformFile(rawPath string, opts TransformOptions) (string, TransformReport, error) {
	records, layout, err := Read(rawPath)
	if err != nil {
		return "", TransformReport{}, err
	}
	if len(records) == 0 {
		return "", TransformReport{}, fmt.Errorf("%s: %w", rawPath, ErrEmptyBatch)
	}

	kept, report := Transform(records, opts)

	outPath := TransformedName(rawPath)
	if err := writeFile(outPath, kept, layout); err != nil {
		return "", report, err
	}
	return outPath, report, nil
}
