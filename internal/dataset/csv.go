// Package dataset persists metrics records as semicolon-delimited CSV files
// and implements the transform step that filters a raw dataset before
// model training.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// ErrEmptyBatch is returned when asked to persist zero records.
var ErrEmptyBatch = errors.New("no records to persist")

// Delimiter separates CSV fields.
const Delimiter = ';'

// MetricColumns are the numeric metric columns, in file order.
var MetricColumns = []string{"LOC", "COM", "BLK", "NOF", "NOC", "APF", "AMC", "NER", "NEH", "CYC", "MAD"}

// CallColumns are the optional internal/external call count columns.
var CallColumns = []string{"NIC", "NEC"}

// Options controls the dataset layout.
type Options struct {
	// IncludeCalls adds the NIC and NEC columns before BUG.
	IncludeCalls bool
}

// Header returns the column names for opts.
func Header(opts Options) []string {
	header := append([]string{"FILE"}, MetricColumns...)
	if opts.IncludeCalls {
		header = append(header, CallColumns...)
	}
	return append(header, "BUG")
}

// RawName returns the raw dataset file name for a release tag, e.g.
// "1.5.0" → "1_5_0_sdp_pos_release_raw_dataset.csv".
func RawName(tag string) string {
	return strings.ReplaceAll(tag, ".", "_") + "_sdp_pos_release_raw_dataset.csv"
}

// TransformedName returns the transformed dataset path for a raw dataset
// path. Only the file name changes: its last "raw" becomes "trf", or "_trf"
// is appended to the stem when the name has no "raw".
func TransformedName(rawPath string) string {
	dir, base := filepath.Split(rawPath)
	if i := strings.LastIndex(base, "raw"); i >= 0 {
		return dir + base[:i] + "trf" + base[i+len("raw"):]
	}
	ext := filepath.Ext(base)
	return dir + strings.TrimSuffix(base, ext) + "_trf" + ext
}

// Write persists records to path, creating parent directories. Records are
// written in the given order.
func Write(path string, records []metrics.Record, opts Options) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}
	return writeFile(path, records, opts)
}

func writeFile(path string, records []metrics.Record, opts Options) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create dataset directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	if err := writeRows(f, records, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTo writes records as CSV to w.
func WriteTo(w io.Writer, records []metrics.Record, opts Options) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}
	return writeRows(w, records, opts)
}

func writeRows(w io.Writer, records []metrics.Record, opts Options) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter

	if err := cw.Write(Header(opts)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r, opts)); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.File, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func row(r metrics.Record, opts Options) []string {
	fields := []string{
		r.File,
		strconv.Itoa(r.LOC),
		strconv.Itoa(r.CommentLines),
		strconv.Itoa(r.BlankLines),
		strconv.Itoa(r.Functions),
		strconv.Itoa(r.Classes),
		formatFloat(r.AvgParams),
		formatFloat(r.AvgMethods),
		strconv.Itoa(r.Raises),
		strconv.Itoa(r.Excepts),
		strconv.Itoa(r.Complexity),
		strconv.Itoa(r.MaxDepth),
	}
	if opts.IncludeCalls {
		fields = append(fields, strconv.Itoa(r.InternalCalls), strconv.Itoa(r.ExternalCalls))
	}
	bug := "0"
	if r.BugLabel {
		bug = "1"
	}
	return append(fields, bug)
}

// formatFloat renders the shortest decimal form, keeping a ".0" on
// integral values: 1.5 → "1.5", 2 → "2.0".
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") && !math.IsInf(v, 0) && !math.IsNaN(v) {
		s += ".0"
	}
	return s
}

// Read loads a dataset written by Write or by the transform step. Columns are
// located by header name, so NIC and NEC are optional; the returned Options
// reports whether they were present.
func Read(path string) ([]metrics.Record, Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Options{}, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return ReadFrom(f)
}

// ReadFrom parses a dataset from r.
func ReadFrom(r io.Reader) ([]metrics.Record, Options, error) {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter

	header, err := cr.Read()
	if err != nil {
		return nil, Options{}, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range append([]string{"FILE", "BUG"}, MetricColumns...) {
		if _, ok := index[name]; !ok {
			return nil, Options{}, fmt.Errorf("missing column %s", name)
		}
	}

	_, hasNIC := index["NIC"]
	_, hasNEC := index["NEC"]
	opts := Options{IncludeCalls: hasNIC && hasNEC}

	var records []metrics.Record
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Options{}, fmt.Errorf("failed to read row: %w", err)
		}

		rec, err := parseRow(fields, index, opts)
		if err != nil {
			return nil, Options{}, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	return records, opts, nil
}

func parseRow(fields []string, index map[string]int, opts Options) (metrics.Record, error) {
	p := rowParser{fields: fields, index: index}

	rec := metrics.Record{
		File:         fields[index["FILE"]],
		LOC:          p.int("LOC"),
		CommentLines: p.int("COM"),
		BlankLines:   p.int("BLK"),
		Functions:    p.int("NOF"),
		Classes:      p.int("NOC"),
		AvgParams:    p.float("APF"),
		AvgMethods:   p.float("AMC"),
		Raises:       p.int("NER"),
		Excepts:      p.int("NEH"),
		Complexity:   p.int("CYC"),
		MaxDepth:     p.int("MAD"),
		BugLabel:     p.int("BUG") != 0,
	}
	if opts.IncludeCalls {
		rec.InternalCalls = p.int("NIC")
		rec.ExternalCalls = p.int("NEC")
	}
	return rec, p.err
}

// rowParser converts named fields, keeping the first conversion error.
type rowParser struct {
	fields []string
	index  map[string]int
	err    error
}

func (p *rowParser) value(column string) string {
	return strings.TrimSpace(p.fields[p.index[column]])
}

func (p *rowParser) float(column string) float64 {
	v, err := strconv.ParseFloat(p.value(column), 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %s: %w", column, err)
	}
	return v
}

// int accepts "3" as well as "3.0", which dataframe tools emit for integer columns.
func (p *rowParser) int(column string) int {
	raw := p.value(column)
	if v, err := strconv.Atoi(raw); err == nil {
		return v
	}
	f := p.float(column)
	if f != math.Trunc(f) && p.err == nil {
		p.err = fmt.Errorf("column %s: %q is not an integer", column, raw)
	}
	return int(f)
}
