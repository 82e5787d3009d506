// Package metrics extracts static code metrics from Python source files.
//
// Analysis of one file is a pure function of its path and content: the
// source is parsed into an abstract syntax tree, walked once, and the
// resulting node list feeds the complexity and structural analyzers. The
// source is tokenized independently for comment and blank-line counts.
// The package never logs; failures are returned as *AnalysisError.
package metrics

import (
	"errors"
	"io"
	"os"
)

// AnalyzeFile reads and analyzes the file at path. The returned record is
// keyed by path exactly as given.
func AnalyzeFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, &AnalysisError{Path: path, Kind: KindIO, Err: err}
	}
	defer f.Close()

	src, err := io.ReadAll(f)
	if err != nil {
		return Record{}, &AnalysisError{Path: path, Kind: KindIO, Err: err}
	}
	return AnalyzeSource(path, src)
}

// AnalyzeSource analyzes src as the content of the file at path.
func AnalyzeSource(path string, src []byte) (Record, error) {
	if off := invalidUTF8Offset(src); off >= 0 {
		line, col := positionOf(src, off)
		return Record{}, classify(path, &LexError{Line: line, Column: col, Offset: off, Msg: "invalid UTF-8 byte sequence"})
	}

	root, err := Parse(src)
	if err != nil {
		return Record{}, classify(path, err)
	}

	lines, err := CountLines(src)
	if err != nil {
		return Record{}, classify(path, err)
	}

	visits := Collect(root)
	return Build(path, lines, Complexity(visits), MaxDepth(visits), Aggregate(root, visits)), nil
}

func classify(path string, err error) error {
	var (
		lexErr    *LexError
		syntaxErr *SyntaxError
	)
	switch {
	case errors.As(err, &lexErr):
		return &AnalysisError{Path: path, Kind: KindLex, Err: err}
	case errors.As(err, &syntaxErr):
		return &AnalysisError{Path: path, Kind: KindSyntax, Err: err}
	default:
		return &AnalysisError{Path: path, Kind: KindInternal, Err: err}
	}
}
