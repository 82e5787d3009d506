package metrics

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a file could not be analyzed.
type ErrorKind int

const (
	// KindIO means the file could not be opened or read.
	KindIO ErrorKind = iota
	// KindLex means the byte stream is not valid UTF-8.
	KindLex
	// KindSyntax means the text does not parse as Python 3.
	KindSyntax
	// KindInternal means the analyzer itself failed, independent of the file.
	KindInternal
)

// ErrGrammar is returned when the Python grammar cannot be loaded into the parser.
var ErrGrammar = errors.New("python grammar unavailable")

// String returns the kind name used in logs and skip reports.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "IOError"
	case KindLex:
		return "LexError"
	case KindSyntax:
		return "SyntaxError"
	case KindInternal:
		return "InternalError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// LexError reports a byte stream that cannot be decoded.
// Line and Column are 1-based; Offset is the byte offset into the source.
type LexError struct {
	Line   int
	Column int
	Offset int
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// SyntaxError reports text that does not conform to the Python 3 grammar.
// Line and Column are 1-based.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// AnalysisError is the per-file failure returned by AnalyzeFile and AnalyzeSource.
// Callers scanning a batch record it and move on to the next file.
type AnalysisError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// KindOf returns the analysis kind carried by err, or false when err is not an analysis failure.
func KindOf(err error) (ErrorKind, bool) {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return 0, false
}
