package metrics

import (
	"bytes"
	"iter"
	"sort"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// TokenKind classifies a lexical token. Only comments and line breaks are
// distinguished; everything else is TokenOther.
type TokenKind int

const (
	TokenOther TokenKind = iota
	TokenComment
	TokenNewline
)

// Token is a lexical unit of Python source. Line and Column are 1-based,
// Column counts bytes from the start of the line (after a leading BOM).
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Tokenize returns a lazy token sequence over src, read from the leaves of
// its own tree-sitter parse. String literals are single tokens, comments
// come from comment nodes and every line break outside a token is a
// TokenNewline. Each range over the sequence parses src again, so it can be
// consumed any number of times. Invalid UTF-8 is yielded as a *LexError and
// ends the sequence.
func Tokenize(src []byte) iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		if off := invalidUTF8Offset(src); off >= 0 {
			line, col := positionOf(src, off)
			yield(Token{}, &LexError{Line: line, Column: col, Offset: off, Msg: "invalid UTF-8 byte sequence"})
			return
		}

		body := bytes.TrimPrefix(src, utf8BOM)
		tree, err := parseTree(body)
		if err != nil {
			yield(Token{}, err)
			return
		}
		defer tree.Close()

		w := &tokenWalker{src: body, lineStarts: lineStarts(body), yield: yield}
		if w.leaves(tree.RootNode()) {
			w.newlines(len(body))
		}
	}
}

// tokenWalker emits tokens for the leaves of a tree in source order.
type tokenWalker struct {
	src        []byte
	lineStarts []int
	pos        int // end of the last emitted token
	yield      func(Token, error) bool
}

// leaves emits the tokens below n and reports whether the consumer wants more.
func (w *tokenWalker) leaves(n *sitter.Node) bool {
	switch {
	case n.IsMissing():
		return true
	case n.Kind() == "comment":
		return w.leaf(n, TokenComment)
	case n.Kind() == "string":
		if !w.leaf(n, TokenOther) {
			return false
		}
		return w.interpolatedComments(n)
	case n.ChildCount() == 0:
		if n.EndByte() == n.StartByte() {
			return true
		}
		return w.leaf(n, TokenOther)
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		if !w.leaves(n.Child(i)) {
			return false
		}
	}
	return true
}

// interpolatedComments emits comments inside f-string replacement fields.
func (w *tokenWalker) interpolatedComments(str *sitter.Node) bool {
	more := true
	walkTree(str, func(n *sitter.Node) bool {
		if !more {
			return false
		}
		if n.Kind() == "comment" {
			more = w.leaf(n, TokenComment)
			return false
		}
		return true
	})
	return more
}

func (w *tokenWalker) leaf(n *sitter.Node, kind TokenKind) bool {
	start, end := int(n.StartByte()), int(n.EndByte())
	if !w.newlines(start) {
		return false
	}

	line, col := w.position(start)
	if end > w.pos {
		w.pos = end
	}
	return w.yield(Token{Kind: kind, Text: string(w.src[start:end]), Line: line, Column: col}, nil)
}

// newlines emits a TokenNewline for each line break between the last token
// and end.
func (w *tokenWalker) newlines(end int) bool {
	for i := w.pos; i < end; i++ {
		c := w.src[i]
		if c != '\n' && c != '\r' {
			continue
		}

		start := i
		if c == '\r' && i+1 < end && w.src[i+1] == '\n' {
			i++
		}
		line, col := w.position(start)
		if !w.yield(Token{Kind: TokenNewline, Text: string(w.src[start : i+1]), Line: line, Column: col}, nil) {
			return false
		}
	}
	if end > w.pos {
		w.pos = end
	}
	return true
}

func (w *tokenWalker) position(offset int) (int, int) {
	idx := sort.SearchInts(w.lineStarts, offset+1) - 1
	return idx + 1, offset - w.lineStarts[idx] + 1
}

// lineStarts returns the offsets at which lines of src begin.
func lineStarts(src []byte) []int {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\n':
			starts = append(starts, i+1)
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				continue
			}
			starts = append(starts, i+1)
		}
	}
	return starts
}

// CountComments returns the number of comment tokens in src.
func CountComments(src []byte) (int, error) {
	count := 0
	for tok, err := range Tokenize(src) {
		if err != nil {
			return 0, err
		}
		if tok.Kind == TokenComment {
			count++
		}
	}
	return count, nil
}

// LineStats holds the line-oriented counts of a file.
type LineStats struct {
	LOC      int // lines with non-whitespace content
	Comments int // comment tokens
	Blanks   int // lines that are empty after trimming whitespace
}

// CountLines computes LineStats for src. Blank and non-blank lines are counted
// on raw lines, independently of the token stream, so a comment-only line is
// neither blank nor excluded from LOC.
func CountLines(src []byte) (LineStats, error) {
	comments, err := CountComments(src)
	if err != nil {
		return LineStats{}, err
	}

	stats := LineStats{Comments: comments}
	for line := range lines(src) {
		if len(bytes.TrimSpace(line)) == 0 {
			stats.Blanks++
		} else {
			stats.LOC++
		}
	}
	return stats, nil
}

// lines yields the lines of src without their terminators. Lines end at
// "\n", "\r\n" or "\r"; an empty tail after the final terminator is not a line.
func lines(src []byte) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		src = bytes.TrimPrefix(src, utf8BOM)
		for len(src) > 0 {
			i := bytes.IndexAny(src, "\r\n")
			if i < 0 {
				yield(src)
				return
			}
			if !yield(src[:i]) {
				return
			}
			if src[i] == '\r' && i+1 < len(src) && src[i+1] == '\n' {
				i++
			}
			src = src[i+1:]
		}
	}
}

// invalidUTF8Offset returns the offset of the first invalid UTF-8 sequence, or -1.
func invalidUTF8Offset(src []byte) int {
	if utf8.Valid(src) {
		return -1
	}
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

// positionOf converts a byte offset into a 1-based line and column.
func positionOf(src []byte, offset int) (int, int) {
	line, lineStart := 1, 0
	for i := 0; i < offset && i < len(src); i++ {
		switch src[i] {
		case '\n':
			line++
			lineStart = i + 1
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				continue
			}
			line++
			lineStart = i + 1
		}
	}
	return line, offset - lineStart + 1
}
