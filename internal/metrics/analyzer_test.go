package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for AnalyzeFile and records:
// - A realistic fixture yields the expected record for every metric
// - An empty file yields complexity 1, depth 0 and zero counts
// - Analysis is idempotent for the same content
// - The record is keyed by the path as given
// - A missing file fails with an IO AnalysisError
// - A syntax error fails with a Syntax AnalysisError wrapping SyntaxError
// - Invalid UTF-8 fails with a Lex AnalysisError
// - A grammar load failure is an internal error, not a syntax error
// - Label marks exactly the records whose path is in the buggy set
// - Label leaves its input untouched and is idempotent

const fixtureDir = "../../testdata/code/python"

func TestAnalyzeFile_Fixture(t *testing.T) {
	t.Parallel()

	path := filepath.Join(fixtureDir, "inventory.py")
	rec, err := AnalyzeFile(path)
	require.NoError(t, err)

	assert.Equal(t, Record{
		File:          path,
		LOC:           29,
		CommentLines:  2,
		BlankLines:    9,
		Functions:     5,
		Classes:       1,
		AvgParams:     1.6,
		AvgMethods:    3.0,
		Raises:        1,
		Excepts:       1,
		Complexity:    11,
		MaxDepth:      9,
		InternalCalls: 1,
		ExternalCalls: 11,
	}, rec)
}

func TestAnalyzeFile_Empty(t *testing.T) {
	t.Parallel()

	rec, err := AnalyzeFile(filepath.Join(fixtureDir, "empty.py"))
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Complexity)
	assert.Equal(t, 0, rec.MaxDepth)
	assert.Equal(t, 0, rec.LOC)
	assert.Equal(t, 0, rec.Functions)
	assert.Equal(t, 0.0, rec.AvgParams)
	assert.Equal(t, 0.0, rec.AvgMethods)
	assert.False(t, rec.BugLabel)
}

func TestAnalyzeSource_Idempotent(t *testing.T) {
	t.Parallel()

	src, err := os.ReadFile(filepath.Join(fixtureDir, "inventory.py"))
	require.NoError(t, err)

	first, err := AnalyzeSource("pkg/inventory.py", src)
	require.NoError(t, err)
	second, err := AnalyzeSource("pkg/inventory.py", src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "pkg/inventory.py", first.File)
}

func TestAnalyzeSource_BooleanChain(t *testing.T) {
	t.Parallel()

	rec, err := AnalyzeSource("a.py", []byte("if a and b and c:\n    pass\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Complexity)
	assert.Equal(t, 2, rec.LOC)
}

func TestAnalyzeFile_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := AnalyzeFile(filepath.Join(t.TempDir(), "nope.py"))
		var analysisErr *AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		assert.Equal(t, KindIO, analysisErr.Kind)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("syntax error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(fixtureDir, "broken.py")
		_, err := AnalyzeFile(path)

		var analysisErr *AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		assert.Equal(t, KindSyntax, analysisErr.Kind)
		assert.Equal(t, path, analysisErr.Path)

		var syntaxErr *SyntaxError
		require.ErrorAs(t, err, &syntaxErr)
		assert.LessOrEqual(t, syntaxErr.Line, 2)

		kind, ok := KindOf(err)
		assert.True(t, ok)
		assert.Equal(t, KindSyntax, kind)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		t.Parallel()

		_, err := AnalyzeSource("bad.py", []byte("x = 1\n\xff\n"))
		var analysisErr *AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		assert.Equal(t, KindLex, analysisErr.Kind)
		assert.Contains(t, err.Error(), "bad.py")
	})

	t.Run("grammar failure is internal", func(t *testing.T) {
		t.Parallel()

		err := classify("mod.py", fmt.Errorf("%w: version mismatch", ErrGrammar))
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindInternal, kind)
		assert.Equal(t, "InternalError", kind.String())
		assert.ErrorIs(t, err, ErrGrammar)
	})
}

func TestLabel(t *testing.T) {
	t.Parallel()

	records := []Record{{File: "A"}, {File: "B"}, {File: "C"}}
	buggy := PathSet([]string{"B", "Z"})

	labeled := Label(records, buggy)
	require.Len(t, labeled, 3)
	assert.False(t, labeled[0].BugLabel)
	assert.True(t, labeled[1].BugLabel)
	assert.False(t, labeled[2].BugLabel)

	for _, r := range records {
		assert.False(t, r.BugLabel, "input must not be modified")
	}

	assert.Equal(t, labeled, Label(labeled, buggy))
	assert.Empty(t, Label(nil, buggy))
}

func TestLabel_ClearsStaleLabels(t *testing.T) {
	t.Parallel()

	records := []Record{{File: "A", BugLabel: true}}
	labeled := Label(records, PathSet(nil))
	assert.False(t, labeled[0].BugLabel)
}
