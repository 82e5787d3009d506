package mcp

import (
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for helpers:
// - parseToolArguments rejects non-map arguments with an error result
// - marshalToolResponse returns the JSON text of the response
// - resolvePath accepts relative and absolute paths inside the root
// - resolvePath rejects paths escaping the root

func TestParseToolArguments(t *testing.T) {
	t.Parallel()

	args, errResult := parseToolArguments(mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: map[string]interface{}{"path": "a.py"}},
	})
	require.Nil(t, errResult)
	assert.Equal(t, "a.py", args["path"])

	args, errResult = parseToolArguments(mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: "a.py"},
	})
	assert.Nil(t, args)
	require.NotNil(t, errResult)
	assert.True(t, errResult.IsError)
}

func TestMarshalToolResponse(t *testing.T) {
	t.Parallel()

	result, err := marshalToolResponse(SkippedEntry{Path: "a.py", Kind: "SyntaxError", Error: "bad"})
	require.NoError(t, err)

	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	assert.JSONEq(t, `{"path":"a.py","kind":"SyntaxError","error":"bad"}`, text.Text)

	_, err = marshalToolResponse(make(chan int))
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantAbs string
		wantRel string
		wantErr bool
	}{
		{name: "relative file", path: "pkg/mod.py", wantAbs: filepath.Join(root, "pkg", "mod.py"), wantRel: "pkg/mod.py"},
		{name: "root itself", path: ".", wantAbs: root, wantRel: "."},
		{name: "absolute inside", path: filepath.Join(root, "a.py"), wantAbs: filepath.Join(root, "a.py"), wantRel: "a.py"},
		{name: "cleaned inside", path: "pkg/../a.py", wantAbs: filepath.Join(root, "a.py"), wantRel: "a.py"},
		{name: "parent", path: "..", wantErr: true},
		{name: "escaping", path: "../other/a.py", wantErr: true},
		{name: "absolute outside", path: filepath.Dir(root), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			abs, rel, err := resolvePath(root, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "outside project root")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAbs, abs)
			assert.Equal(t, tt.wantRel, rel)
		})
	}
}
