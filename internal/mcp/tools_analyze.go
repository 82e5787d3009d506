package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/pymetrix/internal/metrics"
)

// Analyzer computes the record of one file. *scanner.Scanner satisfies it.
type Analyzer interface {
	Analyze(path string, src []byte) (metrics.Record, error)
}

type analyzeFileArgs struct {
	Path string `json:"path"`
}

// AddAnalyzeFileTool registers the analyze_file tool.
func AddAnalyzeFileTool(s *server.MCPServer, root string, analyzer Analyzer) {
	tool := mcp.NewTool(
		"analyze_file",
		mcp.WithDescription(`Compute static code metrics for one Python file.

Returns lines of code, comment and blank lines, function and class counts,
average parameters per function, average methods per class, raise and except
counts, cyclomatic complexity, maximum syntax tree depth and call counts.

Files that cannot be read, decoded or parsed return an error naming the
failure kind: IOError, LexError, SyntaxError or InternalError.`),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path, relative to the project root or absolute within it")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createAnalyzeFileHandler(root, analyzer))
}

func createAnalyzeFileHandler(root string, analyzer Analyzer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}

		var args analyzeFileArgs
		if err := bindArguments(argsMap, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := requireString(args.Path, "path"); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		abs, rel, err := resolvePath(root, args.Path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		src, err := os.ReadFile(abs)
		if err != nil {
			err = &metrics.AnalysisError{Path: rel, Kind: metrics.KindIO, Err: err}
			return mcp.NewToolResultError(err.Error()), nil
		}

		rec, err := analyzer.Analyze(rel, src)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return marshalToolResponse(rec)
	}
}
