package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

const (
	defaultMaxRecords = 500
	maxRecordsLimit   = 10000
)

// ScanResponse is the JSON result of scan_directory.
type ScanResponse struct {
	Directory    string           `json:"directory"`
	RecordCount  int              `json:"record_count"`
	SkippedCount int              `json:"skipped_count"`
	DurationMs   int64            `json:"duration_ms"`
	Records      []metrics.Record `json:"records,omitempty"`
	Truncated    bool             `json:"truncated,omitempty"`
	Skipped      []SkippedEntry   `json:"skipped"`
}

// SkippedEntry describes one file a scan could not analyze.
type SkippedEntry struct {
	Path  string `json:"path"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type scanDirectoryArgs struct {
	Path           string   `json:"path"`
	Include        []string `json:"include"`
	IncludeRecords bool     `json:"include_records"`
	MaxRecords     int      `json:"max_records"`
}

// AddScanDirectoryTool registers the scan_directory tool. Default file
// patterns come from scanCfg.
func AddScanDirectoryTool(s *server.MCPServer, root string, scanCfg config.ScanConfig, sc *scanner.Scanner) {
	tool := mcp.NewTool(
		"scan_directory",
		mcp.WithDescription(`Compute static code metrics for every Python file below a directory.

Files are discovered with the project's include and ignore patterns, analyzed
in parallel and reported in path order. Files that fail to analyze are listed
under "skipped" with their failure kind and never abort the scan.`),
		mcp.WithString("path",
			mcp.Description("Directory relative to the project root (default: the project root)")),
		mcp.WithArray("include",
			mcp.Description("Glob patterns overriding the configured include patterns, e.g. ['src/**/*.py']")),
		mcp.WithBoolean("include_records",
			mcp.Description("Return per-file records, not just the summary (default: true)")),
		mcp.WithNumber("max_records",
			mcp.Description(fmt.Sprintf("Maximum records to return (default: %d, max: %d)", defaultMaxRecords, maxRecordsLimit))),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createScanDirectoryHandler(root, scanCfg, sc))
}

func createScanDirectoryHandler(root string, scanCfg config.ScanConfig, sc *scanner.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}

		args := scanDirectoryArgs{
			Path:           ".",
			IncludeRecords: true,
			MaxRecords:     defaultMaxRecords,
		}
		if err := bindArguments(argsMap, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if args.Path == "" {
			args.Path = "."
		}

		dir, rel, err := resolvePath(root, args.Path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return mcp.NewToolResultError(fmt.Sprintf("%s is not a directory", rel)), nil
		}

		include := args.Include
		if len(include) == 0 {
			include = scanCfg.Include
		}
		matcher, err := scanner.NewMatcher(include, scanCfg.Ignore)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := sc.Scan(ctx, scanner.NewDirSource(dir, matcher))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
		}

		response := ScanResponse{
			Directory:    rel,
			RecordCount:  len(result.Records),
			SkippedCount: len(result.Skipped),
			DurationMs:   result.Duration.Milliseconds(),
			Skipped:      make([]SkippedEntry, 0, len(result.Skipped)),
		}

		if args.IncludeRecords {
			limit := clampInt(args.MaxRecords, 1, maxRecordsLimit)
			records := result.Records
			if len(records) > limit {
				records = records[:limit]
				response.Truncated = true
			}
			response.Records = records
		}

		for _, skip := range result.Skipped {
			response.Skipped = append(response.Skipped, SkippedEntry{
				Path:  skip.Path,
				Kind:  skip.Kind.String(),
				Error: errorText(skip.Err),
			})
		}

		return marshalToolResponse(response)
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
