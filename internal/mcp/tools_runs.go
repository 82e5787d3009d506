package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/storage"
)

// RunStore reads stored analysis runs. *storage.Store satisfies it.
type RunStore interface {
	LatestRun() (*storage.Run, error)
	GetRun(runID string) (*storage.Run, error)
	Records(runID string) ([]metrics.Record, error)
	Skipped(runID string) ([]storage.SkippedFile, error)
}

// RunResponse is the JSON result of get_run.
type RunResponse struct {
	RunID        string           `json:"run_id"`
	Source       string           `json:"source"`
	ReleaseTag   string           `json:"release_tag,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	DurationMs   int64            `json:"duration_ms"`
	RecordCount  int              `json:"record_count"`
	SkippedCount int              `json:"skipped_count"`
	BuggyCount   int              `json:"buggy_count"`
	Records      []metrics.Record `json:"records"`
	Skipped      []SkippedEntry   `json:"skipped,omitempty"`
}

type getRunArgs struct {
	RunID          string `json:"run_id"`
	BuggyOnly      bool   `json:"buggy_only"`
	IncludeSkipped bool   `json:"include_skipped"`
}

// AddGetRunTool registers the get_run tool.
func AddGetRunTool(s *server.MCPServer, store RunStore) {
	tool := mcp.NewTool(
		"get_run",
		mcp.WithDescription(`Read a stored analysis run: its metadata, per-file records and skipped files.

Without run_id the most recent run is returned. Runs are written by the
analyze, pipeline and watch commands; watch keeps its run current while
files change.`),
		mcp.WithString("run_id",
			mcp.Description("Run to read (default: the latest run)")),
		mcp.WithBoolean("buggy_only",
			mcp.Description("Return only records labelled buggy (default: false)")),
		mcp.WithBoolean("include_skipped",
			mcp.Description("Include skipped files (default: true)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, createGetRunHandler(store))
}

func createGetRunHandler(store RunStore) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		argsMap, errResult := parseToolArguments(request)
		if errResult != nil {
			return errResult, nil
		}

		args := getRunArgs{IncludeSkipped: true}
		if err := bindArguments(argsMap, &args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var (
			run *storage.Run
			err error
		)
		if args.RunID == "" {
			run, err = store.LatestRun()
			if err == nil && run == nil {
				return mcp.NewToolResultError("no runs stored yet"), nil
			}
		} else {
			run, err = store.GetRun(args.RunID)
			if errors.Is(err, storage.ErrRunNotFound) {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}
		if err != nil {
			return nil, err
		}

		records, err := store.Records(run.ID)
		if err != nil {
			return nil, err
		}

		response := RunResponse{
			RunID:        run.ID,
			Source:       run.Source,
			ReleaseTag:   run.ReleaseTag,
			StartedAt:    run.StartedAt,
			DurationMs:   run.Duration.Milliseconds(),
			RecordCount:  run.RecordCount,
			SkippedCount: run.SkippedCount,
			Records:      make([]metrics.Record, 0, len(records)),
		}

		for _, rec := range records {
			if rec.BugLabel {
				response.BuggyCount++
			} else if args.BuggyOnly {
				continue
			}
			response.Records = append(response.Records, rec)
		}

		if args.IncludeSkipped {
			skipped, err := store.Skipped(run.ID)
			if err != nil {
				return nil, err
			}
			for _, s := range skipped {
				response.Skipped = append(response.Skipped, SkippedEntry{Path: s.Path, Kind: s.Kind, Error: s.Message})
			}
		}

		return marshalToolResponse(response)
	}
}
