package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/pymetrix/internal/mcp"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server exposing the metrics tools",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
compute code metrics for the current project.

The MCP server provides:
- analyze_file: metrics record of one Python file
- scan_directory: records and skipped files of a directory tree
- get_run: a stored run written by analyze --save, pipeline or watch

It communicates via stdio (standard MCP transport); logs go to stderr.

Example:
  pymetrix mcp`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := commandEnvironment()
		if err != nil {
			return err
		}
		return runMCP(cmd.Context(), env)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(ctx context.Context, env *environment) error {
	sc, cleanup, err := env.newScanner(nil)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := env.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	server, err := mcp.NewMCPServer(mcp.ServerConfig{
		Root:    env.root,
		Scan:    env.cfg.Scan,
		Scanner: sc,
		Store:   store,
		Version: Version,
		Logger:  env.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Serve blocks until shutdown
	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
