// Package mcp exposes the metrics extractor as Model Context Protocol tools
// served over stdio: single-file analysis, directory scans and stored runs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/pymetrix/internal/config"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

// ServerConfig wires the MCP server to the project it serves.
type ServerConfig struct {
	// Root is the project directory tool paths are resolved against.
	Root string
	// Scan supplies the default include and ignore patterns.
	Scan config.ScanConfig
	// Scanner analyzes files. A fresh Scanner is created when nil.
	Scanner *scanner.Scanner
	// Store enables the run tools when set.
	Store RunStore
	Version string
	Logger  *slog.Logger
}

// MCPServer manages the MCP server lifecycle.
type MCPServer struct {
	root   string
	logger *slog.Logger
	mcp    *server.MCPServer
}

// NewMCPServer creates a server with the metrics tools registered.
func NewMCPServer(cfg ServerConfig) (*MCPServer, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Scanner == nil {
		cfg.Scanner = scanner.New(scanner.WithLogger(cfg.Logger))
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	mcpServer := server.NewMCPServer(
		"pymetrix",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	AddAnalyzeFileTool(mcpServer, root, cfg.Scanner)
	AddScanDirectoryTool(mcpServer, root, cfg.Scan, cfg.Scanner)
	if cfg.Store != nil {
		AddGetRunTool(mcpServer, cfg.Store)
	}

	return &MCPServer{
		root:   root,
		logger: cfg.Logger,
		mcp:    mcpServer,
	}, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *MCPServer) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server on stdio", "root", s.root)
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	select {
	case <-sigCh:
		s.logger.Info("received shutdown signal, stopping")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
