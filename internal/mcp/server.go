package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/projdex/internal/config"
	"github.com/dshills/projdex/internal/history"
	"github.com/dshills/projdex/internal/index"
	"github.com/dshills/projdex/internal/jobs"
	"github.com/dshills/projdex/internal/scanner"
	"github.com/dshills/projdex/internal/store"
	"github.com/dshills/projdex/internal/vcsinfo"
)

const (
	// ServerName is the MCP server name
	ServerName = "projdex"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	cfg     config.Config
	store   *store.Store
	index   *index.Manager
	jobs    *jobs.Manager
	history *history.Journal // nil when disabled
	log     *zap.Logger
}

// NewServer wires the catalog pipeline and registers the tools.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.Open(cfg.CatalogPath(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	idx := index.NewManager(log)
	idx.Build(st.ListProjects())

	var journal *history.Journal
	if cfg.HistoryEnabled() {
		journal, err = history.Open(cfg.HistoryPath())
		if err != nil {
			// The journal is diagnostic; run without it.
			log.Warn("scan history unavailable", zap.Error(err))
			journal = nil
		}
	}

	git := vcsinfo.NewGit(vcsinfo.DefaultTimeout, log)
	scan := scanner.New(git, log)

	// jobs.Recorder must stay a nil interface when the journal is off.
	var recorder jobs.Recorder
	if journal != nil {
		recorder = journal
	}
	jm := jobs.NewManager(scan, st, idx, recorder, log)

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		cfg:     cfg,
		store:   st,
		index:   idx,
		jobs:    jm,
		history: journal,
		log:     log,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.Close()
	return server.ServeStdio(s.mcp)
}

// Close drains the job supervisor and flushes the catalog.
func (s *Server) Close() {
	s.jobs.Close()
	if err := s.store.Close(); err != nil {
		s.log.Error("catalog close failed", zap.Error(err))
	}
	if s.history != nil {
		_ = s.history.Close()
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(startScanTool(), s.handleStartScan)
	s.mcp.AddTool(getScanStatusTool(), s.handleGetScanStatus)
	s.mcp.AddTool(cancelScanTool(), s.handleCancelScan)
	s.mcp.AddTool(searchProjectsTool(), s.handleSearchProjects)
	s.mcp.AddTool(listProjectsTool(), s.handleListProjects)
	s.mcp.AddTool(getProjectTool(), s.handleGetProject)
	s.mcp.AddTool(updateProjectTool(), s.handleUpdateProject)
	s.mcp.AddTool(deleteProjectTool(), s.handleDeleteProject)
	s.mcp.AddTool(exportCatalogTool(), s.handleExportCatalog)
	s.mcp.AddTool(scanHistoryTool(), s.handleScanHistory)
}
