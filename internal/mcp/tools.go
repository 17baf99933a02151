package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/projdex/internal/history"
	"github.com/dshills/projdex/internal/index"
	"github.com/dshills/projdex/internal/store"
	"github.com/dshills/projdex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound = -32001 // No project with the given ID
	ErrorCodeJobNotFound     = -32002 // No scan job with the given ID
	ErrorCodeJobNotRunning   = -32003 // Job already reached a terminal state
	ErrorCodeNoScanPaths     = -32004 // Neither the request nor the config names a scan root
	ErrorCodeHistoryDisabled = -32005 // Scan history journal is not configured
)

// handleStartScan handles the start_scan tool invocation
func (s *Server) handleStartScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	cfg := s.cfg.Scan
	if raw, present := args["paths"]; present {
		paths, err := parseScanPaths(raw)
		if err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid paths", map[string]interface{}{
				"param":  "paths",
				"reason": err.Error(),
			})
		}
		cfg.Paths = paths
	}
	if patterns, present := args["ignored_patterns"]; present {
		cfg.IgnoredPatterns = toStringSlice(patterns)
	}
	if depth := getIntDefault(args, "max_depth", cfg.MaxDepth); depth > 0 {
		cfg.MaxDepth = depth
	}
	if minSize := getIntDefault(args, "min_size_bytes", int(cfg.MinSizeBytes)); minSize > 0 {
		cfg.MinSizeBytes = int64(minSize)
	}

	if len(cfg.Paths) == 0 {
		return nil, newMCPError(ErrorCodeNoScanPaths, types.ErrNoScanPaths.Error(), map[string]interface{}{
			"param":  "paths",
			"reason": "no scan roots in the request or the configuration file",
		})
	}

	jobID := s.jobs.StartScan(cfg)

	response := map[string]interface{}{
		"job_id": jobID,
		"status": string(types.JobStatusRunning),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetScanStatus handles the get_scan_status tool invocation
func (s *Server) handleGetScanStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, mcpErr := requiredString(request, "job_id")
	if mcpErr != nil {
		return nil, mcpErr
	}

	job := s.jobs.GetJobStatus(jobID)
	if job == nil {
		return nil, newMCPError(ErrorCodeJobNotFound, types.ErrJobNotFound.Error(), map[string]interface{}{
			"job_id": jobID,
		})
	}

	return mcp.NewToolResultText(formatValue(job)), nil
}

// handleCancelScan handles the cancel_scan tool invocation
func (s *Server) handleCancelScan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, mcpErr := requiredString(request, "job_id")
	if mcpErr != nil {
		return nil, mcpErr
	}

	switch err := s.jobs.CancelScan(jobID); {
	case errors.Is(err, types.ErrJobNotFound):
		return nil, newMCPError(ErrorCodeJobNotFound, err.Error(), map[string]interface{}{
			"job_id": jobID,
		})
	case errors.Is(err, types.ErrJobNotRunning):
		return nil, newMCPError(ErrorCodeJobNotRunning, err.Error(), map[string]interface{}{
			"job_id": jobID,
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "cancel failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"job_id": jobID,
		"status": string(types.JobStatusCancelled),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchProjects handles the search_projects tool invocation
func (s *Server) handleSearchProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required", map[string]interface{}{
			"param":  "query",
			"reason": "missing",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results := s.index.Search(query, limit)

	hits := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		hits = append(hits, map[string]interface{}{
			"project": r.Project,
			"score":   r.Score,
		})
	}
	response := map[string]interface{}{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListProjects handles the list_projects tool invocation
func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	opts := index.ListOptions{
		Type:       getStringDefault(args, "type", ""),
		Provider:   getStringDefault(args, "provider", ""),
		Tags:       toStringSlice(args["tags"]),
		Importance: getIntDefault(args, "importance", 0),
		SortBy:     getStringDefault(args, "sort_by", ""),
		SortDesc:   getBoolDefault(args, "sort_desc", false),
		Offset:     getIntDefault(args, "offset", 0),
		Limit:      getIntDefault(args, "limit", 0),
	}

	projects := s.index.GetAll(opts)
	response := map[string]interface{}{
		"count":    len(projects),
		"total":    s.index.Count(),
		"projects": projects,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetProject handles the get_project tool invocation
func (s *Server) handleGetProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, mcpErr := requiredString(request, "id")
	if mcpErr != nil {
		return nil, mcpErr
	}

	project, err := s.store.GetProject(id)
	if errors.Is(err, types.ErrProjectNotFound) {
		return nil, newMCPError(ErrorCodeProjectNotFound, err.Error(), map[string]interface{}{
			"id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatValue(project)), nil
}

// handleUpdateProject handles the update_project tool invocation
func (s *Server) handleUpdateProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "id parameter is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing or empty",
		})
	}

	var update store.ProjectUpdate
	if name, present := args["name"].(string); present {
		update.Name = &name
	}
	if description, present := args["description"].(string); present {
		update.Description = &description
	}
	if _, present := args["tags"]; present {
		tags := toStringSlice(args["tags"])
		update.Tags = &tags
	}
	if _, present := args["importance"]; present {
		importance := getIntDefault(args, "importance", types.DefaultImportance)
		if importance < 1 || importance > 5 {
			return nil, newMCPError(ErrorCodeInvalidParams, "importance must be between 1 and 5", map[string]interface{}{
				"param": "importance",
				"value": importance,
			})
		}
		update.Importance = &importance
	}

	project, err := s.store.UpdateProject(id, update)
	if errors.Is(err, types.ErrProjectNotFound) {
		return nil, newMCPError(ErrorCodeProjectNotFound, err.Error(), map[string]interface{}{
			"id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to update project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.index.UpdateProject(project)
	s.log.Info("project updated", zap.String("id", id))

	return mcp.NewToolResultText(formatValue(project)), nil
}

// handleDeleteProject handles the delete_project tool invocation
func (s *Server) handleDeleteProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, mcpErr := requiredString(request, "id")
	if mcpErr != nil {
		return nil, mcpErr
	}

	err := s.store.DeleteProject(id)
	if errors.Is(err, types.ErrProjectNotFound) {
		return nil, newMCPError(ErrorCodeProjectNotFound, err.Error(), map[string]interface{}{
			"id": id,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.index.RemoveProject(id)
	s.log.Info("project deleted", zap.String("id", id))

	response := map[string]interface{}{
		"deleted": true,
		"id":      id,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleExportCatalog handles the export_catalog tool invocation
func (s *Server) handleExportCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatValue(s.store.Export())), nil
}

// handleScanHistory handles the scan_history tool invocation
func (s *Server) handleScanHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return nil, newMCPError(ErrorCodeHistoryDisabled, "scan history is disabled", nil)
	}

	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		args = map[string]interface{}{}
	}

	opts := history.ListOptions{
		Status: types.JobStatus(getStringDefault(args, "status", "")),
		Limit:  getIntDefault(args, "limit", 0),
	}

	entries, err := s.history.List(ctx, opts)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list scan history", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requiredString extracts a mandatory string parameter.
func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return value, nil
}

// parseScanPaths accepts a mixed array of path strings and
// {path, includeAsProject} objects, the catalog's native paths shape.
func parseScanPaths(raw interface{}) ([]types.ScanPath, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("paths must be an array")
	}
	paths := make([]types.ScanPath, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v == "" {
				return nil, errors.New("path entries cannot be empty")
			}
			paths = append(paths, types.ScanPath{Path: v})
		case map[string]interface{}:
			path, _ := v["path"].(string)
			if path == "" {
				return nil, errors.New("path entries require a non-empty path")
			}
			include, _ := v["includeAsProject"].(bool)
			paths = append(paths, types.ScanPath{Path: path, IncludeAsProject: include})
		default:
			return nil, fmt.Errorf("unsupported path entry %T", item)
		}
	}
	return paths, nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	return formatValue(data)
}

// formatValue formats any JSON-encodable value as indented JSON
func formatValue(data interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// toStringSlice converts a JSON array argument to []string, dropping
// non-string entries.
func toStringSlice(raw interface{}) []string {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
