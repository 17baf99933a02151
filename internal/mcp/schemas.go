package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// startScanTool returns the tool definition for start_scan
func startScanTool() mcp.Tool {
	return mcp.Tool{
		Name:        "start_scan",
		Description: "Scan configured directories for projects. Supersedes any running scan and returns a job ID immediately",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Root directories to scan; omit to use the configured defaults. Entries are either a path string or {path, includeAsProject}",
					"items": map[string]interface{}{
						"type": []string{"string", "object"},
					},
				},
				"ignored_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns excluded from discovery (in addition to none; replaces configured defaults when given)",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"max_depth": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum discovery depth below each root",
					"minimum":     1,
				},
				"min_size_bytes": map[string]interface{}{
					"type":        "integer",
					"description": "Candidates smaller than this sampled size are skipped",
					"minimum":     0,
				},
			},
		},
	}
}

// getScanStatusTool returns the tool definition for get_scan_status
func getScanStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_scan_status",
		Description: "Poll a scan job: status, progress, and the result once complete",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job ID returned by start_scan",
				},
			},
			Required: []string{"job_id"},
		},
	}
}

// cancelScanTool returns the tool definition for cancel_scan
func cancelScanTool() mcp.Tool {
	return mcp.Tool{
		Name:        "cancel_scan",
		Description: "Cancel a running scan job",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"job_id": map[string]interface{}{
					"type":        "string",
					"description": "Job ID returned by start_scan",
				},
			},
			Required: []string{"job_id"},
		},
	}
}

// searchProjectsTool returns the tool definition for search_projects
func searchProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_projects",
		Description: "Fuzzy-search the catalog across project name, path, description, and tags",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query; an empty query returns projects in catalog order",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// listProjectsTool returns the tool definition for list_projects
func listProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_projects",
		Description: "List catalog projects with exact-match filters, sorting, and pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Filter by project type",
					"enum":        []string{"git", "local"},
				},
				"provider": map[string]interface{}{
					"type":        "string",
					"description": "Filter by VCS provider (github, gitlab, bitbucket, ...)",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Keep projects carrying any of these tags",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"importance": map[string]interface{}{
					"type":        "integer",
					"description": "Filter by exact importance (1-5)",
					"minimum":     1,
					"maximum":     5,
				},
				"sort_by": map[string]interface{}{
					"type":        "string",
					"description": "Sort field",
					"enum": []string{
						"name", "path", "type", "language", "provider",
						"importance", "sizeBytes", "fileCount",
						"createdAt", "lastModifiedAt", "lastScannedAt",
					},
				},
				"sort_desc": map[string]interface{}{
					"type":        "boolean",
					"description": "Sort descending (records without the field first)",
					"default":     false,
				},
				"offset": map[string]interface{}{
					"type":        "integer",
					"description": "Number of records to skip",
					"minimum":     0,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of records to return",
					"minimum":     1,
				},
			},
		},
	}
}

// getProjectTool returns the tool definition for get_project
func getProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_project",
		Description: "Fetch one project by ID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Project ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

// updateProjectTool returns the tool definition for update_project
func updateProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_project",
		Description: "Edit user-facing fields of a project. Marks the record user-modified; later scans keep tags and importance",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Project ID",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "New display name",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "New description",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Replacement tag list",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"importance": map[string]interface{}{
					"type":        "integer",
					"description": "New importance (1-5)",
					"minimum":     1,
					"maximum":     5,
				},
			},
			Required: []string{"id"},
		},
	}
}

// deleteProjectTool returns the tool definition for delete_project
func deleteProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_project",
		Description: "Remove a project from the catalog. The next scan re-adds it if it still exists on disk",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"id": map[string]interface{}{
					"type":        "string",
					"description": "Project ID",
				},
			},
			Required: []string{"id"},
		},
	}
}

// exportCatalogTool returns the tool definition for export_catalog
func exportCatalogTool() mcp.Tool {
	return mcp.Tool{
		Name:        "export_catalog",
		Description: "Export the full catalog document (meta plus all projects) as JSON",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// scanHistoryTool returns the tool definition for scan_history
func scanHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "scan_history",
		Description: "List recent scan runs, most recent first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"status": map[string]interface{}{
					"type":        "string",
					"description": "Filter by terminal status",
					"enum":        []string{"complete", "error", "cancelled"},
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of entries to return",
					"default":     50,
					"minimum":     1,
				},
			},
		},
	}
}
