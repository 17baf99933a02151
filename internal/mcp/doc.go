// Package mcp exposes the project catalog over the Model Context Protocol.
//
// The server is a thin surface: every tool handler validates its
// parameters, calls into the scanner/store/index/jobs packages, and maps
// domain errors to MCP error codes. No catalog logic lives here.
//
// Tools:
//
//	start_scan      launch a scan (supersedes a running one), returns job ID
//	get_scan_status poll a job by ID
//	cancel_scan     cancel a running job
//	search_projects weighted fuzzy search over the catalog
//	list_projects   filter, sort, paginate the full catalog
//	get_project     fetch one project by ID
//	update_project  edit name/description/tags/importance
//	delete_project  remove a project from the catalog
//	export_catalog  snapshot of the whole catalog document
//	scan_history    recent scan runs from the journal
//
// Stdout carries the protocol stream; all logging goes to the configured
// zap sinks (file and stderr).
package mcp
