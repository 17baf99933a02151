// Package types defines the shared domain model for projdex: discovered
// projects and their VCS metadata, scan configuration and results, and the
// scan job lifecycle.
//
// These types cross package boundaries (scanner -> store -> index -> mcp),
// so they live outside internal/. JSON tags on Project and Remote define the
// on-disk catalog format; changing them requires a store migration.
package types
