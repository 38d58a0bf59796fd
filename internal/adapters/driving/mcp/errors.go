// Package mcp provides an MCP (Model Context Protocol) server adapter for sercha-ingest.
// It lets AI assistants inspect and steer burst ingestion for the configured providers.
package mcp

import "errors"

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("mcp: ingestion service is required")
