// Package mcp provides an MCP (Model Context Protocol) server adapter for brief.
// It lets AI assistants search the knowledge store, assemble drafting context
// and add new documents.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
