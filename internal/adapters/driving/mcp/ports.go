package mcp

import (
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides semantic search.
	Search driving.SearchService

	// Context assembles drafting context. Optional.
	Context driving.ContextService

	// Ingest adds documents. Optional; the ingest_text tool is only
	// registered when it is set.
	Ingest driving.IngestService

	// Document exposes stored documents as resources. Optional.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
