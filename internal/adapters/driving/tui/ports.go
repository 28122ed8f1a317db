// Package tui provides the terminal progress view for document ingestion.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/brief-cli/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Ingest runs the ingestion pipeline.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Ingest == nil {
		return ErrMissingIngestService
	}
	return nil
}
