// Package messages defines Bubbletea message types for the TUI.
// Messages carry ingestion events from the worker goroutine into the model.
package messages

import (
	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// IngestProgress reports a stage transition or embedding progress for one document.
type IngestProgress struct {
	// Index is the document's position in the queue.
	Index int
	// Progress is the event emitted by the ingestion service.
	Progress domain.IngestProgress
}

// DocumentDone is sent when one document has finished, successfully or not.
type DocumentDone struct {
	Index   int
	Summary *domain.IngestSummary
	Err     error
}

// AllDone is sent once every queued document has been processed.
type AllDone struct{}
