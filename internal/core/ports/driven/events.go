package driven

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// EventPublisher publishes ingestion events to downstream consumers.
type EventPublisher interface {
	// PublishIngest publishes the outcome of one ingestion.
	PublishIngest(ctx context.Context, event domain.IngestEvent) error

	// Close flushes and releases resources.
	Close() error
}
