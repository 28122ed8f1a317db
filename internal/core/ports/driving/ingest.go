package driving

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// ProgressFunc receives ingestion progress events. It is called synchronously.
type ProgressFunc func(domain.IngestProgress)

// IngestService turns decoded documents into stored, embedded fragments.
type IngestService interface {
	// Ingest runs the ingestion pipeline for one document.
	// A returned error means the document was not stored (or the context was cancelled);
	// the summary is still returned and describes how far the run got.
	Ingest(
		ctx context.Context,
		req domain.IngestRequest,
		opts domain.IngestOptions,
		onProgress ProgressFunc,
	) (*domain.IngestSummary, error)

	// IngestMany ingests documents one at a time in input order.
	// A failed document does not stop the remaining ones; the returned error joins all failures.
	IngestMany(
		ctx context.Context,
		reqs []domain.IngestRequest,
		opts domain.IngestOptions,
		onProgress ProgressFunc,
	) ([]domain.IngestSummary, error)
}
