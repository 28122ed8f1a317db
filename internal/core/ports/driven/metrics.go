package driven

import (
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// MetricsRecorder records pipeline metrics.
type MetricsRecorder interface {
	// IngestCompleted records one finished ingestion.
	IngestCompleted(outcome domain.IngestOutcome, elapsed time.Duration)

	// FragmentsEmbedded records fragments that received a vector.
	FragmentsEmbedded(n int)

	// BatchFailed records an embedding batch that failed.
	BatchFailed()

	// RateLimited records a call rejected by the local rate limiter.
	RateLimited()

	// SearchCompleted records one search call.
	SearchCompleted(results int, elapsed time.Duration, err error)
}
