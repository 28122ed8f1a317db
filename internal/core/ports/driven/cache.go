package driven

import "context"

// EmbeddingCache caches query vectors keyed by model and text.
type EmbeddingCache interface {
	// GetOrCompute returns the cached vector for key, or calls compute and caches its result.
	// Concurrent callers for the same key share one compute call.
	// The boolean reports whether the vector came from the cache.
	GetOrCompute(
		ctx context.Context,
		key string,
		compute func(ctx context.Context) ([]float32, error),
	) ([]float32, bool, error)
}
