package driven

import "context"

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	// EmbedBatch embeds all texts in one provider call.
	// The response holds one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) (*EmbeddingResponse, error)

	// Dimensions returns the embedding vector size, or 0 if unknown.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the provider is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// EmbeddingResponse is the provider's answer to one EmbedBatch call.
type EmbeddingResponse struct {
	// Vectors holds one vector per input text.
	Vectors [][]float32

	// Usage is the provider-reported token usage for the whole call.
	Usage int
}
