// Package openai provides an embedding provider backed by the OpenAI API
// or any endpoint that speaks the same embeddings protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

// Config holds configuration for the OpenAI embedding provider.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Empty uses the public OpenAI endpoint.
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the embedding model to use (default: text-embedding-3-small).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions overrides the default dimension for the model.
	// Only text-embedding-3-* models accept it.
	Dimensions int
}

// Provider generates embeddings through go-openai.
type Provider struct {
	client     *goopenai.Client
	model      string
	dimensions int
	override   bool
}

// New creates a new OpenAI embedding provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	config := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	config.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}

	return &Provider{
		client:     goopenai.NewClientWithConfig(config),
		model:      cfg.Model,
		dimensions: dimensions,
		override:   cfg.Dimensions > 0 && supportsDimensions(cfg.Model),
	}, nil
}

// EmbedBatch embeds all texts in one call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) (*driven.EmbeddingResponse, error) {
	if len(texts) == 0 {
		return &driven.EmbeddingResponse{}, nil
	}

	req := goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: goopenai.EmbeddingModel(p.model),
	}
	if p.override {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, classify(err)
	}

	// Results carry their input index; order them explicitly
	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("openai: %w: index %d out of range", domain.ErrProviderResponse, data.Index)
		}
		vectors[data.Index] = data.Embedding
	}

	return &driven.EmbeddingResponse{
		Vectors: vectors,
		Usage:   resp.Usage.TotalTokens,
	}, nil
}

// Dimensions returns the embedding vector size, or 0 for unknown models.
func (p *Provider) Dimensions() int {
	return p.dimensions
}

// ModelName returns the name of the embedding model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Ping validates the API key by listing models.
// This is a lightweight check that does not run inference.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai: ping failed: %w", classify(err))
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

// classify maps API failures onto domain errors.
func classify(err error) error {
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("openai: %w: %v", domain.ErrRateLimited, err)
	case status >= 500 || status == 0:
		return fmt.Errorf("openai: %w: %v", domain.ErrEmbeddingUnavailable, err)
	default:
		return fmt.Errorf("openai: %w", err)
	}
}

func supportsDimensions(model string) bool {
	return model == "text-embedding-3-small" || model == "text-embedding-3-large"
}
