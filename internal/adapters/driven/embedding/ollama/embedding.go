// Package ollama provides an embedding provider backed by a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "nomic-embed-text"
	DefaultTimeout = 60 * time.Second
)

// maxErrorBody bounds how much of an error response is quoted.
const maxErrorBody = 512

// Config holds configuration for the Ollama embedding provider.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// Dimensions is the embedding vector size. Zero looks the model up.
	Dimensions int
}

// Provider generates embeddings with the Ollama /api/embed endpoint,
// which accepts a list of inputs in one request.
type Provider struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

// embedRequest is the Ollama API request format.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the Ollama API response format.
type embedResponse struct {
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// New creates a new Ollama embedding provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = domain.EmbeddingDimensions()[cfg.Model]
	}

	return &Provider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// EmbedBatch embeds all texts in one request.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) (*driven.EmbeddingResponse, error) {
	if len(texts) == 0 {
		return &driven.EmbeddingResponse{}, nil
	}

	jsonBody, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("ollama: %w: decode: %v", domain.ErrProviderResponse, err)
	}
	if embedResp.Embeddings == nil {
		return nil, fmt.Errorf("ollama: %w: missing embeddings field", domain.ErrProviderResponse)
	}

	return &driven.EmbeddingResponse{
		Vectors: embedResp.Embeddings,
		Usage:   embedResp.PromptEvalCount,
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

// Ping validates the server is reachable by checking the /api/tags endpoint.
// This is a lightweight check that validates connectivity without running inference.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("ollama: %w: %s", domain.ErrRateLimited, body)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("ollama: %w: status %d: %s", domain.ErrEmbeddingUnavailable, resp.StatusCode, body)
	default:
		return fmt.Errorf("ollama: API returned status %d: %s", resp.StatusCode, body)
	}
}
