// Package ai creates embedding provider adapters from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/brief-cli/internal/adapters/driven/embedding/limited"
	ollamaembed "github.com/custodia-labs/brief-cli/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/brief-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/logger"
	"github.com/custodia-labs/brief-cli/internal/ratelimit"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// NewEmbeddingProvider creates the provider selected in settings, wrapped in
// the sliding-window rate limiter. It returns nil without an error when
// embedding is disabled or not configured, so ingestion still stores
// documents and search reports the provider as unavailable.
func NewEmbeddingProvider(settings *domain.Settings) (driven.EmbeddingProvider, error) {
	if settings == nil || !settings.Batch.Enabled {
		logger.Debug("Embedding disabled in settings")
		return nil, nil
	}
	if !settings.Embedding.IsConfigured() {
		logger.Warn("Embedding provider not configured; run 'brief settings embedding'")
		return nil, nil
	}

	provider, err := CreateEmbeddingProvider(&settings.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'brief settings embedding' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}

	logger.Debug("Embedding with %s (%s)", settings.Embedding.Provider, provider.ModelName())
	return limited.New(provider, ratelimit.FromSettings(settings.RateLimit)), nil
}

// CreateEmbeddingProvider creates the unwrapped provider for the settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingProvider(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// ValidateEmbeddingConfig creates a provider for the settings and pings it.
// This is intended for the settings wizard to check credentials on configuration.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return fmt.Errorf("%w: embedding provider is not configured", domain.ErrInvalidInput)
	}

	provider, err := CreateEmbeddingProvider(settings)
	if err != nil {
		return err
	}
	defer provider.Close()

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := provider.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// createOllamaEmbedding creates an Ollama embedding provider.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingProvider {
	return ollamaembed.New(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding provider.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingProvider, error) {
	provider, err := openaiembed.New(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	return provider, nil
}
