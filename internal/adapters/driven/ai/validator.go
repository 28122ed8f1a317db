package ai

import (
	"context"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// ConfigValidator validates embedding provider configurations.
type ConfigValidator struct{}

// NewConfigValidator creates a new config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding validates an embedding configuration by pinging the provider.
func (v *ConfigValidator) ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error {
	return ValidateEmbeddingConfig(ctx, settings)
}
