// Package limited wraps an embedding provider with a sliding-window rate limiter.
package limited

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/logger"
	"github.com/custodia-labs/brief-cli/internal/ratelimit"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// DefaultBackoff is how long calls are refused after the provider reports a rate limit.
const DefaultBackoff = 10 * time.Second

// Provider admits provider calls through its own limiter.
// Rejected calls fail immediately with a *domain.RateLimitError; nothing is queued.
type Provider struct {
	next    driven.EmbeddingProvider
	limiter *ratelimit.Limiter
	backoff time.Duration
}

// Option configures the provider.
type Option func(*Provider)

// WithBackoff sets how long to refuse calls after a remote rate limit.
func WithBackoff(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.backoff = d
		}
	}
}

// New wraps next with limiter.
func New(next driven.EmbeddingProvider, limiter *ratelimit.Limiter, opts ...Option) *Provider {
	p := &Provider{
		next:    next,
		limiter: limiter,
		backoff: DefaultBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EmbedBatch checks the limiter, then forwards the call.
// A rate limit reported by the provider blocks further calls for the backoff period.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) (*driven.EmbeddingResponse, error) {
	if err := p.limiter.Allow(); err != nil {
		logger.Debug("Embedding call rejected locally: %v", err)
		return nil, err
	}
	if left := p.limiter.Remaining(); left >= 0 {
		logger.Debug("Embedding call admitted, %d left in window", left)
	}

	resp, err := p.next.EmbedBatch(ctx, texts)
	if err != nil && errors.Is(err, domain.ErrRateLimited) {
		var rlErr *domain.RateLimitError
		if !errors.As(err, &rlErr) {
			logger.Warn("Provider rate limit hit, pausing calls for %s", p.backoff)
			p.limiter.Block(p.backoff)
		}
	}
	return resp, err
}

// Dimensions returns the wrapped provider's vector size.
func (p *Provider) Dimensions() int {
	return p.next.Dimensions()
}

// ModelName returns the wrapped provider's model.
func (p *Provider) ModelName() string {
	return p.next.ModelName()
}

// Ping forwards without consuming a slot.
func (p *Provider) Ping(ctx context.Context) error {
	return p.next.Ping(ctx)
}

// Close closes the wrapped provider.
func (p *Provider) Close() error {
	return p.next.Close()
}
