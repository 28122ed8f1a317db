package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
	"github.com/custodia-labs/brief-cli/internal/logger"
)

// defaultBatchSize is used when the configured batch size is not positive.
const defaultBatchSize = 20

// EmbeddingBatcher converts texts into vectors through the embedding provider.
// Batches are submitted one after another, never concurrently, and a failing
// batch does not stop the ones after it.
type EmbeddingBatcher struct {
	provider driven.EmbeddingProvider
	cfg      domain.BatchSettings
	cache    driven.EmbeddingCache
	metrics  driven.MetricsRecorder

	// dims is the vector size seen so far, seeded from the provider.
	dims atomic.Int64
}

// NewEmbeddingBatcher creates a batcher for the provider.
// The provider may be nil, in which case every batch fails with domain.ErrEmbeddingUnavailable.
func NewEmbeddingBatcher(provider driven.EmbeddingProvider, cfg domain.BatchSettings) *EmbeddingBatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	b := &EmbeddingBatcher{
		provider: provider,
		cfg:      cfg,
		metrics:  nopMetrics{},
	}
	if provider != nil {
		b.dims.Store(int64(provider.Dimensions()))
	}
	return b
}

// SetCache sets the query vector cache. Nil disables caching.
func (b *EmbeddingBatcher) SetCache(cache driven.EmbeddingCache) {
	b.cache = cache
}

// SetMetrics sets the metrics recorder.
func (b *EmbeddingBatcher) SetMetrics(m driven.MetricsRecorder) {
	if m != nil {
		b.metrics = m
	}
}

// EmbedBatch embeds every request and returns one tagged outcome per request, in order.
// Failures are recorded per item and per batch; the returned error is reserved for
// a cancelled context, in which case the partial result is returned with it.
func (b *EmbeddingBatcher) EmbedBatch(
	ctx context.Context,
	reqs []domain.EmbedRequest,
	onProgress func(domain.BatchProgress),
) (*domain.BatchResult, error) {
	result := &domain.BatchResult{
		Outcomes: make([]domain.EmbedOutcome, len(reqs)),
	}

	// Normalise and reject empty texts locally
	texts := make([]string, 0, len(reqs))
	positions := make([]int, 0, len(reqs))
	for i, req := range reqs {
		text := NormalizeText(req.Text, b.cfg.MaxInputChars())
		if text == "" {
			result.Outcomes[i] = domain.EmbedOutcome{Err: domain.ErrEmptyText, Batch: -1}
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: %v", i, domain.ErrEmptyText))
			continue
		}
		texts = append(texts, text)
		positions = append(positions, i)
	}

	size := b.cfg.BatchSize
	batches := (len(texts) + size - 1) / size
	processed := len(reqs) - len(texts)
	pacer := b.pacer()

	logger.Debug("Embedding %d items in %d batches of up to %d", len(texts), batches, size)

	for batch := 0; batch < batches; batch++ {
		lo := batch * size
		hi := min(lo+size, len(texts))

		if err := pacer.Wait(ctx); err != nil {
			b.failRemaining(result, positions, lo, size, err)
			return result, fmt.Errorf("embedding cancelled before batch %d: %w", batch, err)
		}

		var (
			vectors [][]float32
			usage   int
			err     error
		)
		switch {
		case !b.cfg.Enabled:
			err = domain.ErrEmbeddingDisabled
		case b.provider == nil:
			err = domain.ErrEmbeddingUnavailable
		default:
			vectors, usage, err = b.embed(ctx, texts[lo:hi])
		}

		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				b.metrics.RateLimited()
			}
			b.metrics.BatchFailed()
			logger.Warn("Batch %d failed: %v", batch, err)

			result.Errors = append(result.Errors, fmt.Sprintf("batch %d (items %d-%d): %v",
				batch, positions[lo], positions[hi-1], err))
			for j := lo; j < hi; j++ {
				result.Outcomes[positions[j]] = domain.EmbedOutcome{
					Err:   fmt.Errorf("batch %d: %w", batch, err),
					Batch: batch,
				}
			}
		} else {
			for j := lo; j < hi; j++ {
				result.Outcomes[positions[j]] = domain.EmbedOutcome{Vector: vectors[j-lo], Batch: batch}
			}
			result.Usage += usage
			result.Succeeded += hi - lo
		}

		processed += hi - lo
		if onProgress != nil {
			onProgress(domain.BatchProgress{
				Processed: processed,
				Total:     len(reqs),
				Batch:     batch,
				Batches:   batches,
			})
		}

		if err := ctx.Err(); err != nil {
			b.failRemaining(result, positions, hi, size, err)
			return result, fmt.Errorf("embedding cancelled after batch %d: %w", batch, err)
		}
	}

	return result, nil
}

// EmbedQuery embeds a single text. Any failure is returned directly.
// It also returns the provider-reported usage, which is 0 for cached vectors.
func (b *EmbeddingBatcher) EmbedQuery(ctx context.Context, text string) ([]float32, int, error) {
	if !b.cfg.Enabled {
		return nil, 0, domain.ErrEmbeddingDisabled
	}
	if b.provider == nil {
		return nil, 0, domain.ErrEmbeddingUnavailable
	}

	normalized := NormalizeText(text, b.cfg.MaxInputChars())
	if normalized == "" {
		return nil, 0, domain.ErrEmptyText
	}

	var usage int
	compute := func(ctx context.Context) ([]float32, error) {
		vectors, u, err := b.embed(ctx, []string{normalized})
		if err != nil {
			return nil, err
		}
		usage = u
		return vectors[0], nil
	}

	if b.cache == nil {
		vector, err := compute(ctx)
		if err != nil {
			b.recordQueryError(err)
			return nil, 0, err
		}
		return vector, usage, nil
	}

	key := b.provider.ModelName() + ":" + normalized
	vector, hit, err := b.cache.GetOrCompute(ctx, key, compute)
	if err != nil {
		b.recordQueryError(err)
		return nil, 0, err
	}
	if hit {
		logger.Debug("Query vector served from cache")
	}
	if len(vector) == 0 {
		return nil, 0, fmt.Errorf("%w: empty cached vector", domain.ErrProviderResponse)
	}
	return vector, usage, nil
}

func (b *EmbeddingBatcher) recordQueryError(err error) {
	if errors.Is(err, domain.ErrRateLimited) {
		b.metrics.RateLimited()
	}
}

// embed performs one provider call and validates the response shape.
func (b *EmbeddingBatcher) embed(ctx context.Context, texts []string) ([][]float32, int, error) {
	resp, err := b.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, 0, err
	}
	if resp == nil || len(resp.Vectors) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Vectors)
		}
		return nil, 0, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrProviderResponse, len(texts), got)
	}

	dims := int(b.dims.Load())
	for i, v := range resp.Vectors {
		if len(v) == 0 {
			return nil, 0, fmt.Errorf("%w: missing vector for input %d", domain.ErrProviderResponse, i)
		}
		if dims == 0 {
			dims = len(v)
			b.dims.CompareAndSwap(0, int64(dims))
		}
		if len(v) != dims {
			return nil, 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				domain.ErrProviderResponse, i, len(v), dims)
		}
	}

	return resp.Vectors, resp.Usage, nil
}

// pacer spaces batch submissions by the configured delay.
func (b *EmbeddingBatcher) pacer() *rate.Limiter {
	if b.cfg.Delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(b.cfg.Delay), 1)
}

// failRemaining tags every item from text position lo onwards with err.
func (b *EmbeddingBatcher) failRemaining(result *domain.BatchResult, positions []int, lo, size int, err error) {
	if lo >= len(positions) {
		return
	}
	for j := lo; j < len(positions); j++ {
		result.Outcomes[positions[j]] = domain.EmbedOutcome{Err: err, Batch: j / size}
	}
	result.Errors = append(result.Errors, fmt.Sprintf("items %d-%d not embedded: %v",
		positions[lo], positions[len(positions)-1], err))
}

// NormalizeText collapses whitespace runs into single spaces, strips control
// characters, and truncates to maxChars characters when maxChars is positive.
func NormalizeText(text string, maxChars int) string {
	var b strings.Builder
	b.Grow(len(text))

	count := 0
	pendingSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		if pendingSpace && count > 0 {
			if maxChars > 0 && count >= maxChars {
				break
			}
			b.WriteByte(' ')
			count++
		}
		pendingSpace = false
		if maxChars > 0 && count >= maxChars {
			break
		}
		b.WriteRune(r)
		count++
	}

	return strings.TrimRight(b.String(), " ")
}
