package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown MIME type, provider or backend.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmptyText indicates a text was empty after normalisation and was not sent to the provider.
	ErrEmptyText = errors.New("empty text")

	// ErrDimensionMismatch indicates two vectors of different dimensionality were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingDisabled indicates embedding was administratively disabled in settings.
	ErrEmbeddingDisabled = errors.New("embedding disabled")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrProviderResponse indicates the provider answered with an unrecognised shape,
	// such as a missing vector or the wrong number of vectors.
	ErrProviderResponse = errors.New("unrecognised provider response")

	// ErrRateLimited indicates a local or remote rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable indicates the knowledge store is not configured.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RateLimitError is returned when a call is rejected because the rate-limit window is full.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	// RetryAfter is how long the caller should wait before the window has room again.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %d ms", e.RetryAfter.Milliseconds())
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
