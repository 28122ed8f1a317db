// Package ratelimit provides a sliding-window request limiter that rejects
// calls immediately, with a retry-after hint, instead of queueing them.
package ratelimit

import (
	"sync"
	"time"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

// Limiter allows at most maxRequests calls within any window-long interval.
// It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	now         func() time.Time
	stamps      []time.Time
	blockedTill time.Time
}

// Option configures the limiter.
type Option func(*Limiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter. maxRequests <= 0 disables limiting.
func New(window time.Duration, maxRequests int, opts ...Option) *Limiter {
	l := &Limiter{
		window:      window,
		maxRequests: maxRequests,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromSettings creates a limiter from the rate-limit settings.
func FromSettings(cfg domain.RateLimitSettings, opts ...Option) *Limiter {
	return New(cfg.Window, cfg.MaxRequests, opts...)
}

// Allow records a call if the window has room.
// Otherwise it returns a *domain.RateLimitError carrying how long until a slot frees up.
func (l *Limiter) Allow() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if now.Before(l.blockedTill) {
		return &domain.RateLimitError{RetryAfter: l.blockedTill.Sub(now)}
	}

	if l.maxRequests <= 0 || l.window <= 0 {
		return nil
	}

	l.prune(now)

	if len(l.stamps) >= l.maxRequests {
		retryAfter := l.stamps[0].Add(l.window).Sub(now)
		return &domain.RateLimitError{RetryAfter: retryAfter}
	}

	l.stamps = append(l.stamps, now)
	return nil
}

// Block rejects all calls until retryAfter has elapsed.
// Used when the provider itself reports a rate limit.
func (l *Limiter) Block(retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(retryAfter)
	if until.After(l.blockedTill) {
		l.blockedTill = until
	}
}

// Remaining returns how many calls the current window still admits, or -1 when unlimited.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.maxRequests <= 0 || l.window <= 0 {
		return -1
	}
	l.prune(l.now())
	return l.maxRequests - len(l.stamps)
}

// prune drops timestamps that have left the window (caller must hold lock).
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
