package fetcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per crawled source
type RateLimiter interface {
	Wait(ctx context.Context, sourceID string) error
}

// SourceLimiter keeps one token bucket per source
type SourceLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewSourceLimiter creates a limiter allowing one request per interval per
// source. A non-positive interval disables throttling.
func NewSourceLimiter(cfg config.RateLimitConfig) *SourceLimiter {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &SourceLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Wait blocks until the source may be requested again or ctx ends
func (l *SourceLimiter) Wait(ctx context.Context, sourceID string) error {
	if err := l.limiter(sourceID).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", sourceID, err)
	}
	return nil
}

func (l *SourceLimiter) limiter(sourceID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[sourceID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[sourceID] = lim
	}
	return lim
}

// NopLimiter never waits
type NopLimiter struct{}

// Wait returns immediately
func (NopLimiter) Wait(ctx context.Context, _ string) error {
	return ctx.Err()
}
