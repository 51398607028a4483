package ratelimit

import (
	"context"
	"time"

	"github.com/matheus3301/tgtriage/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket gating outbound platform calls.
// Tokens refill continuously at refillRate per second up to maxTokens.
type Limiter struct {
	bucket    *rate.Limiter
	maxTokens int
}

// New creates a limiter that starts full.
func New(maxTokens int, refillRate float64) *Limiter {
	if maxTokens < 1 {
		maxTokens = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	return &Limiter{
		bucket:    rate.NewLimiter(rate.Limit(refillRate), maxTokens),
		maxTokens: maxTokens,
	}
}

// Acquire blocks until one token is available and consumes it.
// It only fails when ctx ends first.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	err := l.bucket.Wait(ctx)
	metrics.RateLimitWait.Observe(time.Since(start).Seconds())
	return err
}

// Available reports the current (fractional) token count.
func (l *Limiter) Available() float64 {
	return l.bucket.Tokens()
}

// Capacity returns the bucket size.
func (l *Limiter) Capacity() int {
	return l.maxTokens
}

// RefillRate returns tokens added per second.
func (l *Limiter) RefillRate() float64 {
	return float64(l.bucket.Limit())
}
