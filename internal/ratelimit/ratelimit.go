package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMaxTokens is the bucket capacity used by Default
	DefaultMaxTokens = 10
	// DefaultRefillRate is the refill rate in tokens per second used by Default
	DefaultRefillRate = 2.0
)

// RateLimiter is a token bucket bounding the outbound request rate of a
// single scraper instance. The bucket starts full and refills lazily from
// elapsed wall time.
type RateLimiter struct {
	limiter    *rate.Limiter
	maxTokens  int
	refillRate float64
}

// New creates a token bucket holding at most maxTokens tokens, refilled at
// refillRate tokens per second.
func New(maxTokens int, refillRate float64) *RateLimiter {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if refillRate <= 0 {
		refillRate = DefaultRefillRate
	}
	return &RateLimiter{
		limiter:    rate.NewLimiter(rate.Limit(refillRate), maxTokens),
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
}

// Default creates a bucket of 10 tokens refilled at 2 tokens per second.
func Default() *RateLimiter {
	return New(DefaultMaxTokens, DefaultRefillRate)
}

// WaitForToken blocks until a token is available and consumes it. It returns
// ctx.Err() if the context is done before a token can be taken.
func (r *RateLimiter) WaitForToken(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens reports how many tokens are currently in the bucket, in [0, maxTokens].
func (r *RateLimiter) Tokens() float64 {
	tokens := r.limiter.Tokens()
	if tokens < 0 {
		return 0
	}
	if tokens > float64(r.maxTokens) {
		return float64(r.maxTokens)
	}
	return tokens
}

// MaxTokens returns the bucket capacity.
func (r *RateLimiter) MaxTokens() int {
	return r.maxTokens
}

// RefillInterval returns the time it takes to refill one token.
func (r *RateLimiter) RefillInterval() time.Duration {
	return time.Duration(float64(time.Second) / r.refillRate)
}
