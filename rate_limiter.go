package fetchcache

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces outbound attempts with a token bucket. Attempts wait for
// a token instead of failing, unless the wait would outlast the context.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows maxTokens attempts in a burst, refilling one token
// every refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(refillRate), maxTokens),
	}
}

// Allow takes a token if one is available right now.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Tokens returns the tokens currently available.
func (rl *RateLimiter) Tokens() float64 {
	return rl.limiter.Tokens()
}

// Burst returns the bucket size.
func (rl *RateLimiter) Burst() int {
	return rl.limiter.Burst()
}
