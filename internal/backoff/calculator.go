package backoff

import (
	"context"
	"time"
)

// Calculator pairs a Strategy with the base delay of a retry policy.
type Calculator struct {
	strategy Strategy
	base     time.Duration
}

// NewCalculator creates a calculator. A nil strategy means Exponential with no cap.
func NewCalculator(strategy Strategy, base time.Duration) *Calculator {
	if strategy == nil {
		strategy = Exponential{}
	}
	return &Calculator{strategy: strategy, base: base}
}

// Delay returns the wait that follows the failed zero-based attempt.
func (c *Calculator) Delay(attempt int) time.Duration {
	return c.strategy.Delay(attempt, c.base)
}

// Wait sleeps for Delay(attempt) or until ctx is done, whichever comes first.
func (c *Calculator) Wait(ctx context.Context, attempt int) error {
	return Sleep(ctx, c.Delay(attempt))
}

// Strategy returns the configured strategy.
func (c *Calculator) Strategy() Strategy {
	return c.strategy
}

// Sleep blocks for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
