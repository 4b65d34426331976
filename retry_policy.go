package fetchcache

import (
	"time"

	"github.com/groundedgems/fetchcache/internal/backoff"
)

// BackoffMultiplier is the fixed growth factor between retry delays.
const BackoffMultiplier = 2

// RetryPolicy is the immutable retry configuration of one call.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Condition  RetryCondition
	strategy   backoff.Strategy
}

// Delay returns the wait after the failed zero-based attempt:
// BaseDelay * 2^attempt, subject to the client's cap and jitter settings.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return backoff.NewCalculator(p.strategy, p.BaseDelay).Delay(attempt)
}

// ShouldRetry reports whether err, raised by the zero-based attempt, earns
// another attempt. Superseded and cancelled calls are never retried.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.MaxRetries {
		return false
	}
	switch KindOf(err) {
	case KindSuperseded, KindCanceled, KindInvalidRequest, KindValidation:
		return false
	}
	condition := p.Condition
	if condition == nil {
		condition = DefaultRetryCondition
	}
	return condition(err, attempt)
}

// DefaultRetryCondition retries network failures and attempt timeouts.
// Non-2xx responses are not retried.
func DefaultRetryCondition(err error, _ int) bool {
	return IsRetryable(err)
}

// RetryOnStatus extends DefaultRetryCondition to the given status codes.
func RetryOnStatus(codes ...int) RetryCondition {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return func(err error, attempt int) bool {
		if DefaultRetryCondition(err, attempt) {
			return true
		}
		if KindOf(err) != KindHTTPStatus {
			return false
		}
		_, ok := set[StatusCode(err)]
		return ok
	}
}

// RetryOnServerErrors retries network failures, timeouts, 429 and 5xx.
func RetryOnServerErrors(err error, attempt int) bool {
	if DefaultRetryCondition(err, attempt) {
		return true
	}
	code := StatusCode(err)
	return KindOf(err) == KindHTTPStatus && (code == 429 || code >= 500)
}
