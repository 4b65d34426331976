// Package backoff computes the delay between retry attempts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// maxShift caps the exponent so the multiplication cannot overflow.
const maxShift = 30

// Strategy computes the delay to wait after the given zero-based attempt failed.
type Strategy interface {
	Delay(attempt int, base time.Duration) time.Duration
}

// Exponential doubles the delay after every attempt: base, 2*base, 4*base...
// A zero Max leaves the delay unbounded.
type Exponential struct {
	Max time.Duration
}

// Delay implements Strategy.
func (s Exponential) Delay(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}

	delay := time.Duration(math.MaxInt64)
	if f := float64(base) * Pow(2, attempt); f < math.MaxInt64 {
		delay = time.Duration(f)
	}
	if s.Max > 0 && delay > s.Max {
		delay = s.Max
	}
	return delay
}

// ExponentialJitter is Exponential with up to Jitter*delay of random slack added.
type ExponentialJitter struct {
	Max    time.Duration
	Jitter float64
}

// Delay implements Strategy.
func (s ExponentialJitter) Delay(attempt int, base time.Duration) time.Duration {
	delay := Exponential{Max: s.Max}.Delay(attempt, base)

	jitter := clampJitter(s.Jitter)
	if jitter == 0 || delay == 0 {
		return delay
	}

	slack := time.Duration(float64(delay) * jitter * rand.Float64())
	if delay > math.MaxInt64-slack {
		delay = math.MaxInt64
	} else {
		delay += slack
	}
	if s.Max > 0 && delay > s.Max {
		delay = s.Max
	}
	return delay
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// Pow calculates base^exponent using integer exponentiation.
func Pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
