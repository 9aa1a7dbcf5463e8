// Package backoff provides retry delay strategies for job execution.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each attempt.
// Delay = min(Base * 2^(attempt-1), Cap).
type Exponential struct {
	Base time.Duration
	Cap  time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(base, capDelay time.Duration) *Exponential {
	return &Exponential{Base: base, Cap: capDelay}
}

// Delay returns Base * 2^(attempt-1), capped at Cap.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if e.Cap > 0 && d > e.Cap {
		return e.Cap
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (bounded additive jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter adds a bounded random addend to an exponential
// base. Delay = min(Base * 2^(attempt-1), Cap) + random in [0, Jitter).
// The addend de-synchronizes re-dispatch when many retries land on the
// same tick, while keeping the delay monotonically non-decreasing in
// the attempt number for any fixed jitter draw.
type ExponentialWithJitter struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with a
// bounded additive jitter.
func NewExponentialWithJitter(base, capDelay, jitter time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Base: base, Cap: capDelay, Jitter: jitter}
}

// Delay returns min(Base * 2^(attempt-1), Cap) plus a random addend in
// [0, Jitter).
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Base) * math.Pow(2, float64(attempt-1)))
	if e.Cap > 0 && d > e.Cap {
		d = e.Cap
	}
	if e.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(e.Jitter))) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return d
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default backoff used by the scheduler:
// exponential with 1s base, 30s cap, and 0–1s jitter.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(1*time.Second, 30*time.Second, 1*time.Second)
}
