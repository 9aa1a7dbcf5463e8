// Package eta estimates queue wait times from recent submission
// history. Estimates are informational only and never affect dispatch
// ordering.
package eta

import (
	"sync"
	"time"
)

// Calculator maintains a rolling window of recent submission durations
// and derives per-slot wait estimates from it. Until the first
// completion lands, the fallback duration (the scheduler tick) is used
// so early estimates stay conservative rather than reporting zero.
type Calculator struct {
	mu       sync.Mutex
	samples  []time.Duration
	next     int
	filled   bool
	fallback time.Duration
}

// NewCalculator creates a calculator with the given window size and
// fallback slot time.
func NewCalculator(window int, fallback time.Duration) *Calculator {
	if window <= 0 {
		window = 1
	}

	return &Calculator{
		samples:  make([]time.Duration, 0, window),
		fallback: fallback,
	}
}

// Observe records the duration of one completed submission. The window
// keeps only the most recent observations.
func (c *Calculator) Observe(d time.Duration) {
	if d < 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.samples) < cap(c.samples) {
		c.samples = append(c.samples, d)
		return
	}

	c.samples[c.next] = d
	c.next = (c.next + 1) % cap(c.samples)
	c.filled = true
}

// AverageProcessing returns the mean submission duration over the
// window, or zero when no completions have been observed yet.
func (c *Calculator) AverageProcessing() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.averageLocked()
}

// SlotTime returns the expected time one dispatch slot is occupied:
// the windowed average when available, otherwise the fallback.
func (c *Calculator) SlotTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if avg := c.averageLocked(); avg > 0 {
		return avg
	}
	return c.fallback
}

// EstimateWait estimates how long the job at the given 1-based queue
// rank waits before dispatch begins: position times the average slot
// time. The estimate is deliberately conservative — it ignores the
// concurrency ceiling, so a full pipeline never makes the reported
// wait shorter than reality.
func (c *Calculator) EstimateWait(rank int) time.Duration {
	if rank <= 0 {
		return 0
	}

	return time.Duration(rank) * c.SlotTime()
}

func (c *Calculator) averageLocked() time.Duration {
	if len(c.samples) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range c.samples {
		sum += d
	}
	return sum / time.Duration(len(c.samples))
}
