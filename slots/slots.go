// Package slots guards the bounded set of concurrent submission slots
// toward the blockchain executor.
package slots

import (
	"sync"

	"golang.org/x/time/rate"
)

// Manager tracks in-flight jobs against a concurrency ceiling, with an
// optional sustained dispatch rate limit toward the executor. It is
// safe for concurrent use.
//
// A job id present in the in-flight set can never acquire a second
// slot, so a job never executes twice concurrently.
type Manager struct {
	mu       sync.Mutex
	ceiling  int
	limiter  *rate.Limiter
	inflight map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithRateLimit sets the maximum sustained dispatches per second toward
// the executor using a token bucket. Burst defaults to 1 if zero.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(m *Manager) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewManager creates a Manager with the given concurrency ceiling.
func NewManager(ceiling int, opts ...Option) *Manager {
	m := &Manager{
		ceiling:  ceiling,
		inflight: make(map[string]struct{}, ceiling),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire claims a submission slot for the given job. It returns false
// if the ceiling is reached, the job is already in flight, or the rate
// limiter denies the dispatch. The caller MUST call Release when the
// execution completes, regardless of outcome.
func (m *Manager) Acquire(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.inflight) >= m.ceiling {
		return false
	}
	if _, dup := m.inflight[jobID]; dup {
		return false
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return false
	}

	m.inflight[jobID] = struct{}{}
	return true
}

// Release frees the slot held by the given job.
func (m *Manager) Release(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, jobID)
}

// Contains reports whether the job currently holds a slot.
func (m *Manager) Contains(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[jobID]
	return ok
}

// InFlight returns the number of jobs currently holding slots.
func (m *Manager) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// Free returns the number of slots currently available.
func (m *Manager) Free() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ceiling - len(m.inflight)
}

// Ceiling returns the configured concurrency ceiling.
func (m *Manager) Ceiling() int { return m.ceiling }
