// Package memory provides an in-memory store implementation. It is the
// default backend: the queue is explicitly non-durable and restarting
// the process clears all state.
//
// All methods are safe for concurrent use and all returned records are
// copies, so callers never race with the scheduler over shared state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/dlq"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
)

// DefaultDLQCapacity bounds the dead-letter queue when no explicit
// capacity is configured.
const DefaultDLQCapacity = 100

// Store is an in-memory implementation of job.Store and dlq.Store.
type Store struct {
	mu     sync.RWMutex
	closed bool

	jobs map[string]*job.Job

	dlqCapacity int
	dlqEntries  map[string]*dlq.Entry
	dlqOrder    []string // insertion order, oldest first
}

// Option configures the store.
type Option func(*Store)

// WithDLQCapacity overrides the dead-letter queue capacity.
func WithDLQCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.dlqCapacity = n
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		jobs:        make(map[string]*job.Job),
		dlqCapacity: DefaultDLQCapacity,
		dlqEntries:  make(map[string]*dlq.Entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Ping reports whether the store is usable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return drip.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Subsequent operations fail with
// drip.ErrStoreClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// job.Store
// ──────────────────────────────────────────────────

// InsertJob persists a new job.
func (s *Store) InsertJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return drip.ErrStoreClosed
	}
	key := j.ID.String()
	if _, exists := s.jobs[key]; exists {
		return drip.ErrJobAlreadyExists
	}

	s.jobs[key] = j.Clone()
	return nil
}

// GetJob retrieves a copy of a job by ID.
func (s *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, drip.ErrStoreClosed
	}
	j, ok := s.jobs[jobID.String()]
	if !ok {
		return nil, drip.ErrJobNotFound
	}

	return j.Clone(), nil
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return drip.ErrStoreClosed
	}
	key := j.ID.String()
	if _, ok := s.jobs[key]; !ok {
		return drip.ErrJobNotFound
	}

	cp := j.Clone()
	cp.Touch()
	s.jobs[key] = cp
	j.UpdatedAt = cp.UpdatedAt
	return nil
}

// DeleteJob removes a job by ID.
func (s *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return drip.ErrStoreClosed
	}
	key := jobID.String()
	if _, ok := s.jobs[key]; !ok {
		return drip.ErrJobNotFound
	}

	delete(s.jobs, key)
	return nil
}

// ListByRecipient returns all jobs paying out to the given address,
// newest first.
func (s *Store) ListByRecipient(_ context.Context, recipient string) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, drip.ErrStoreClosed
	}

	var out []*job.Job
	for _, j := range s.jobs {
		if j.Payload.Recipient == recipient {
			out = append(out, j.Clone())
		}
	}
	sortNewestFirst(out)

	return out, nil
}

// ListRecent returns up to limit jobs, newest first.
func (s *Store) ListRecent(_ context.Context, limit int) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, drip.ErrStoreClosed
	}

	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sortNewestFirst(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// DueRetries returns retrying jobs whose backoff delay has elapsed.
func (s *Store) DueRetries(_ context.Context, now time.Time) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, drip.ErrStoreClosed
	}

	var out []*job.Job
	for _, j := range s.jobs {
		if j.State == job.StateRetrying && !j.NextRunAt.After(now) {
			out = append(out, j.Clone())
		}
	}

	return out, nil
}

// PurgeTerminal deletes terminal jobs last updated before the cutoff.
func (s *Store) PurgeTerminal(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, drip.ErrStoreClosed
	}

	var removed int64
	for key, j := range s.jobs {
		if j.State.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, key)
			removed++
		}
	}

	return removed, nil
}

// CountJobs returns per-state job counts.
func (s *Store) CountJobs(_ context.Context) (job.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return job.Counts{}, drip.ErrStoreClosed
	}

	var c job.Counts
	for _, j := range s.jobs {
		c.Total++
		switch j.State {
		case job.StatePending:
			c.Pending++
		case job.StateProcessing:
			c.Processing++
		case job.StateCompleted:
			c.Completed++
		case job.StateFailed:
			c.Failed++
		case job.StateRetrying:
			c.Retrying++
		}
	}

	return c, nil
}

// ──────────────────────────────────────────────────
// dlq.Store
// ──────────────────────────────────────────────────

// SetDLQCapacity re-bounds the dead-letter queue, evicting oldest
// entries immediately if the store already holds more than n.
func (s *Store) SetDLQCapacity(n int) {
	if n <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dlqCapacity = n
	for len(s.dlqOrder) > n {
		oldest := s.dlqOrder[0]
		s.dlqOrder = s.dlqOrder[1:]
		delete(s.dlqEntries, oldest)
	}
}

// PushDLQ appends a dead-letter entry, evicting the oldest entry when
// the queue is at capacity.
func (s *Store) PushDLQ(_ context.Context, e *dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return drip.ErrStoreClosed
	}

	if len(s.dlqOrder) >= s.dlqCapacity {
		oldest := s.dlqOrder[0]
		s.dlqOrder = s.dlqOrder[1:]
		delete(s.dlqEntries, oldest)
	}

	key := e.ID.String()
	s.dlqEntries[key] = e.Clone()
	s.dlqOrder = append(s.dlqOrder, key)
	return nil
}

// GetDLQ returns the entry with the given ID.
func (s *Store) GetDLQ(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, drip.ErrStoreClosed
	}
	e, ok := s.dlqEntries[entryID.String()]
	if !ok {
		return nil, drip.ErrDLQNotFound
	}

	return e.Clone(), nil
}

// ListDLQ returns all entries in insertion order, oldest first.
func (s *Store) ListDLQ(_ context.Context) ([]*dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, drip.ErrStoreClosed
	}

	out := make([]*dlq.Entry, 0, len(s.dlqOrder))
	for _, key := range s.dlqOrder {
		out = append(out, s.dlqEntries[key].Clone())
	}

	return out, nil
}

// RemoveDLQ deletes the entry with the given ID.
func (s *Store) RemoveDLQ(_ context.Context, entryID id.DLQID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return drip.ErrStoreClosed
	}
	key := entryID.String()
	if _, ok := s.dlqEntries[key]; !ok {
		return drip.ErrDLQNotFound
	}

	delete(s.dlqEntries, key)
	for i, k := range s.dlqOrder {
		if k == key {
			s.dlqOrder = append(s.dlqOrder[:i], s.dlqOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ClearDLQ removes all entries.
func (s *Store) ClearDLQ(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, drip.ErrStoreClosed
	}

	n := int64(len(s.dlqOrder))
	s.dlqEntries = make(map[string]*dlq.Entry)
	s.dlqOrder = nil
	return n, nil
}

// CountDLQ returns the number of stored entries.
func (s *Store) CountDLQ(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, drip.ErrStoreClosed
	}
	return len(s.dlqOrder), nil
}

func sortNewestFirst(jobs []*job.Job) {
	sort.SliceStable(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
}
