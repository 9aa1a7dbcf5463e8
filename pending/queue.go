// Package pending holds the ordered working set of jobs that have not
// yet been dispatched. Ordering is priority ascending (lower value
// served first), then creation time ascending — strict FIFO within a
// priority band, never arbitrary.
package pending

import (
	"sort"
	"sync"
	"time"
)

// Item is a pending queue entry. The queue tracks only what ordering
// needs; the job record store remains the source of truth for status.
type Item struct {
	JobID     string
	Priority  int
	CreatedAt time.Time
}

// Queue is a mutex-guarded pending set. Re-sorting is lazy: mutations
// mark the queue dirty and the sort happens on the next ordered read
// (a dispatch pass or a rank query), which bounds cost when many
// submissions land between ticks.
type Queue struct {
	mu    sync.Mutex
	items []Item
	rank  map[string]int // job id → 1-based rank, rebuilt with the sort
	dirty bool
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{rank: make(map[string]int)}
}

// Push appends a job to the pending set.
func (q *Queue) Push(it Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, it)
	q.dirty = true
}

// PopN removes and returns up to n jobs in dispatch order.
func (q *Queue) PopN(n int) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || len(q.items) == 0 {
		return nil
	}

	q.ensureSorted()

	if n > len(q.items) {
		n = len(q.items)
	}
	popped := make([]Item, n)
	copy(popped, q.items[:n])
	q.items = q.items[n:]
	q.rebuildRanks()

	return popped
}

// Remove deletes a job from the pending set. Returns false if the job
// is not pending (already dispatched or never queued).
func (q *Queue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.items {
		if it.JobID == jobID {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.dirty = true
			delete(q.rank, jobID)
			return true
		}
	}
	return false
}

// Rank returns the job's 1-based position in dispatch order, or false
// if the job is not pending.
func (q *Queue) Rank(jobID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureSorted()
	r, ok := q.rank[jobID]
	return r, ok
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending set in dispatch order.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ensureSorted()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// ensureSorted sorts the items and rebuilds ranks if a mutation has
// occurred since the last ordered read. Callers must hold q.mu.
func (q *Queue) ensureSorted() {
	if !q.dirty {
		return
	}

	sort.SliceStable(q.items, func(i, k int) bool {
		if q.items[i].Priority != q.items[k].Priority {
			return q.items[i].Priority < q.items[k].Priority
		}
		return q.items[i].CreatedAt.Before(q.items[k].CreatedAt)
	})
	q.rebuildRanks()
	q.dirty = false
}

// rebuildRanks recomputes the 1-based rank of every pending job.
// Callers must hold q.mu with items sorted.
func (q *Queue) rebuildRanks() {
	clear(q.rank)
	for i, it := range q.items {
		q.rank[it.JobID] = i + 1
	}
}
