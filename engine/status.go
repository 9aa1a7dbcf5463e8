package engine

import (
	"context"
	"time"

	"github.com/xraph/drip/dlq"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
)

// Status is a point-in-time view of one job. Position and
// EstimatedWait are populated only while the job is pending; both are
// informational and may be stale by the time the caller reads them.
type Status struct {
	Job *job.Job `json:"job"`

	// Position is the job's 1-based rank in dispatch order, or zero
	// when the job is not pending.
	Position int `json:"position,omitempty"`

	// EstimatedWait approximates how long until dispatch begins, based
	// on recent submission durations. Zero when the job is not pending.
	EstimatedWait time.Duration `json:"estimated_wait,omitempty"`
}

// Stats is an aggregate snapshot of the queue.
type Stats struct {
	Jobs       job.Counts    `json:"jobs"`
	QueueDepth int           `json:"queue_depth"`
	InFlight   int           `json:"in_flight"`
	DeadLetter int           `json:"dead_letter"`
	AvgProcess time.Duration `json:"avg_process"`
}

// Status returns the current state of one job, with queue position and
// estimated wait while it is pending.
func (e *Engine) Status(ctx context.Context, jobID id.JobID) (*Status, error) {
	j, err := e.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	st := &Status{Job: j}
	if j.State == job.StatePending {
		if rank, ok := e.queue.Rank(jobID.String()); ok {
			st.Position = rank
			st.EstimatedWait = e.eta.EstimateWait(rank)
		}
	}

	return st, nil
}

// Ping reports whether the underlying store is usable.
func (e *Engine) Ping(ctx context.Context) error {
	return e.storer.Ping(ctx)
}

// Get returns the raw job record.
func (e *Engine) Get(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.jobStore.GetJob(ctx, jobID)
}

// ListByRecipient returns all jobs paying out to the given address,
// newest first.
func (e *Engine) ListByRecipient(ctx context.Context, recipient string) ([]*job.Job, error) {
	return e.jobStore.ListByRecipient(ctx, recipient)
}

// ListRecent returns up to limit jobs, newest first.
func (e *Engine) ListRecent(ctx context.Context, limit int) ([]*job.Job, error) {
	return e.jobStore.ListRecent(ctx, limit)
}

// DeadLetters returns all dead-letter entries, oldest first.
func (e *Engine) DeadLetters(ctx context.Context) ([]*dlq.Entry, error) {
	return e.dlqSvc.List(ctx)
}

// ReplayDeadLetter re-submits the dead-lettered claim for the given
// failed job as a fresh job and consumes the entry. The key is the
// failed job's id, the handle callers already hold; returns
// drip.ErrDLQNotFound when that job was never dead-lettered.
func (e *Engine) ReplayDeadLetter(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.dlqSvc.ReplayByJobID(ctx, jobID)
}

// ClearDeadLetters discards all dead-letter entries and returns how
// many were removed.
func (e *Engine) ClearDeadLetters(ctx context.Context) (int64, error) {
	return e.dlqSvc.Clear(ctx)
}

// Stats returns an aggregate snapshot of the queue.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	counts, err := e.jobStore.CountJobs(ctx)
	if err != nil {
		return nil, err
	}

	dlqCount, err := e.dlqSvc.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Jobs:       counts,
		QueueDepth: e.queue.Len(),
		InFlight:   e.slots.InFlight(),
		DeadLetter: dlqCount,
		AvgProcess: e.eta.AverageProcessing(),
	}, nil
}
