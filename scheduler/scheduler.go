// Package scheduler drives dispatch: a ticker loop pops pending jobs
// into free submission slots, a retry loop moves retrying jobs back to
// pending once their backoff delay elapses, and a runner resolves each
// execution outcome (complete, retry, or dead-letter).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/backoff"
	"github.com/xraph/drip/dlq"
	"github.com/xraph/drip/eta"
	"github.com/xraph/drip/hook"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
	"github.com/xraph/drip/middleware"
	"github.com/xraph/drip/pending"
	"github.com/xraph/drip/slots"
)

// Scheduler coordinates the pending queue, the slot manager, and the
// executor. Dispatch passes never block on executions: each acquired
// job runs in its own goroutine and outcomes resolve independently.
type Scheduler struct {
	cfg    drip.Config
	store  job.Store
	queue  *pending.Queue
	slots  *slots.Manager
	exec   Executor
	chain  middleware.Middleware
	bo     backoff.Strategy
	dlq    *dlq.Service
	hooks  *hook.Registry
	eta    *eta.Calculator
	logger *slog.Logger

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBackoff overrides the retry delay strategy.
func WithBackoff(bo backoff.Strategy) Option {
	return func(s *Scheduler) { s.bo = bo }
}

// WithMiddleware sets the middleware chain wrapping each submission.
func WithMiddleware(chain middleware.Middleware) Option {
	return func(s *Scheduler) { s.chain = chain }
}

// WithDLQ sets the dead-letter service receiving exhausted jobs.
func WithDLQ(svc *dlq.Service) Option {
	return func(s *Scheduler) { s.dlq = svc }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(reg *hook.Registry) Option {
	return func(s *Scheduler) { s.hooks = reg }
}

// WithETA sets the calculator fed by completed submissions.
func WithETA(calc *eta.Calculator) Option {
	return func(s *Scheduler) { s.eta = calc }
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler over the given store, queue, slot manager,
// and executor.
func New(cfg drip.Config, store job.Store, q *pending.Queue, sl *slots.Manager, exec Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:    cfg,
		store:  store,
		queue:  q,
		slots:  sl,
		exec:   exec,
		chain:  middleware.Chain(),
		bo:     backoff.DefaultStrategy(),
		hooks:  hook.NewRegistry(slog.Default()),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "scheduler"))

	return s
}

// Run drives the dispatch and retry loops until ctx is cancelled.
// It does not wait for in-flight executions; use Wait for that.
func (s *Scheduler) Run(ctx context.Context) error {
	dispatch := time.NewTicker(s.cfg.TickInterval)
	defer dispatch.Stop()

	retry := time.NewTicker(s.cfg.RetryScanInterval)
	defer retry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-dispatch.C:
			s.Tick(ctx)
		case <-retry.C:
			s.reenqueueDueRetries(ctx)
		}
	}
}

// Wait blocks until all in-flight executions have resolved.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Tick performs one dispatch pass: pending jobs are popped in queue
// order into free slots and launched. The pass itself is cheap; the
// executions run concurrently in their own goroutines.
func (s *Scheduler) Tick(ctx context.Context) {
	free := s.slots.Free()
	if free <= 0 {
		return
	}

	items := s.queue.PopN(free)
	for i, it := range items {
		if !s.slots.Acquire(it.JobID) {
			// Rate limiter denied or a slot vanished under us. Put
			// the remainder back in order; they stay first in line
			// for the next pass.
			for _, back := range items[i:] {
				s.queue.Push(back)
			}
			return
		}

		s.launch(ctx, it)
	}
}

// launch loads the job record, transitions it to processing, and
// starts the execution goroutine. The slot is released on any early
// exit.
func (s *Scheduler) launch(ctx context.Context, it pending.Item) {
	jobID, err := id.ParseJobID(it.JobID)
	if err != nil {
		s.slots.Release(it.JobID)
		s.logger.Error("queued item has invalid id", slog.String("job_id", it.JobID))
		return
	}

	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		s.slots.Release(it.JobID)
		s.logger.Warn("queued job missing from store",
			slog.String("job_id", it.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	// A cancel can race the pop; only dispatchable jobs proceed. A
	// retrying job whose delay has elapsed counts: the retry scan
	// queues the item before the state write lands, so the record can
	// still read retrying here.
	if !dispatchable(j) {
		s.slots.Release(it.JobID)
		return
	}

	now := time.Now().UTC()
	j.State = job.StateProcessing
	j.ProcessedAt = &now
	j.NextRunAt = time.Time{}
	if err := s.store.UpdateJob(ctx, j); err != nil {
		s.slots.Release(it.JobID)
		s.logger.Error("failed to mark job processing",
			slog.String("job_id", it.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.wg.Add(1)
	go s.run(j)
}

// reenqueueDueRetries moves retrying jobs whose backoff delay has
// elapsed back into the pending queue. Re-enqueued jobs keep their
// original priority and creation time, so they rejoin their band in
// FIFO order.
//
// The queue push happens before the state write: once the item is
// queued, a caller who observes the job as pending can always cancel
// it (queue removal succeeds), and launch dispatches the item even if
// it pops before the write lands. A duplicate push on the next scan is
// harmless — launch drops items whose record is no longer
// dispatchable.
func (s *Scheduler) reenqueueDueRetries(ctx context.Context) {
	due, err := s.store.DueRetries(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("retry scan failed", slog.String("error", err.Error()))
		return
	}

	for _, j := range due {
		s.queue.Push(pending.Item{
			JobID:     j.ID.String(),
			Priority:  j.Priority,
			CreatedAt: j.CreatedAt,
		})

		j.State = job.StatePending
		j.NextRunAt = time.Time{}
		if err := s.store.UpdateJob(ctx, j); err != nil {
			s.logger.Error("failed to re-enqueue retry",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// dispatchable reports whether a popped queue item's record may start
// executing: pending, or retrying with an elapsed backoff delay.
func dispatchable(j *job.Job) bool {
	if j.State == job.StatePending {
		return true
	}
	return j.State == job.StateRetrying && !j.NextRunAt.After(time.Now().UTC())
}
