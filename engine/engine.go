// Package engine wires all drip subsystems together: the job record
// store, the pending queue, the slot manager, the scheduler, the retry
// controller, the dead-letter service, and the retention sweeper. It
// exposes the public submit/status/cancel API.
//
// This package exists to break the import cycle: the root drip package
// defines Entity and Config (imported by job, dlq, etc.) and so cannot
// import those packages back. The engine package sits above all
// subsystem packages and below the application layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/drip"
	"github.com/xraph/drip/backoff"
	"github.com/xraph/drip/dlq"
	"github.com/xraph/drip/eta"
	"github.com/xraph/drip/hook"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
	mw "github.com/xraph/drip/middleware"
	"github.com/xraph/drip/pending"
	"github.com/xraph/drip/retention"
	"github.com/xraph/drip/scheduler"
	"github.com/xraph/drip/slots"
)

// instrumentationName is the OTel scope used for engine-built middleware.
const instrumentationName = "github.com/xraph/drip"

// Engine is the faucet dispatch queue: it accepts claims, orders them,
// submits them to the executor under a concurrency ceiling, retries
// transient failures with backoff, and dead-letters the rest.
type Engine struct {
	cfg    drip.Config
	logger *slog.Logger

	storer   drip.Storer
	jobStore job.Store

	queue   *pending.Queue
	slots   *slots.Manager
	eta     *eta.Calculator
	hooks   *hook.Registry
	dlqSvc  *dlq.Service
	sched   *scheduler.Scheduler
	sweeper *retention.Sweeper

	bo       backoff.Strategy
	mws      []mw.Middleware
	hookList []hook.Hook

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	closed  atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default configuration.
func WithConfig(cfg drip.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithBackoff sets the retry backoff strategy.
// If not set, backoff.DefaultStrategy() (exponential with jitter) is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithHook registers a lifecycle hook with the engine.
func WithHook(h hook.Hook) Option {
	return func(e *Engine) { e.hookList = append(e.hookList, h) }
}

// WithMiddleware appends middleware to the engine's submission chain,
// after the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, the tracing middleware uses this provider instead of the
// global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, the metrics middleware uses this provider instead of the
// global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New creates an Engine over the given store and executor. The store
// must implement both job.Store and dlq.Store (the bundled in-memory
// store does).
func New(store drip.Storer, exec scheduler.Executor, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, drip.ErrNoStore
	}
	if exec == nil {
		return nil, drip.ErrNoExecutor
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("drip: store does not implement job.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("drip: store does not implement dlq.Store")
	}

	e := &Engine{
		cfg:      drip.DefaultConfig(),
		logger:   slog.Default(),
		storer:   store,
		jobStore: js,
	}

	for _, opt := range opts {
		opt(e)
	}
	e.cfg = e.cfg.WithDefaults()

	if e.bo == nil {
		e.bo = backoff.DefaultStrategy()
	}

	// Bound the dead-letter queue per config when the store supports
	// runtime capacity.
	if cs, ok := ds.(dlq.CapacitySetter); ok {
		cs.SetDLQCapacity(e.cfg.DLQCapacity)
	}

	e.queue = pending.New()
	e.slots = slots.NewManager(e.cfg.Concurrency,
		slots.WithRateLimit(e.cfg.DispatchRate, e.cfg.DispatchBurst))
	e.eta = eta.NewCalculator(e.cfg.ETAWindow, e.cfg.TickInterval)

	e.hooks = hook.NewRegistry(e.logger)
	for _, h := range e.hookList {
		e.hooks.Register(h)
	}

	// Replayed entries go through the same admission path as regular
	// submissions.
	e.dlqSvc = dlq.NewService(ds, e.enqueue, e.logger)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if e.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(e.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if e.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(e.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default stack: recover → tracing → metrics → logging → timeout.
	allMws := []mw.Middleware{
		mw.Recover(e.logger),
		tracingMw,
		metricsMw,
		mw.Logging(e.logger),
		mw.Timeout(e.cfg.SubmitTimeout),
	}
	allMws = append(allMws, e.mws...)

	e.sched = scheduler.New(e.cfg, js, e.queue, e.slots, exec,
		scheduler.WithBackoff(e.bo),
		scheduler.WithMiddleware(mw.Chain(allMws...)),
		scheduler.WithDLQ(e.dlqSvc),
		scheduler.WithHooks(e.hooks),
		scheduler.WithETA(e.eta),
		scheduler.WithLogger(e.logger),
	)

	e.sweeper = retention.NewSweeper(js, e.cfg.RetentionWindow, e.cfg.SweepInterval, e.logger)

	return e, nil
}

// Submit accepts a claim into the queue. The job starts pending and is
// dispatched on a later scheduler pass; Submit never blocks on the
// executor.
func (e *Engine) Submit(ctx context.Context, kind job.Kind, p job.Payload, opts ...job.Option) (*job.Job, error) {
	if e.closed.Load() {
		return nil, drip.ErrQueueClosed
	}
	if err := p.Validate(kind); err != nil {
		return nil, err
	}

	jobOpts := job.Options{MaxAttempts: e.cfg.MaxAttempts}
	for _, opt := range opts {
		opt(&jobOpts)
	}
	if jobOpts.MaxAttempts <= 0 {
		jobOpts.MaxAttempts = e.cfg.MaxAttempts
	}

	j, err := e.admit(ctx, kind, p, jobOpts.Priority, jobOpts.MaxAttempts)
	if err != nil {
		return nil, err
	}

	e.hooks.EmitJobSubmitted(ctx, j)
	e.logger.Info("claim submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("recipient", p.Recipient),
		slog.Int("priority", j.Priority),
	)

	return j, nil
}

// admit persists a new pending job and places it in the queue.
func (e *Engine) admit(ctx context.Context, kind job.Kind, p job.Payload, priority, maxAttempts int) (*job.Job, error) {
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now().UTC()
	}

	j := &job.Job{
		Entity:      drip.NewEntity(),
		ID:          id.NewJobID(),
		Kind:        kind,
		Payload:     p,
		State:       job.StatePending,
		Priority:    priority,
		MaxAttempts: maxAttempts,
	}

	if err := e.jobStore.InsertJob(ctx, j); err != nil {
		return nil, err
	}

	e.queue.Push(pending.Item{
		JobID:     j.ID.String(),
		Priority:  j.Priority,
		CreatedAt: j.CreatedAt,
	})

	return j.Clone(), nil
}

// enqueue is the admission path handed to the dead-letter service for
// replay. Replayed jobs get a fresh ID and a zeroed attempt count but
// keep the original claim and priority.
func (e *Engine) enqueue(ctx context.Context, kind job.Kind, p job.Payload, priority int) (*job.Job, error) {
	if e.closed.Load() {
		return nil, drip.ErrQueueClosed
	}
	return e.admit(ctx, kind, p, priority, e.cfg.MaxAttempts)
}

// Cancel withdraws a pending job. Only jobs still waiting in the queue
// can be cancelled: processing, retrying, and terminal jobs return
// drip.ErrNotCancellable. A cancelled job fails terminally with the
// reason "cancelled by caller" and is not dead-lettered.
func (e *Engine) Cancel(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := e.jobStore.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// Removing the queue item is the decision point: once it succeeds
	// the scheduler can no longer dispatch the job, so the state write
	// below cannot race an execution.
	if !e.queue.Remove(jobID.String()) {
		return nil, fmt.Errorf("%w: job %s is %s", drip.ErrNotCancellable, jobID, j.State)
	}

	j.State = job.StateFailed
	j.LastError = "cancelled by caller"
	if err := e.jobStore.UpdateJob(ctx, j); err != nil {
		return nil, err
	}

	e.hooks.EmitJobFailed(ctx, j, errors.New("cancelled by caller"))
	e.logger.Info("claim cancelled", slog.String("job_id", jobID.String()))

	return j, nil
}

// Start begins dispatching: the scheduler loop and the retention
// sweeper run until Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, runCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		err := e.sched.Run(runCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		e.sweeper.Run(runCtx)
		return nil
	})

	e.cancel = cancel
	e.group = g
	e.started = true

	e.logger.Info("engine started",
		slog.Int("concurrency", e.cfg.Concurrency),
		slog.Duration("tick", e.cfg.TickInterval),
	)

	return nil
}

// Stop shuts the engine down gracefully: no new submissions are
// accepted, the loops stop, and in-flight executions are given until
// the shutdown timeout (or ctx, whichever is sooner) to resolve
// naturally. Jobs still pending or retrying stay in the store.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}

	e.closed.Store(true)
	e.cancel()
	if err := e.group.Wait(); err != nil {
		e.logger.Error("engine loop error", slog.String("error", err.Error()))
	}

	done := make(chan struct{})
	go func() {
		e.sched.Wait()
		close(done)
	}()

	timeout := time.NewTimer(e.cfg.ShutdownTimeout)
	defer timeout.Stop()

	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("shutdown interrupted with executions in flight",
			slog.Int("inflight", e.slots.InFlight()))
	case <-timeout.C:
		e.logger.Warn("shutdown timeout with executions in flight",
			slog.Int("inflight", e.slots.InFlight()))
	}

	e.hooks.EmitShutdown(ctx)
	e.started = false

	e.logger.Info("engine stopped")
	return nil
}

// Drain closes the queue to new submissions and processes everything
// already accepted: pending, retrying, and in-flight jobs all resolve
// before Drain returns. The engine must be started.
func (e *Engine) Drain(ctx context.Context) error {
	e.closed.Store(true)

	ticker := time.NewTicker(e.cfg.RetryScanInterval)
	defer ticker.Stop()

	for {
		counts, err := e.jobStore.CountJobs(ctx)
		if err != nil {
			return err
		}
		if e.queue.Len() == 0 && e.slots.InFlight() == 0 &&
			counts.Pending == 0 && counts.Processing == 0 && counts.Retrying == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Hooks returns the lifecycle hook registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// DLQService returns the dead-letter service for replay and inspection.
func (e *Engine) DLQService() *dlq.Service { return e.dlqSvc }
