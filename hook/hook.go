// Package hook defines the lifecycle hook system for drip.
// Hooks are notified of job lifecycle events (submitted, completed,
// dead-lettered, etc.) and can react to them — audit trails, caller
// notifications, alerting.
//
// Each lifecycle event is a separate interface so hooks opt in only to
// the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/xraph/drip/dlq"
	"github.com/xraph/drip/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// JobSubmitted is called after a claim is accepted into the queue.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a job's submission to the executor begins.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a submission succeeds.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobRetrying is called when a submission fails but the job is
// scheduled for another attempt.
type JobRetrying interface {
	OnJobRetrying(ctx context.Context, j *job.Job, attempt int, nextRunAt time.Time) error
}

// JobFailed is called when a job fails terminally (non-retryable error,
// exhausted attempts, or cancellation).
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobDeadLettered is called when a failed job is captured in the
// dead-letter queue.
type JobDeadLettered interface {
	OnJobDeadLettered(ctx context.Context, j *job.Job, e *dlq.Entry) error
}

// Shutdown is called during graceful engine shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
