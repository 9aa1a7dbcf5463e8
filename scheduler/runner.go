package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/drip/classify"
	"github.com/xraph/drip/job"
)

// run executes one submission attempt and resolves the outcome. It
// owns the job's slot and releases it when the execution finishes.
//
// Executions run on a fresh background context rather than the engine
// context: an in-flight submission resolves naturally during shutdown
// instead of being abandoned mid-transaction. The configured submission
// deadline still applies through the middleware chain.
func (s *Scheduler) run(j *job.Job) {
	defer s.wg.Done()
	defer s.slots.Release(j.ID.String())

	ctx := context.Background()
	s.hooks.EmitJobStarted(ctx, j)

	var submissionID string
	start := time.Now()
	err := s.chain(ctx, j, func(ctx context.Context) error {
		res, execErr := s.exec.Submit(ctx, j.Kind, j.Payload)
		if execErr == nil {
			submissionID = res
		}
		return execErr
	})
	elapsed := time.Since(start)

	// One attempt consumed, success or failure.
	j.Attempts++

	if err == nil {
		s.complete(ctx, j, submissionID, elapsed)
		return
	}
	s.fail(ctx, j, err)
}

// complete transitions the job to completed and records the submission
// identifier.
func (s *Scheduler) complete(ctx context.Context, j *job.Job, submissionID string, elapsed time.Duration) {
	now := time.Now().UTC()
	j.State = job.StateCompleted
	j.Result = submissionID
	j.LastError = ""
	j.CompletedAt = &now

	if err := s.store.UpdateJob(ctx, j); err != nil {
		s.logger.Error("failed to persist completion",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	if s.eta != nil {
		s.eta.Observe(elapsed)
	}
	s.hooks.EmitJobCompleted(ctx, j, elapsed)

	s.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("submission_id", submissionID),
		slog.Int("attempts", j.Attempts),
		slog.Duration("elapsed", elapsed),
	)
}

// fail classifies the error and either schedules a retry or fails the
// job terminally and captures it in the dead-letter queue.
func (s *Scheduler) fail(ctx context.Context, j *job.Job, execErr error) {
	res := classify.Classify(execErr)
	j.LastError = execErr.Error()

	if res.Retryable && j.Attempts < j.MaxAttempts {
		delay := s.bo.Delay(j.Attempts)
		j.State = job.StateRetrying
		j.NextRunAt = time.Now().UTC().Add(delay)

		if err := s.store.UpdateJob(ctx, j); err != nil {
			s.logger.Error("failed to schedule retry",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			return
		}

		s.hooks.EmitJobRetrying(ctx, j, j.Attempts, j.NextRunAt)
		s.logger.Warn("job retrying",
			slog.String("job_id", j.ID.String()),
			slog.String("category", string(res.Category)),
			slog.Int("attempt", j.Attempts),
			slog.Int("max_attempts", j.MaxAttempts),
			slog.Duration("delay", delay),
		)
		return
	}

	j.State = job.StateFailed
	if err := s.store.UpdateJob(ctx, j); err != nil {
		s.logger.Error("failed to persist failure",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	s.hooks.EmitJobFailed(ctx, j, execErr)
	s.logger.Error("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("category", string(res.Category)),
		slog.Bool("retryable", res.Retryable),
		slog.Int("attempts", j.Attempts),
		slog.String("error", execErr.Error()),
	)

	if s.dlq != nil {
		entry, err := s.dlq.Push(ctx, j, res.Category)
		if err != nil {
			s.logger.Error("failed to dead-letter job",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
			return
		}
		s.hooks.EmitJobDeadLettered(ctx, j, entry)
	}
}
