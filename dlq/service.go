package dlq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/drip"
	"github.com/xraph/drip/classify"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
)

// EnqueueFunc creates a fresh pending job for a replayed entry. The
// engine supplies this so replay goes through the same admission path
// as a regular submission.
type EnqueueFunc func(ctx context.Context, kind job.Kind, p job.Payload, priority int) (*job.Job, error)

// Service manages the dead-letter queue: capturing exhausted jobs,
// inspecting entries, and replaying them as fresh jobs.
type Service struct {
	store   Store
	enqueue EnqueueFunc
	logger  *slog.Logger
}

// NewService creates a dead-letter service backed by the given store.
func NewService(store Store, enqueue EnqueueFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:   store,
		enqueue: enqueue,
		logger:  logger.With(slog.String("component", "dlq")),
	}
}

// Push captures a terminally failed job as a dead-letter entry.
func (s *Service) Push(ctx context.Context, j *job.Job, category classify.Category) (*Entry, error) {
	e := NewEntry(j, category)

	if err := s.store.PushDLQ(ctx, e); err != nil {
		return nil, fmt.Errorf("push dead-letter entry: %w", err)
	}

	s.logger.Info("job dead-lettered",
		slog.String("entry_id", e.ID.String()),
		slog.String("job_id", j.ID.String()),
		slog.String("category", string(category)),
		slog.Int("attempts", j.Attempts),
	)

	return e, nil
}

// Replay re-submits the entry's claim as a brand new job: a new ID,
// zeroed attempt count, and the original kind, payload, and priority.
// On success the entry is removed from the dead-letter queue.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Job, error) {
	e, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	j, err := s.enqueue(ctx, e.Kind, e.Payload, e.Priority)
	if err != nil {
		return nil, fmt.Errorf("replay entry %s: %w", entryID.String(), err)
	}

	if err := s.store.RemoveDLQ(ctx, entryID); err != nil {
		// The new job is already enqueued; log and continue rather
		// than leaving the caller with a failed replay.
		s.logger.Warn("replayed entry could not be removed",
			slog.String("entry_id", entryID.String()),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("entry replayed",
		slog.String("entry_id", entryID.String()),
		slog.String("old_job_id", e.JobID.String()),
		slog.String("new_job_id", j.ID.String()),
	)

	return j, nil
}

// ReplayByJobID replays the entry captured for the given failed job.
// The job id is the handle callers already hold from submission and
// status queries; the entry's own id stays an internal detail. Returns
// drip.ErrDLQNotFound when no entry snapshots that job.
func (s *Service) ReplayByJobID(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	entries, err := s.store.ListDLQ(ctx)
	if err != nil {
		return nil, err
	}

	// A job dead-letters at most once (replay mints a fresh id), so
	// the first match is the only match.
	for _, e := range entries {
		if e.JobID == jobID {
			return s.Replay(ctx, e.ID)
		}
	}

	return nil, fmt.Errorf("%w: no entry for job %s", drip.ErrDLQNotFound, jobID.String())
}

// Get returns one entry by ID.
func (s *Service) Get(ctx context.Context, entryID id.DLQID) (*Entry, error) {
	return s.store.GetDLQ(ctx, entryID)
}

// List returns all entries, oldest first.
func (s *Service) List(ctx context.Context) ([]*Entry, error) {
	return s.store.ListDLQ(ctx)
}

// Clear removes all entries and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.ClearDLQ(ctx)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("dead-letter queue cleared", slog.Int64("removed", n))
	}

	return n, nil
}

// Count returns the number of stored entries.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.CountDLQ(ctx)
}
