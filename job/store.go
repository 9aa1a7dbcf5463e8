package job

import (
	"context"
	"time"

	"github.com/xraph/drip/id"
)

// Counts holds per-state job counts for stats reporting.
type Counts struct {
	Total      int64
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	Retrying   int64
}

// Store defines the persistence contract for job records. It is the
// single source of truth for job status: all status mutation is
// serialized through the implementation, and reads return copies so
// callers never race with the scheduler.
type Store interface {
	// InsertJob persists a new job. Fails with drip.ErrJobAlreadyExists
	// if the id is already present.
	InsertJob(ctx context.Context, j *Job) error

	// GetJob retrieves a copy of a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job and advances its
	// UpdatedAt timestamp.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListByRecipient returns all jobs whose payload recipient matches
	// the given address, ordered by creation descending.
	ListByRecipient(ctx context.Context, recipient string) ([]*Job, error)

	// ListRecent returns up to limit jobs ordered by creation descending.
	ListRecent(ctx context.Context, limit int) ([]*Job, error)

	// DueRetries returns retrying jobs whose NextRunAt is at or before
	// the given instant.
	DueRetries(ctx context.Context, now time.Time) ([]*Job, error)

	// PurgeTerminal deletes terminal jobs whose UpdatedAt is before the
	// cutoff. Returns the number of jobs removed.
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error)

	// CountJobs returns per-state job counts.
	CountJobs(ctx context.Context) (Counts, error)
}
