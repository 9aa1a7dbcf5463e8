package dlq

import (
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/classify"
	"github.com/xraph/drip/id"
	"github.com/xraph/drip/job"
)

// Entry is a snapshot of a job that exhausted its retries or failed
// with a non-retryable error. The entry carries everything needed to
// replay the claim as a fresh job.
type Entry struct {
	drip.Entity

	ID          id.DLQID          `json:"id"`
	JobID       id.JobID          `json:"job_id"`
	Kind        job.Kind          `json:"kind"`
	Payload     job.Payload       `json:"payload"`
	Priority    int               `json:"priority"`
	Error       string            `json:"error"`
	Category    classify.Category `json:"category"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	FailedAt    time.Time         `json:"failed_at"`
}

// NewEntry builds a dead-letter entry from a failed job.
func NewEntry(j *job.Job, category classify.Category) *Entry {
	return &Entry{
		Entity:      drip.NewEntity(),
		ID:          id.NewDLQID(),
		JobID:       j.ID,
		Kind:        j.Kind,
		Payload:     j.Payload,
		Priority:    j.Priority,
		Error:       j.LastError,
		Category:    category,
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		FailedAt:    time.Now().UTC(),
	}
}

// Clone returns a shallow copy of the entry.
func (e *Entry) Clone() *Entry {
	cp := *e
	return &cp
}
