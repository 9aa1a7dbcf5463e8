package job

import (
	"fmt"
	"time"

	"github.com/xraph/drip"
	"github.com/xraph/drip/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StatePending means the job is waiting in the pending queue.
	StatePending State = "pending"
	// StateProcessing means the job is being submitted to the executor.
	StateProcessing State = "processing"
	// StateCompleted means the submission succeeded.
	StateCompleted State = "completed"
	// StateFailed means the job failed and will not be retried.
	StateFailed State = "failed"
	// StateRetrying means the job failed but is waiting out a backoff
	// delay before re-entering the pending queue.
	StateRetrying State = "retrying"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Kind identifies the type of claim a job carries. It determines which
// payload fields are required.
type Kind string

const (
	// KindNativeClaim dispenses the chain's native asset.
	KindNativeClaim Kind = "claim.native"
	// KindTokenClaim dispenses a token identified by Payload.Asset.
	KindTokenClaim Kind = "claim.token"
)

// Valid reports whether the kind is one of the known claim types.
func (k Kind) Valid() bool {
	return k == KindNativeClaim || k == KindTokenClaim
}

// Payload is the immutable request data attached to a job at submission
// time. It is never mutated after the job is created.
type Payload struct {
	// Recipient is the address the claim pays out to. Required.
	Recipient string `json:"recipient"`

	// Asset identifies the token for token claims. Required for
	// KindTokenClaim, must be empty for KindNativeClaim.
	Asset string `json:"asset,omitempty"`

	// Amount is the requested amount as a decimal string. Empty means
	// the faucet's configured default.
	Amount string `json:"amount,omitempty"`

	// SubmittedAt is when the caller submitted the claim.
	SubmittedAt time.Time `json:"submitted_at"`

	// Meta carries optional caller metadata (session id, client tag).
	Meta map[string]string `json:"meta,omitempty"`
}

// Validate checks that the payload shape matches the kind. A violation
// wraps drip.ErrInvalidPayload so callers can match with errors.Is.
func (p Payload) Validate(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", drip.ErrUnknownKind, kind)
	}
	if p.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", drip.ErrInvalidPayload)
	}

	switch kind {
	case KindTokenClaim:
		if p.Asset == "" {
			return fmt.Errorf("%w: asset is required for %s", drip.ErrInvalidPayload, kind)
		}
	case KindNativeClaim:
		if p.Asset != "" {
			return fmt.Errorf("%w: asset must be empty for %s", drip.ErrInvalidPayload, kind)
		}
	}

	return nil
}

// Job represents one queued claim request.
type Job struct {
	drip.Entity

	ID          id.JobID   `json:"id"`
	Kind        Kind       `json:"kind"`
	Payload     Payload    `json:"payload"`
	State       State      `json:"state"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	Result      string     `json:"result,omitempty"`     // submission id on success
	LastError   string     `json:"last_error,omitempty"` // classified error on failure
	NextRunAt   time.Time  `json:"next_run_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a shallow copy of the job. Payload.Meta is shared; it
// is treated as immutable after submission.
func (j *Job) Clone() *Job {
	cp := *j
	return &cp
}
