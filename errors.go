package drip

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("drip: no store configured")
	ErrNoExecutor  = errors.New("drip: no executor configured")
	ErrStoreClosed = errors.New("drip: store closed")

	// Not found errors.
	ErrJobNotFound = errors.New("drip: job not found")
	ErrDLQNotFound = errors.New("drip: dead-letter entry not found")

	// Submission errors.
	ErrInvalidPayload = errors.New("drip: invalid payload")
	ErrUnknownKind    = errors.New("drip: unknown job kind")
	ErrQueueClosed    = errors.New("drip: queue closed to new submissions")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("drip: job already exists")

	// State errors.
	ErrInvalidState   = errors.New("drip: invalid state transition")
	ErrNotCancellable = errors.New("drip: job not cancellable")
)
