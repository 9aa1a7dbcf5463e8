package scheduler

import (
	"context"

	"github.com/xraph/drip/job"
)

// Executor submits one claim to the blockchain backend. Submit returns
// a submission identifier (a transaction hash or equivalent) on
// success. The scheduler owns retries; an executor reports each attempt
// honestly and must not retry internally.
//
// Submit must respect ctx cancellation: the scheduler enforces the
// configured submission deadline through the context.
type Executor interface {
	Submit(ctx context.Context, kind job.Kind, p job.Payload) (string, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, kind job.Kind, p job.Payload) (string, error)

// Submit calls f.
func (f ExecutorFunc) Submit(ctx context.Context, kind job.Kind, p job.Payload) (string, error) {
	return f(ctx, kind, p)
}
