package middleware

import (
	"context"
	"time"

	"github.com/xraph/drip/job"
)

// Timeout returns middleware that races the executor call against the
// submission deadline. When the deadline is exceeded the context is
// cancelled and the submission returns context.DeadlineExceeded, which
// the classifier treats as a retryable network error.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
