package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/drip/job"
)

// Recover returns middleware that recovers from panics in the executor.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("executor panicked",
					slog.String("job_id", j.ID.String()),
					slog.String("kind", string(j.Kind)),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in job %s: %v", j.ID.String(), r)
			}
		}()
		return next(ctx)
	}
}
