package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/drip/job"
)

// Logging returns middleware that logs submission start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		logger.Info("submission started",
			slog.String("job_id", j.ID.String()),
			slog.String("kind", string(j.Kind)),
			slog.Int("attempt", j.Attempts+1),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("submission failed",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", string(j.Kind)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("submission succeeded",
				slog.String("job_id", j.ID.String()),
				slog.String("kind", string(j.Kind)),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
