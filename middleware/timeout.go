package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobengine/job"
)

// Deadliner is implemented by jobs that carry their own execution limit.
type Deadliner interface {
	Timeout() time.Duration
}

// Timeout returns middleware that enforces an execution deadline. Jobs
// implementing Deadliner with a positive Timeout use their own limit;
// other jobs use d. A zero limit leaves the context untouched.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		limit := d
		if dl, ok := env.Job.(Deadliner); ok && dl.Timeout() > 0 {
			limit = dl.Timeout()
		}
		if limit > 0 {
			logger.Debug("job timeout set",
				slog.String("job_id", env.ID.String()),
				slog.Duration("timeout", limit),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}
		return next(ctx)
	}
}
