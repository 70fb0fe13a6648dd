package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobengine/job"
)

// Logging logs each run with its queue wait, fan-out size and outcome.
// Failures log at error level except StatusNoExecutor, which warns.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		start := time.Now()
		attrs := []slog.Attr{
			slog.String("job_id", env.ID.String()),
			slog.String("job_type", env.Name()),
			slog.String("queue", env.Queue),
			slog.Duration("queue_wait", env.Waited(start)),
		}
		if n, ok := Executors(ctx); ok {
			attrs = append(attrs, slog.Int("executors", n))
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "job started", attrs...)

		err := next(ctx)

		status := Status(err)
		attrs = append(attrs,
			slog.String("status", status),
			slog.Duration("elapsed", time.Since(start)),
		)
		switch status {
		case StatusOK:
			logger.LogAttrs(ctx, slog.LevelInfo, "job completed", attrs...)
		case StatusNoExecutor:
			logger.LogAttrs(ctx, slog.LevelWarn, "job has no executor", attrs...)
		default:
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelError, "job failed", attrs...)
		}
		return err
	}
}
