package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/jobengine/job"
)

// PanicError is returned by Recover when an executor, hook or inner
// middleware panicked.
type PanicError struct {
	JobType string
	Value   any
	Stack   []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in job %s: %v", e.JobType, e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover turns a panic below it into a *PanicError.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			perr := &PanicError{JobType: env.Name(), Value: r, Stack: debug.Stack()}
			logger.ErrorContext(ctx, "job panicked",
				slog.String("job_id", env.ID.String()),
				slog.String("job_type", perr.JobType),
				slog.Any("panic", r),
				slog.String("stack", string(perr.Stack)),
			)
			err = perr
		}()
		return next(ctx)
	}
}
