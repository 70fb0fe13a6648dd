package middleware

import (
	"context"
	"errors"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/hook"
)

// Job run outcomes reported in logs, span attributes and metric labels.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusNoExecutor = "no_executor"
	StatusHookError  = "hook_error"
	StatusPanic      = "panic"
	StatusTimeout    = "timeout"
)

// Status classifies the error returned by a job run.
func Status(err error) string {
	var (
		perr *PanicError
		herr *hook.Error
	)
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, jobengine.ErrNoExecutor):
		return StatusNoExecutor
	case errors.As(err, &perr):
		return StatusPanic
	case errors.As(err, &herr):
		return StatusHookError
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}
