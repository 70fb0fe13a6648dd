// Package worker provides job execution: an Executor that resolves the
// executors registered for a job and runs them through middleware and
// Job-Execute hooks, and a Pool that consumes queues concurrently.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/hook"
	"github.com/xraph/jobengine/job"
	"github.com/xraph/jobengine/middleware"
	"github.com/xraph/jobengine/queue"
	"github.com/xraph/jobengine/registry"
)

// Executor runs one job through middleware, Job-Execute hooks and every
// matching executor.
type Executor struct {
	services *registry.Registry
	jobs     *job.Registry
	hooks    *hook.Fanout
	mw       middleware.Middleware
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	services *registry.Registry,
	jobs *job.Registry,
	hooks *hook.Fanout,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		services: services,
		jobs:     jobs,
		hooks:    hooks,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// Execute runs env in a fresh registry scope that is closed afterwards.
func (e *Executor) Execute(ctx context.Context, env *job.Envelope) error {
	scope := e.services.NewScope()
	defer func() {
		if err := scope.Close(); err != nil {
			e.logger.Warn("failed to close job scope",
				slog.String("job_id", env.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
	return e.ExecuteIn(ctx, scope, env)
}

// ExecuteIn runs env resolving executors and hooks from res; res is also
// attached to the job context so asset events inside the job resolve hooks
// from it. Executors run in registration order and the first error stops
// the fan-out. It fails with jobengine.ErrNoExecutor when nothing is
// registered for the job type; that failure passes through the middleware
// like any other.
func (e *Executor) ExecuteIn(ctx context.Context, res registry.Resolver, env *job.Envelope) error {
	handlers := e.jobs.Lookup(env.Type)
	ctx = registry.WithResolver(ctx, res)
	ctx = middleware.WithExecutors(ctx, len(handlers))

	// The terminal handler fans out to every executor.
	terminal := func(ctx context.Context) error {
		if len(handlers) == 0 {
			return fmt.Errorf("job %s: %w", env.Name(), jobengine.ErrNoExecutor)
		}
		for _, h := range handlers {
			run := func(ctx context.Context) error {
				return h.Invoke(ctx, res, env.Job)
			}
			if err := e.hooks.Wrap(ctx, res, env.Type, env.Job, run); err != nil {
				return fmt.Errorf("executor %s: %w", h.ExecutorType, err)
			}
		}
		return nil
	}

	return e.mw(ctx, env, terminal)
}

// Drain executes queued jobs until q is empty. It returns the number of
// jobs taken from the queue and the first error; the failing job is
// consumed and later jobs stay queued.
func (e *Executor) Drain(ctx context.Context, q queue.Queue) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		env, ok := q.Dequeue()
		if !ok {
			return n, nil
		}
		n++
		if err := e.Execute(ctx, env); err != nil {
			e.logger.Error("job execution failed",
				slog.String("job_id", env.ID.String()),
				slog.String("job_type", env.Name()),
				slog.String("queue", q.Name()),
				slog.String("error", err.Error()),
			)
			return n, err
		}
	}
}

// isShutdown reports whether err ends a consumer loop cleanly.
func isShutdown(err error) bool {
	return errors.Is(err, jobengine.ErrQueueClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
