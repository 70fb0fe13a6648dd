// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps the executor fan-out for one job envelope.
// Middleware are composed into a chain using [Chain] and applied before
// each job executes. They are applied right-to-left: the first middleware
// in the slice is the outermost wrapper.
//
//	// logging → recover → executors
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs queue wait, executor count, duration and [Status]
//   - [Recover]: turns panics into [*PanicError]
//   - [Timeout]: cancels the job context after a deadline
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records outcome counts, run time, queue wait and fan-out
//
// # Outcomes
//
// [Status] maps the error a run returned to one of [StatusOK],
// [StatusError], [StatusNoExecutor], [StatusHookError], [StatusPanic] or
// [StatusTimeout]. The worker runs jobs without executors through the
// chain too, and records the executor count on the context
// ([WithExecutors], [Executors]) before the chain starts.
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, env *job.Envelope, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware
