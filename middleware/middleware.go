package middleware

import (
	"context"

	"github.com/xraph/jobengine/job"
)

// Handler runs every executor bound to the job.
type Handler func(ctx context.Context) error

// Middleware wraps the executor fan-out of one envelope. It must call next
// to run the executors unless it rejects the job.
type Middleware func(ctx context.Context, env *job.Envelope, next Handler) error

// Chain composes mws so that the first one is the outermost wrapper:
//
//	Chain(a, b)(ctx, env, h) == a(ctx, env, b(ctx, env, h))
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw, inner := mws[i], h
			h = func(ctx context.Context) error {
				return mw(ctx, env, inner)
			}
		}
		return h(ctx)
	}
}

type executorsKey struct{}

// WithExecutors records on ctx how many executors the job fans out to.
// The worker sets it before the chain runs.
func WithExecutors(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, executorsKey{}, n)
}

// Executors returns the fan-out size recorded by WithExecutors.
func Executors(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(executorsKey{}).(int)
	return n, ok
}
