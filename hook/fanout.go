package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/xraph/jobengine/registry"
)

// Error reports a hook that failed or could not be resolved. Executor
// errors passed back through a Job-Execute hook are returned as they are.
type Error struct {
	Kind     Kind
	HookType reflect.Type
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s hook %s: %v", e.Kind, e.HookType, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fanout resolves hook registrations and invokes them in registration
// order.
type Fanout struct {
	hooks  *Registry
	res    registry.Resolver
	logger *slog.Logger
}

// NewFanout creates a fan-out over hooks. Asset events resolve hooks from
// the resolver carried by their context (see registry.WithResolver), or
// from res outside a job.
func NewFanout(hooks *Registry, res registry.Resolver, logger *slog.Logger) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{hooks: hooks, res: res, logger: logger}
}

// Emit fires an asset event of kind for assetType. args follow the hook
// method's parameters after the context: (key, asset, found) for KindGet,
// (asset) for Add, Upsert and Update, (key, asset) for KindDelete. The
// first hook error stops the fan-out and is returned.
func (f *Fanout) Emit(ctx context.Context, kind Kind, assetType reflect.Type, args ...any) error {
	hs := f.hooks.Lookup(kind, assetType)
	if len(hs) == 0 {
		return nil
	}
	res, ok := registry.ResolverFrom(ctx)
	if !ok {
		res = f.res
	}
	for _, h := range hs {
		hk, err := h.Ref.Resolve(res)
		if err != nil {
			return &Error{Kind: kind, HookType: h.HookType, Err: fmt.Errorf("resolve: %w", err)}
		}
		if err := call(ctx, hk, kind, args...); err != nil {
			f.logHookError(kind, h.HookType, assetType, err)
			return &Error{Kind: kind, HookType: h.HookType, Err: err}
		}
	}
	return nil
}

// Wrap runs next inside every Job-Execute hook for jobType, first
// registered outermost. Hooks are resolved from res.
func (f *Fanout) Wrap(ctx context.Context, res registry.Resolver, jobType reflect.Type, j any, next Next) error {
	hs := f.hooks.Lookup(KindJobExecute, jobType)
	if len(hs) == 0 {
		return next(ctx)
	}

	// Resolve up front so a failing registration aborts before anything runs.
	instances := make([]any, len(hs))
	for i, h := range hs {
		hk, err := h.Ref.Resolve(res)
		if err != nil {
			return &Error{Kind: KindJobExecute, HookType: h.HookType, Err: fmt.Errorf("resolve: %w", err)}
		}
		instances[i] = hk
	}

	run := next
	for i := len(hs) - 1; i >= 0; i-- {
		inner, hk, ht := run, instances[i], hs[i].HookType
		run = func(ctx context.Context) error {
			var innerErr error
			err := call(ctx, hk, KindJobExecute, j, Next(func(ctx context.Context) error {
				innerErr = inner(ctx)
				return innerErr
			}))
			if err == nil || (innerErr != nil && errors.Is(err, innerErr)) {
				return err
			}
			f.logHookError(KindJobExecute, ht, jobType, err)
			return &Error{Kind: KindJobExecute, HookType: ht, Err: err}
		}
	}
	return run(ctx)
}

// call invokes the kind's hook method on hk.
func call(ctx context.Context, hk any, kind Kind, args ...any) error {
	m := reflect.ValueOf(hk).MethodByName(kind.Method())
	if !m.IsValid() {
		return fmt.Errorf("hook: %T has no %s method", hk, kind.Method())
	}
	mt := m.Type()
	if mt.NumIn() != len(args)+1 {
		return fmt.Errorf("hook: %T.%s takes %d arguments, got %d", hk, kind.Method(), mt.NumIn(), len(args)+1)
	}
	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, reflect.ValueOf(ctx))
	for i, a := range args {
		pt := mt.In(i + 1)
		if a == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v := reflect.ValueOf(a)
		if !v.Type().AssignableTo(pt) {
			return fmt.Errorf("hook: %T.%s parameter %d: %s is not assignable to %s", hk, kind.Method(), i+1, v.Type(), pt)
		}
		in = append(in, v)
	}
	out := m.Call(in)
	if err, _ := out[0].Interface().(error); err != nil {
		return err
	}
	return nil
}

// logHookError logs a hook failure before it is returned to the caller.
func (f *Fanout) logHookError(kind Kind, hookType, target reflect.Type, err error) {
	f.logger.Warn("event hook error",
		slog.String("kind", kind.String()),
		slog.String("hook", hookType.String()),
		slog.String("type", target.String()),
		slog.String("error", err.Error()),
	)
}
