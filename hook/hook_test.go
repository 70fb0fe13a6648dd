package hook_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/hook"
	"github.com/xraph/jobengine/registry"
)

type shape struct{ Name string }

func (s *shape) String() string { return s.Name }

func (s *shape) AssetKey() string { return s.Name }

type render struct{ ID int }

// addDeleteHook implements OnAdd and OnDelete only.
type addDeleteHook struct{ calls []string }

func (h *addDeleteHook) OnAdd(_ context.Context, s *shape) error {
	h.calls = append(h.calls, "add:"+s.Name)
	return nil
}

func (h *addDeleteHook) OnDelete(_ context.Context, key string, _ *shape) error {
	h.calls = append(h.calls, "delete:"+key)
	return nil
}

// stringerGetHook is open over fmt.Stringer.
type stringerGetHook struct{ seen []string }

func (h *stringerGetHook) OnGet(_ context.Context, _ any, a fmt.Stringer, found bool) error {
	if found {
		h.seen = append(h.seen, a.String())
	} else {
		h.seen = append(h.seen, "miss")
	}
	return nil
}

type tracer struct {
	name  string
	trace *[]string
}

func (t *tracer) OnJobExecute(ctx context.Context, _ render, next hook.Next) error {
	*t.trace = append(*t.trace, t.name+">")
	err := next(ctx)
	*t.trace = append(*t.trace, "<"+t.name)
	return err
}

type failingAdd struct{ err error }

func (f failingAdd) OnAdd(context.Context, *shape) error { return f.err }

// intKeyGet declares an int key for string-keyed shapes.
type intKeyGet struct{}

func (intKeyGet) OnGet(context.Context, int, *shape, bool) error { return nil }

// intKeyDelete declares an int key for string-keyed shapes.
type intKeyDelete struct{}

func (intKeyDelete) OnDelete(context.Context, int, *shape) error { return nil }

// intKeyStringerGet is open over fmt.Stringer but only for int keys.
type intKeyStringerGet struct{ calls int }

func (h *intKeyStringerGet) OnGet(context.Context, int, fmt.Stringer, bool) error {
	h.calls++
	return nil
}

type countingAdd struct{ calls int }

func (c *countingAdd) OnAdd(context.Context, *shape) error {
	c.calls++
	return nil
}

type rejectingTracer struct{ err error }

func (r rejectingTracer) OnJobExecute(context.Context, render, hook.Next) error { return r.err }

type passThroughTracer struct{}

func (passThroughTracer) OnJobExecute(ctx context.Context, _ render, next hook.Next) error {
	return next(ctx)
}

type wrongShape struct{}

func (wrongShape) OnAdd(*shape) error                  { return nil }
func (wrongShape) OnGet(context.Context, *shape) error { return nil }

func TestInspect(t *testing.T) {
	bs, err := hook.Inspect(reflect.TypeFor[*addDeleteHook]())
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.Equal(t, hook.KindAdd, bs[0].Kind)
	assert.Equal(t, hook.KindDelete, bs[1].Kind)
	for _, b := range bs {
		assert.Equal(t, reflect.TypeFor[*shape](), b.Target)
		assert.False(t, b.Open)
	}

	bs, err = hook.Inspect(reflect.TypeFor[*stringerGetHook]())
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.True(t, bs[0].Open)
	assert.True(t, bs[0].Matches(reflect.TypeFor[*shape]()))
	assert.False(t, bs[0].Matches(reflect.TypeFor[render]()))

	bs, err = hook.Inspect(reflect.TypeFor[*tracer]())
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.Equal(t, hook.KindJobExecute, bs[0].Kind)
	assert.Equal(t, reflect.TypeFor[render](), bs[0].Target)

	bs, err = hook.Inspect(reflect.TypeFor[hook.OnUpsert[*shape]]())
	require.NoError(t, err)
	require.Len(t, bs, 1)
	assert.Equal(t, hook.KindUpsert, bs[0].Kind)
}

func TestInspect_NotHook(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeFor[shape](),
		reflect.TypeFor[wrongShape](),
		nil,
	} {
		_, err := hook.Inspect(typ)
		assert.ErrorIs(t, err, jobengine.ErrNotHook)
		assert.ErrorIs(t, err, jobengine.ErrConfiguration)
	}
}

func TestInspect_KeyType(t *testing.T) {
	bs, err := hook.Inspect(reflect.TypeFor[*addDeleteHook]())
	require.NoError(t, err)
	assert.Nil(t, bs[0].Key, "add hooks carry no key")
	assert.Equal(t, reflect.TypeFor[string](), bs[1].Key)

	kt, ok := hook.AssetKeyType(reflect.TypeFor[*shape]())
	require.True(t, ok)
	assert.Equal(t, reflect.TypeFor[string](), kt)
	_, ok = hook.AssetKeyType(reflect.TypeFor[render]())
	assert.False(t, ok)
}

func TestInspect_RejectsForeignKeyType(t *testing.T) {
	for _, typ := range []reflect.Type{
		reflect.TypeFor[intKeyGet](),
		reflect.TypeFor[intKeyDelete](),
	} {
		_, err := hook.Inspect(typ)
		assert.ErrorIs(t, err, jobengine.ErrNotHook, typ.String())
		assert.ErrorIs(t, err, jobengine.ErrConfiguration, typ.String())
	}
}

func register(t *testing.T, reg *registry.Registry, hooks *hook.Registry, v any) {
	t.Helper()
	bs, err := hook.Inspect(reflect.TypeOf(v))
	require.NoError(t, err)
	ref, err := reg.Add(registry.Descriptor{
		Key:      registry.Key{Type: reflect.TypeOf(v)},
		Lifetime: registry.Singleton,
		Borrowed: true,
		Factory:  func(registry.Resolver) (any, error) { return v, nil },
	})
	require.NoError(t, err)
	for _, b := range bs {
		hooks.Bind(b, ref)
	}
}

func TestFanout_FiresOnlyImplementedKinds(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	h := &addDeleteHook{}
	register(t, reg, hooks, h)
	f := hook.NewFanout(hooks, reg, nil)

	ctx := context.Background()
	st := reflect.TypeFor[*shape]()
	s := &shape{Name: "cube"}

	require.NoError(t, f.Emit(ctx, hook.KindGet, st, "cube", s, true))
	require.NoError(t, f.Emit(ctx, hook.KindAdd, st, s))
	require.NoError(t, f.Emit(ctx, hook.KindUpsert, st, s))
	require.NoError(t, f.Emit(ctx, hook.KindUpdate, st, s))
	require.NoError(t, f.Emit(ctx, hook.KindDelete, st, "cube", s))

	assert.Equal(t, []string{"add:cube", "delete:cube"}, h.calls)
}

func TestFanout_OpenHookMatchesImplementingTypes(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	h := &stringerGetHook{}
	register(t, reg, hooks, h)
	f := hook.NewFanout(hooks, reg, nil)

	ctx := context.Background()
	require.NoError(t, f.Emit(ctx, hook.KindGet, reflect.TypeFor[*shape](), "a", &shape{Name: "sphere"}, true))
	require.NoError(t, f.Emit(ctx, hook.KindGet, reflect.TypeFor[*shape](), "b", nil, false))
	require.NoError(t, f.Emit(ctx, hook.KindGet, reflect.TypeFor[render](), 1, render{}, true))

	assert.Equal(t, []string{"sphere", "miss"}, h.seen)
}

func TestFanout_OpenHookSkipsOtherKeyTypes(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	intKeyed := &intKeyStringerGet{}
	register(t, reg, hooks, intKeyed)
	anyKeyed := &stringerGetHook{}
	register(t, reg, hooks, anyKeyed)
	f := hook.NewFanout(hooks, reg, nil)

	err := f.Emit(context.Background(), hook.KindGet, reflect.TypeFor[*shape](), "a", &shape{Name: "torus"}, true)
	require.NoError(t, err)
	assert.Zero(t, intKeyed.calls)
	assert.Equal(t, []string{"torus"}, anyKeyed.seen)
	assert.Len(t, hooks.Lookup(hook.KindGet, reflect.TypeFor[*shape]()), 1)
}

func TestFanout_EmitResolvesFromContextScope(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	var built []*countingAdd
	ref, err := registry.Provide(reg, func() *countingAdd {
		c := &countingAdd{}
		built = append(built, c)
		return c
	}, registry.WithLifetime(registry.Scoped))
	require.NoError(t, err)
	bs, err := hook.Inspect(reflect.TypeFor[*countingAdd]())
	require.NoError(t, err)
	for _, b := range bs {
		hooks.Bind(b, ref)
	}
	f := hook.NewFanout(hooks, reg, nil)
	st := reflect.TypeFor[*shape]()

	first := registry.WithResolver(context.Background(), reg.NewScope())
	require.NoError(t, f.Emit(first, hook.KindAdd, st, &shape{Name: "a"}))
	require.NoError(t, f.Emit(first, hook.KindAdd, st, &shape{Name: "b"}))
	require.Len(t, built, 1, "one instance per scope")
	assert.Equal(t, 2, built[0].calls)

	second := registry.WithResolver(context.Background(), reg.NewScope())
	require.NoError(t, f.Emit(second, hook.KindAdd, st, &shape{Name: "c"}))
	assert.Len(t, built, 2)
}

func TestFanout_ErrorsAreTyped(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	want := errors.New("rejected")
	register(t, reg, hooks, failingAdd{err: want})
	f := hook.NewFanout(hooks, reg, nil)

	err := f.Emit(context.Background(), hook.KindAdd, reflect.TypeFor[*shape](), &shape{Name: "cone"})
	var herr *hook.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, hook.KindAdd, herr.Kind)
	assert.Equal(t, reflect.TypeFor[failingAdd](), herr.HookType)
	assert.ErrorIs(t, err, want)
}

func TestFanout_WrapSeparatesHookAndExecutorErrors(t *testing.T) {
	rt := reflect.TypeFor[render]()
	executorErr := errors.New("executor failed")

	reg := registry.New()
	hooks := hook.NewRegistry()
	register(t, reg, hooks, passThroughTracer{})
	f := hook.NewFanout(hooks, reg, nil)
	err := f.Wrap(context.Background(), reg, rt, render{}, func(context.Context) error { return executorErr })
	require.ErrorIs(t, err, executorErr)
	var herr *hook.Error
	assert.False(t, errors.As(err, &herr), "executor errors are not hook errors")

	reg = registry.New()
	hooks = hook.NewRegistry()
	hookErr := errors.New("vetoed")
	register(t, reg, hooks, rejectingTracer{err: hookErr})
	f = hook.NewFanout(hooks, reg, nil)
	err = f.Wrap(context.Background(), reg, rt, render{}, func(context.Context) error { return nil })
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, hook.KindJobExecute, herr.Kind)
	assert.ErrorIs(t, err, hookErr)
}

func TestFanout_FirstErrorStops(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	want := errors.New("rejected")
	register(t, reg, hooks, failingAdd{err: want})
	after := &addDeleteHook{}
	register(t, reg, hooks, after)

	var buf bytes.Buffer
	f := hook.NewFanout(hooks, reg, slog.New(slog.NewTextHandler(&buf, nil)))

	err := f.Emit(context.Background(), hook.KindAdd, reflect.TypeFor[*shape](), &shape{Name: "cone"})
	require.ErrorIs(t, err, want)
	assert.Empty(t, after.calls, "hooks after the failing one must not run")
	assert.Contains(t, buf.String(), "event hook error")
}

func TestFanout_WrapOrder(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	var trace []string
	register(t, reg, hooks, &tracer{name: "outer", trace: &trace})
	register(t, reg, hooks, &tracer{name: "inner", trace: &trace})
	f := hook.NewFanout(hooks, reg, nil)

	err := f.Wrap(context.Background(), reg, reflect.TypeFor[render](), render{ID: 1}, func(context.Context) error {
		trace = append(trace, "execute")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer>", "inner>", "execute", "<inner", "<outer"}, trace)
}

func TestFanout_WrapWithoutHooks(t *testing.T) {
	reg := registry.New()
	f := hook.NewFanout(hook.NewRegistry(), reg, nil)
	want := errors.New("executor failed")

	err := f.Wrap(context.Background(), reg, reflect.TypeFor[render](), render{}, func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestRegistry_LookupOrder(t *testing.T) {
	reg := registry.New()
	hooks := hook.NewRegistry()
	open := &stringerGetHook{}
	register(t, reg, hooks, open)
	closed := &addDeleteHook{}
	register(t, reg, hooks, closed)

	assert.Len(t, hooks.Lookup(hook.KindAdd, reflect.TypeFor[*shape]()), 1)
	assert.Len(t, hooks.Lookup(hook.KindGet, reflect.TypeFor[*shape]()), 1)
	assert.Empty(t, hooks.Lookup(hook.KindGet, reflect.TypeFor[render]()))
	assert.Equal(t, 3, hooks.Len())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "get", hook.KindGet.String())
	assert.Equal(t, "job_execute", hook.KindJobExecute.String())
	assert.Equal(t, "OnUpsert", hook.KindUpsert.Method())
}
