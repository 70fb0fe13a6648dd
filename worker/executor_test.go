package worker_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/hook"
	"github.com/xraph/jobengine/job"
	"github.com/xraph/jobengine/middleware"
	"github.com/xraph/jobengine/queue"
	"github.com/xraph/jobengine/registry"
	"github.com/xraph/jobengine/worker"
)

type greet struct {
	Name string
	Seq  int
}

type unknownJob struct{}

type harness struct {
	services *registry.Registry
	jobs     *job.Registry
	hooks    *hook.Registry
	executor *worker.Executor
}

func newHarness(t *testing.T, mws ...middleware.Middleware) *harness {
	t.Helper()
	logger := slog.Default()
	h := &harness{
		services: registry.New(),
		jobs:     job.NewRegistry(),
		hooks:    hook.NewRegistry(),
	}
	fanout := hook.NewFanout(h.hooks, h.services, logger)
	h.executor = worker.NewExecutor(h.services, h.jobs, fanout, logger,
		append([]middleware.Middleware{middleware.Recover(logger)}, mws...)...)
	t.Cleanup(func() { _ = h.services.Close() })
	return h
}

func (h *harness) addExecutor(t *testing.T, ctor any, lt registry.Lifetime) {
	t.Helper()
	out, err := registry.ConstructorType(ctor)
	if err != nil {
		t.Fatal(err)
	}
	b, err := job.Inspect(out)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := registry.Provide(h.services, ctor, registry.WithLifetime(lt))
	if err != nil {
		t.Fatal(err)
	}
	h.jobs.Bind(b, ref)
}

func (h *harness) addHook(t *testing.T, v any) {
	t.Helper()
	bs, err := hook.Inspect(reflect.TypeOf(v))
	if err != nil {
		t.Fatal(err)
	}
	ref, err := registry.Supply(h.services, v)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bs {
		h.hooks.Bind(b, ref)
	}
}

type recorder struct {
	mu  sync.Mutex
	log []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.log = append(r.log, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func TestExecutor_NoExecutor(t *testing.T) {
	h := newHarness(t)
	err := h.executor.Execute(context.Background(), job.NewEnvelope("main", unknownJob{}))
	if !errors.Is(err, jobengine.ErrNoExecutor) {
		t.Fatalf("expected ErrNoExecutor, got %v", err)
	}
}

func TestExecutor_MiddlewareSeesFanOut(t *testing.T) {
	type seen struct {
		executors int
		counted   bool
		status    string
		scoped    bool
	}
	var got []seen
	observe := func(ctx context.Context, _ *job.Envelope, next middleware.Handler) error {
		n, ok := middleware.Executors(ctx)
		_, scoped := registry.ResolverFrom(ctx)
		err := next(ctx)
		got = append(got, seen{executors: n, counted: ok, status: middleware.Status(err), scoped: scoped})
		return err
	}
	h := newHarness(t, observe)
	for range 2 {
		h.addExecutor(t, func() job.ExecutorFunc[greet] {
			return func(context.Context, greet) error { return nil }
		}, registry.Transient)
	}

	if err := h.executor.Execute(context.Background(), job.NewEnvelope("main", greet{})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := h.executor.Execute(context.Background(), job.NewEnvelope("main", unknownJob{})); !errors.Is(err, jobengine.ErrNoExecutor) {
		t.Fatalf("expected ErrNoExecutor, got %v", err)
	}

	want := []seen{
		{executors: 2, counted: true, status: middleware.StatusOK, scoped: true},
		{executors: 0, counted: true, status: middleware.StatusNoExecutor, scoped: true},
	}
	if len(got) != len(want) {
		t.Fatalf("middleware ran %d times, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("run %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExecutor_FanOutInRegistrationOrder(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			rec.add("first:" + g.Name)
			return nil
		}
	}, registry.Transient)
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			rec.add("second:" + g.Name)
			return nil
		}
	}, registry.Transient)

	if err := h.executor.Execute(context.Background(), job.NewEnvelope("main", greet{Name: "ada"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := rec.snapshot()
	want := []string{"first:ada", "second:ada"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExecutor_FirstErrorStops(t *testing.T) {
	h := newHarness(t)
	want := errors.New("first failed")
	var secondRan bool
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(context.Context, greet) error { return want }
	}, registry.Transient)
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(context.Context, greet) error {
			secondRan = true
			return nil
		}
	}, registry.Transient)

	err := h.executor.Execute(context.Background(), job.NewEnvelope("main", greet{}))
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if secondRan {
		t.Fatal("second executor should not run after the first failed")
	}
}

func TestExecutor_RecoversPanics(t *testing.T) {
	h := newHarness(t)
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(context.Context, greet) error { panic("boom") }
	}, registry.Transient)

	if err := h.executor.Execute(context.Background(), job.NewEnvelope("main", greet{})); err == nil {
		t.Fatal("expected error from panicking executor")
	}
}

type stamp struct{ id int }

var stampSeq struct {
	sync.Mutex
	n int
}

func newStamp() *stamp {
	stampSeq.Lock()
	defer stampSeq.Unlock()
	stampSeq.n++
	return &stamp{id: stampSeq.n}
}

type stampExecutor struct {
	s   *stamp
	rec *recorder
}

func (e *stampExecutor) Execute(_ context.Context, g greet) error {
	e.rec.add(fmt.Sprintf("%s:%d", g.Name, e.s.id))
	return nil
}

func TestExecutor_ScopePerJob(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	if _, err := registry.Provide(h.services, newStamp, registry.WithLifetime(registry.Scoped)); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Supply(h.services, rec); err != nil {
		t.Fatal(err)
	}
	ctor := func(s *stamp, r *recorder) *stampExecutor { return &stampExecutor{s: s, rec: r} }
	h.addExecutor(t, ctor, registry.Transient)
	h.addExecutor(t, ctor, registry.Transient)

	ctx := context.Background()
	if err := h.executor.Execute(ctx, job.NewEnvelope("main", greet{Name: "a"})); err != nil {
		t.Fatal(err)
	}
	if err := h.executor.Execute(ctx, job.NewEnvelope("main", greet{Name: "b"})); err != nil {
		t.Fatal(err)
	}

	got := rec.snapshot()
	if len(got) != 4 {
		t.Fatalf("expected 4 runs, got %v", got)
	}
	if got[0] != got[1] {
		t.Errorf("executors of one job should share the scoped stamp: %v", got)
	}
	if strings.TrimPrefix(got[2], "b:") == strings.TrimPrefix(got[0], "a:") {
		t.Errorf("jobs should get distinct scoped stamps: %v", got)
	}
}

type tracingHook struct{ rec *recorder }

func (h *tracingHook) OnJobExecute(ctx context.Context, g greet, next hook.Next) error {
	h.rec.add("before:" + g.Name)
	err := next(ctx)
	h.rec.add("after:" + g.Name)
	return err
}

type vetoHook struct{}

func (vetoHook) OnJobExecute(context.Context, greet, hook.Next) error {
	return errors.New("vetoed")
}

func TestExecutor_JobExecuteHookWrapsEachExecutor(t *testing.T) {
	h := newHarness(t)
	rec := &recorder{}
	h.addHook(t, &tracingHook{rec: rec})
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			rec.add("run:" + g.Name)
			return nil
		}
	}, registry.Transient)
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			rec.add("run2:" + g.Name)
			return nil
		}
	}, registry.Transient)

	if err := h.executor.Execute(context.Background(), job.NewEnvelope("main", greet{Name: "x"})); err != nil {
		t.Fatal(err)
	}
	want := []string{"before:x", "run:x", "after:x", "before:x", "run2:x", "after:x"}
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestExecutor_HookMaySkipExecutor(t *testing.T) {
	h := newHarness(t)
	h.addHook(t, vetoHook{})
	var ran bool
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(context.Context, greet) error {
			ran = true
			return nil
		}
	}, registry.Transient)

	if err := h.executor.Execute(context.Background(), job.NewEnvelope("main", greet{})); err == nil {
		t.Fatal("expected veto error")
	}
	if ran {
		t.Fatal("executor should not run when the hook does not call next")
	}
}

func TestExecutor_DrainObservesEnqueueOrder(t *testing.T) {
	h := newHarness(t)
	var got []int
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			got = append(got, g.Seq)
			return nil
		}
	}, registry.Transient)

	q := queue.NewFIFO("main")
	ctx := context.Background()
	for i := range 20 {
		if _, err := q.Enqueue(ctx, greet{Seq: i}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := h.executor.Drain(ctx, q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 20 {
		t.Fatalf("drained %d jobs, want 20", n)
	}
	for i, seq := range got {
		if seq != i {
			t.Fatalf("job %d ran as position %d: %v", seq, i, got)
		}
	}
}

func TestExecutor_DrainStopsAtFirstError(t *testing.T) {
	h := newHarness(t)
	want := errors.New("bad job")
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			if g.Seq == 1 {
				return want
			}
			return nil
		}
	}, registry.Transient)

	q := queue.NewFIFO("main")
	ctx := context.Background()
	for i := range 4 {
		_, _ = q.Enqueue(ctx, greet{Seq: i})
	}

	n, err := h.executor.Drain(ctx, q)
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
	if n != 2 {
		t.Errorf("drained %d jobs, want 2", n)
	}
	if q.Len() != 2 {
		t.Errorf("queue has %d jobs left, want 2", q.Len())
	}
}
