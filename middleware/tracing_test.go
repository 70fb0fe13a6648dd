package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/hook"
	mw "github.com/xraph/jobengine/middleware"
)

func newTracedChain() (*tracetest.SpanRecorder, mw.Middleware) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return sr, mw.TracingWithTracer(tp.Tracer("test"))
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	return spans[0]
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]attribute.Value {
	out := make(map[string]attribute.Value)
	for _, a := range s.Attributes() {
		out[string(a.Key)] = a.Value
	}
	return out
}

func TestTracing_SpanDescribesEnvelope(t *testing.T) {
	sr, m := newTracedChain()
	env := newTestJob()
	env.EnqueuedAt = time.Now().Add(-1500 * time.Millisecond)
	ctx := mw.WithExecutors(context.Background(), 2)

	if err := m(ctx, env, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	span := onlySpan(t, sr)
	if span.Name() != "jobengine.job.execute" {
		t.Errorf("span name = %q", span.Name())
	}
	attrs := spanAttrs(span)
	for key, want := range map[string]string{
		"jobengine.job.id":     env.ID.String(),
		"jobengine.job.type":   "middleware_test.sendEmail",
		"jobengine.queue":      "main",
		"jobengine.job.status": mw.StatusOK,
	} {
		if got := attrs[key].AsString(); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if got := attrs["jobengine.job.executors"].AsInt64(); got != 2 {
		t.Errorf("executors = %d, want 2", got)
	}
	if got := attrs["jobengine.job.queue_wait_ms"].AsInt64(); got < 1500 {
		t.Errorf("queue_wait_ms = %d, want at least 1500", got)
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}
}

func TestTracing_ExecutorError(t *testing.T) {
	sr, m := newTracedChain()
	want := errors.New("handler failed")

	if err := m(context.Background(), newTestJob(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected handler error, got %v", err)
	}

	span := onlySpan(t, sr)
	if span.Status().Code != codes.Error || span.Status().Description != "handler failed" {
		t.Errorf("status = %+v", span.Status())
	}
	if got := spanAttrs(span)["jobengine.job.status"].AsString(); got != mw.StatusError {
		t.Errorf("job status = %q, want %q", got, mw.StatusError)
	}
	recorded := false
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Error("expected an exception event")
	}
}

func TestTracing_HookErrorNamesHook(t *testing.T) {
	sr, m := newTracedChain()
	herr := &hook.Error{
		Kind:     hook.KindJobExecute,
		HookType: reflect.TypeFor[*auditTrail](),
		Err:      errors.New("vetoed"),
	}

	_ = m(context.Background(), newTestJob(), func(context.Context) error {
		return fmt.Errorf("executor x: %w", herr)
	})

	attrs := spanAttrs(onlySpan(t, sr))
	if got := attrs["jobengine.job.status"].AsString(); got != mw.StatusHookError {
		t.Errorf("job status = %q, want %q", got, mw.StatusHookError)
	}
	if got := attrs["jobengine.hook.kind"].AsString(); got != "job_execute" {
		t.Errorf("hook kind = %q", got)
	}
	if got := attrs["jobengine.hook.type"].AsString(); got != "*middleware_test.auditTrail" {
		t.Errorf("hook type = %q", got)
	}
}

func TestTracing_NoExecutor(t *testing.T) {
	sr, m := newTracedChain()

	_ = m(mw.WithExecutors(context.Background(), 0), newTestJob(), func(context.Context) error {
		return fmt.Errorf("job x: %w", jobengine.ErrNoExecutor)
	})

	attrs := spanAttrs(onlySpan(t, sr))
	if got := attrs["jobengine.job.status"].AsString(); got != mw.StatusNoExecutor {
		t.Errorf("job status = %q, want %q", got, mw.StatusNoExecutor)
	}
	if got := attrs["jobengine.job.executors"].AsInt64(); got != 0 {
		t.Errorf("executors = %d, want 0", got)
	}
	if _, ok := attrs["jobengine.hook.kind"]; ok {
		t.Error("no hook attributes expected")
	}
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr, m := newTracedChain()

	var inner trace.SpanContext
	_ = m(context.Background(), newTestJob(), func(ctx context.Context) error {
		inner = trace.SpanFromContext(ctx).SpanContext()
		return nil
	})

	span := onlySpan(t, sr)
	if !inner.IsValid() || inner.SpanID() != span.SpanContext().SpanID() {
		t.Error("executors must run inside the job span")
	}
}

func TestTracing_DefaultNoopSafe(t *testing.T) {
	m := mw.Tracing()
	called := false
	if err := m(context.Background(), newTestJob(), func(context.Context) error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}
