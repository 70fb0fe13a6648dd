package job_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/job"
	"github.com/xraph/jobengine/registry"
)

type sendEmail struct {
	To string
}

func (s sendEmail) String() string { return "email to " + s.To }

type resizeImage struct{}

type emailExecutor struct {
	got []sendEmail
}

func (e *emailExecutor) Execute(_ context.Context, j sendEmail) error {
	e.got = append(e.got, j)
	return nil
}

type stringerExecutor struct{}

func (stringerExecutor) Execute(context.Context, fmt.Stringer) error { return nil }

type badArgs struct{}

func (badArgs) Execute(sendEmail) error { return nil }

type badResult struct{}

func (badResult) Execute(context.Context, sendEmail) bool { return true }

func TestInspect(t *testing.T) {
	tests := []struct {
		name    string
		typ     reflect.Type
		jobType reflect.Type
		open    bool
		wantErr bool
	}{
		{"closed pointer receiver", reflect.TypeFor[*emailExecutor](), reflect.TypeFor[sendEmail](), false, false},
		{"open value receiver", reflect.TypeFor[stringerExecutor](), reflect.TypeFor[fmt.Stringer](), true, false},
		{"func adapter", reflect.TypeFor[job.ExecutorFunc[resizeImage]](), reflect.TypeFor[resizeImage](), false, false},
		{"contract interface", reflect.TypeFor[job.Executor[sendEmail]](), reflect.TypeFor[sendEmail](), false, false},
		{"no Execute method", reflect.TypeFor[resizeImage](), nil, false, true},
		{"value receiver missing on pointer method", reflect.TypeFor[emailExecutor](), nil, false, true},
		{"missing context", reflect.TypeFor[badArgs](), nil, false, true},
		{"wrong result", reflect.TypeFor[badResult](), nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := job.Inspect(tt.typ)
			if tt.wantErr {
				if !errors.Is(err, jobengine.ErrNotExecutor) {
					t.Fatalf("expected ErrNotExecutor, got %v", err)
				}
				if !errors.Is(err, jobengine.ErrConfiguration) {
					t.Fatalf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.JobType != tt.jobType {
				t.Errorf("JobType = %v, want %v", b.JobType, tt.jobType)
			}
			if b.Open != tt.open {
				t.Errorf("Open = %v, want %v", b.Open, tt.open)
			}
		})
	}
}

func TestBinding_Matches(t *testing.T) {
	open, _ := job.Inspect(reflect.TypeFor[stringerExecutor]())
	closed, _ := job.Inspect(reflect.TypeFor[*emailExecutor]())

	if !open.Matches(reflect.TypeFor[sendEmail]()) {
		t.Error("open binding should match implementing type")
	}
	if open.Matches(reflect.TypeFor[resizeImage]()) {
		t.Error("open binding should not match non-implementing type")
	}
	if !closed.Matches(reflect.TypeFor[sendEmail]()) {
		t.Error("closed binding should match its job type")
	}
	if closed.Matches(reflect.TypeFor[*sendEmail]()) {
		t.Error("closed binding should not match a different type")
	}
}

func TestInvoke(t *testing.T) {
	ex := &emailExecutor{}
	if err := job.Invoke(context.Background(), ex, sendEmail{To: "alice"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ex.got) != 1 || ex.got[0].To != "alice" {
		t.Fatalf("got %v, want one job to alice", ex.got)
	}

	if err := job.Invoke(context.Background(), ex, resizeImage{}); err == nil {
		t.Fatal("expected error for non-assignable job")
	}

	want := errors.New("failed")
	fn := job.ExecutorFunc[resizeImage](func(context.Context, resizeImage) error { return want })
	if err := job.Invoke(context.Background(), fn, resizeImage{}); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func bind(t *testing.T, reg *registry.Registry, jobs *job.Registry, ctor any) registry.Ref {
	t.Helper()
	out, err := registry.ConstructorType(ctor)
	if err != nil {
		t.Fatal(err)
	}
	b, err := job.Inspect(out)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := registry.Provide(reg, ctor, registry.WithLifetime(registry.Transient))
	if err != nil {
		t.Fatal(err)
	}
	jobs.Bind(b, ref)
	return ref
}

func TestRegistry_LookupMergesInRegistrationOrder(t *testing.T) {
	reg := registry.New()
	jobs := job.NewRegistry()

	first := bind(t, reg, jobs, func() stringerExecutor { return stringerExecutor{} })
	second := bind(t, reg, jobs, func() *emailExecutor { return &emailExecutor{} })
	third := bind(t, reg, jobs, func() job.ExecutorFunc[sendEmail] {
		return func(context.Context, sendEmail) error { return nil }
	})

	hs := jobs.Lookup(reflect.TypeFor[sendEmail]())
	if len(hs) != 3 {
		t.Fatalf("expected 3 handlers, got %d", len(hs))
	}
	for i, want := range []registry.Ref{first, second, third} {
		if hs[i].Ref != want {
			t.Errorf("handler %d = %v, want %v", i, hs[i].Ref.Key(), want.Key())
		}
	}

	if got := jobs.Lookup(reflect.TypeFor[resizeImage]()); len(got) != 0 {
		t.Errorf("expected no handlers for resizeImage, got %d", len(got))
	}
	if jobs.Len() != 3 {
		t.Errorf("Len = %d, want 3", jobs.Len())
	}
}

func TestRegistry_BindResetsCache(t *testing.T) {
	reg := registry.New()
	jobs := job.NewRegistry()

	if got := jobs.Lookup(reflect.TypeFor[sendEmail]()); len(got) != 0 {
		t.Fatalf("expected empty lookup, got %d", len(got))
	}
	bind(t, reg, jobs, func() *emailExecutor { return &emailExecutor{} })
	if got := jobs.Lookup(reflect.TypeFor[sendEmail]()); len(got) != 1 {
		t.Fatalf("expected 1 handler after Bind, got %d", len(got))
	}
}

func TestHandler_Invoke(t *testing.T) {
	reg := registry.New()
	jobs := job.NewRegistry()
	ex := &emailExecutor{}
	bind(t, reg, jobs, func() *emailExecutor { return ex })

	h := jobs.Lookup(reflect.TypeFor[sendEmail]())[0]
	if err := h.Invoke(context.Background(), reg.NewScope(), sendEmail{To: "bob"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ex.got) != 1 {
		t.Fatalf("expected executor to run once, ran %d times", len(ex.got))
	}
}

func TestEnvelope(t *testing.T) {
	env := job.NewEnvelope("main", sendEmail{To: "carol"})
	if env.Type != reflect.TypeFor[sendEmail]() {
		t.Errorf("Type = %v", env.Type)
	}
	if env.ID.IsNil() {
		t.Error("expected envelope ID")
	}
	if env.Name() != "job_test.sendEmail" {
		t.Errorf("Name = %q", env.Name())
	}
	if env.EnqueuedAt.IsZero() {
		t.Error("expected EnqueuedAt")
	}
}

func TestEnvelope_Waited(t *testing.T) {
	env := job.NewEnvelope("main", sendEmail{})
	env.EnqueuedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if got := env.Waited(env.EnqueuedAt.Add(3 * time.Second)); got != 3*time.Second {
		t.Errorf("Waited = %v, want 3s", got)
	}
	if got := env.Waited(env.EnqueuedAt.Add(-time.Second)); got != 0 {
		t.Errorf("Waited before enqueue = %v, want 0", got)
	}
	env.EnqueuedAt = time.Time{}
	if got := env.Waited(time.Now()); got != 0 {
		t.Errorf("Waited without enqueue time = %v, want 0", got)
	}
}
