package job

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/xraph/jobengine"
)

// Executor processes jobs of type J.
type Executor[J any] interface {
	Execute(ctx context.Context, job J) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc[J any] func(ctx context.Context, job J) error

// Execute calls f(ctx, job).
func (f ExecutorFunc[J]) Execute(ctx context.Context, job J) error { return f(ctx, job) }

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Binding describes the jobs an executor type accepts.
type Binding struct {
	// ExecutorType is the inspected type.
	ExecutorType reflect.Type

	// JobType is the J of Execute(ctx, J).
	JobType reflect.Type

	// Open is true when JobType is an interface. An open binding matches
	// every concrete job type implementing it.
	Open bool
}

// Matches reports whether the binding accepts jobs of type t.
func (b Binding) Matches(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if b.Open {
		return t.Implements(b.JobType)
	}
	return t == b.JobType
}

// Inspect reports the job type t executes. It fails with
// jobengine.ErrNotExecutor when t has no Execute(context.Context, J) error
// method.
func Inspect(t reflect.Type) (Binding, error) {
	if t == nil {
		return Binding{}, jobengine.NewConfigError("inspect executor", nil, jobengine.ErrNotExecutor)
	}
	m, ok := t.MethodByName("Execute")
	if !ok {
		return Binding{}, jobengine.NewConfigError("inspect executor", t,
			fmt.Errorf("%w: no Execute method", jobengine.ErrNotExecutor))
	}

	ft := m.Type
	in := 0
	if t.Kind() != reflect.Interface {
		// Skip the receiver.
		in = 1
	}
	if ft.IsVariadic() || ft.NumIn() != in+2 || ft.NumOut() != 1 ||
		ft.In(in) != contextType || ft.Out(0) != errorType {
		return Binding{}, jobengine.NewConfigError("inspect executor", t,
			fmt.Errorf("%w: Execute has signature %s, want func(context.Context, J) error", jobengine.ErrNotExecutor, ft))
	}

	jt := ft.In(in + 1)
	return Binding{ExecutorType: t, JobType: jt, Open: jt.Kind() == reflect.Interface}, nil
}

var errNilExecutor = errors.New("job: nil executor")

// Invoke calls executor.Execute(ctx, j) reflectively.
func Invoke(ctx context.Context, executor any, j any) error {
	if executor == nil {
		return errNilExecutor
	}
	m := reflect.ValueOf(executor).MethodByName("Execute")
	if !m.IsValid() {
		return fmt.Errorf("invoke %T: %w", executor, jobengine.ErrNotExecutor)
	}
	jt := m.Type().In(1)
	jv := reflect.Zero(jt)
	if j != nil {
		jv = reflect.ValueOf(j)
		if !jv.Type().AssignableTo(jt) {
			return fmt.Errorf("invoke %T: job %T is not assignable to %s", executor, j, jt)
		}
	}
	out := m.Call([]reflect.Value{reflect.ValueOf(ctx), jv})
	if err, _ := out[0].Interface().(error); err != nil {
		return err
	}
	return nil
}
