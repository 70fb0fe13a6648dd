// Package job defines the job envelope, the executor contract, and the
// executor registry.
//
// # Jobs
//
// A job is any Go value. Its dynamic type is its kind of work: queues carry
// it inside an [Envelope] together with an ID, the queue name and the time
// it was enqueued.
//
// # Executors
//
// An executor is any type with a method
//
//	Execute(ctx context.Context, job J) error
//
// [Executor] names the contract and [ExecutorFunc] adapts a function to it.
// [Inspect] reports which J a type accepts. When J is a concrete type the
// executor is closed and runs only for that type; when J is an interface
// the executor is open and runs for every concrete job type implementing
// it:
//
//	type AuditExecutor struct{}
//
//	// Runs for every job that implements fmt.Stringer.
//	func (AuditExecutor) Execute(ctx context.Context, j fmt.Stringer) error
//
// # Registry
//
// [Registry] maps job types to executor registrations. Bind a binding to a
// registry.Ref at startup; Lookup returns every handler for a concrete job
// type, closed and open merged in registration order:
//
//	b, err := job.Inspect(reflect.TypeFor[*ManifestExecutor]())
//	ref, err := registry.Provide(reg, NewManifestExecutor)
//	executors.Bind(b, ref)
//
// The engine package wraps this in engine.AddExecutor.
package job
