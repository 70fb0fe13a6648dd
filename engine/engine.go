// Package engine wires the jobengine subsystems together. It owns the
// capability registry, the executor and hook registries, the queue locator
// and the worker pool, and provides the registration and runtime surfaces.
//
// This package exists to break the import cycle: the subsystem packages
// import the root jobengine package for configuration and errors, so the
// root cannot import them back. Engine sits above all subsystem packages
// and below the application layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/asset"
	"github.com/xraph/jobengine/hook"
	"github.com/xraph/jobengine/id"
	"github.com/xraph/jobengine/job"
	mw "github.com/xraph/jobengine/middleware"
	"github.com/xraph/jobengine/observability"
	"github.com/xraph/jobengine/queue"
	"github.com/xraph/jobengine/registry"
	"github.com/xraph/jobengine/worker"
)

var queueType = reflect.TypeFor[queue.Queue]()

// Engine is one isolated job-dispatch instance. Nothing it owns is shared
// with other engines.
type Engine struct {
	config   jobengine.Config
	logger   *slog.Logger
	services *registry.Registry
	jobs     *job.Registry
	hooks    *hook.Registry
	fanout   *hook.Fanout
	locator  *queue.Locator
	executor *worker.Executor
	pool     *worker.Pool

	mws            []mw.Middleware
	queueFactories []queueFactory
	observability  bool

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	closeOnce sync.Once
	closeErr  error
}

type queueFactory struct {
	t reflect.Type
	f queue.Factory
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration.
func WithConfig(cfg jobengine.Config) Option {
	return func(eng *Engine) {
		eng.config = cfg
	}
}

// WithLogger sets the logger used by the engine and its middleware.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) {
		eng.logger = l
	}
}

// WithMiddleware adds middleware to the engine's chain. It runs inside the
// default recover, tracing, metrics, logging and timeout middleware.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithQueueFactory registers the factory the queue locator uses for queue
// type t.
func WithQueueFactory(t reflect.Type, f queue.Factory) Option {
	return func(eng *Engine) {
		eng.queueFactories = append(eng.queueFactories, queueFactory{t: t, f: f})
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the metrics middleware and the observability hook use
// this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// WithoutObservability skips registering the observability metrics hook.
func WithoutObservability() Option {
	return func(eng *Engine) {
		eng.observability = false
	}
}

// New creates an Engine. It fails when an option carries an invalid
// queue factory.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		config:        jobengine.DefaultConfig(),
		logger:        slog.Default(),
		observability: true,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = slog.Default()
	}
	if eng.config.DefaultQueue == "" {
		eng.config.DefaultQueue = jobengine.DefaultQueueName
	}
	logger := eng.logger

	eng.services = registry.New()
	eng.jobs = job.NewRegistry()
	eng.hooks = hook.NewRegistry()
	eng.fanout = hook.NewFanout(eng.hooks, eng.services, logger)
	eng.locator = queue.NewLocator()
	for _, qf := range eng.queueFactories {
		if err := eng.locator.Register(qf.t, qf.f); err != nil {
			return nil, err
		}
	}

	if err := eng.supplyHostServices(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/xraph/jobengine")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/jobengine")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics hook.
	if eng.observability {
		var obs *observability.Hook
		if eng.meterProvider != nil {
			meter := eng.meterProvider.Meter("github.com/xraph/jobengine/observability")
			obs = observability.NewHookWithMeter(meter)
		} else {
			obs = observability.NewHook()
		}
		if err := eng.AddHookInstance(obs); err != nil {
			return nil, err
		}
	}

	// recover → tracing → metrics → logging → timeout → user → recover.
	// The inner Recover turns executor panics into *PanicError before any
	// middleware sees the result; the outer one guards the middleware.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(eng.config.JobTimeout, logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws)+1)
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)
	allMws = append(allMws, mw.Recover(logger))

	eng.executor = worker.NewExecutor(eng.services, eng.jobs, eng.fanout, logger, allMws...)

	queues := eng.config.Queues
	if len(queues) == 0 {
		queues = []string{eng.config.DefaultQueue}
	}
	eng.pool = worker.NewPool(eng, eng.executor, logger,
		worker.WithPoolConcurrency(eng.config.Concurrency),
		worker.WithPoolQueues(queues),
	)

	return eng, nil
}

// supplyHostServices registers the values every constructor may depend on.
func (eng *Engine) supplyHostServices() error {
	if _, err := registry.Supply[asset.Emitter](eng.services, eng.fanout); err != nil {
		return err
	}
	if _, err := registry.Supply(eng.services, eng.logger); err != nil {
		return err
	}
	if _, err := registry.Supply(eng.services, eng.config); err != nil {
		return err
	}
	if _, err := registry.Supply(eng.services, eng.locator); err != nil {
		return err
	}
	// The default queue is available to constructors as queue.Queue.
	return eng.AddQueue(queueType, "")
}

// ──────────────────────────────────────────────────
// Registration surface
// ──────────────────────────────────────────────────

type registerConfig struct {
	lifetime registry.Lifetime
}

// RegisterOption configures AddQueue, AddExecutor and AddHook.
type RegisterOption func(*registerConfig)

// WithLifetime overrides the registration's default lifetime.
func WithLifetime(l registry.Lifetime) RegisterOption {
	return func(c *registerConfig) {
		c.lifetime = l
	}
}

func newRegisterConfig(def registry.Lifetime, opts []RegisterOption) registerConfig {
	cfg := registerConfig{lifetime: def}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// AddAssetContext registers the asset context type T. newFn receives the
// base context wired to the engine's hooks. Every exported context on T's
// embedding chain resolves to the same instance.
func AddAssetContext[T any](eng *Engine, newFn func(*asset.Context) T, opts ...asset.Option) error {
	if _, err := asset.AddContext(eng.services, newFn, opts...); err != nil {
		return err
	}
	eng.logger.Debug("asset context registered",
		slog.String("type", reflect.TypeFor[T]().String()),
	)
	return nil
}

// AddQueue registers queue type t under name. Resolving the registration
// returns the locator's queue for (t, name); it never constructs a queue of
// its own. An empty name registers the unnamed capability for the default
// queue. The default lifetime is registry.Scoped.
func (eng *Engine) AddQueue(t reflect.Type, name string, opts ...RegisterOption) error {
	if err := queue.CheckType(t); err != nil {
		return err
	}
	if !eng.locator.Has(t) {
		return jobengine.NewConfigError("register queue", t,
			errors.New("engine: no queue factory registered for type"))
	}
	cfg := newRegisterConfig(registry.Scoped, opts)

	queueName := name
	if queueName == "" {
		queueName = eng.config.DefaultQueue
	}
	_, err := eng.services.Add(registry.Descriptor{
		Key:      registry.Key{Type: t, Name: name},
		Lifetime: cfg.lifetime,
		Borrowed: true,
		Factory: func(registry.Resolver) (any, error) {
			q, err := eng.locator.Get(t, queueName)
			if err != nil {
				return nil, err
			}
			return q, nil
		},
	})
	if err != nil {
		return err
	}
	eng.logger.Debug("queue registered",
		slog.String("type", t.String()),
		slog.String("queue", queueName),
	)
	return nil
}

// AddQueueType is AddQueue for a statically known queue type.
func AddQueueType[Q queue.Queue](eng *Engine, name string, opts ...RegisterOption) error {
	return eng.AddQueue(reflect.TypeFor[Q](), name, opts...)
}

// AddExecutor registers the executor built by ctor, a function returning
// the executor or (executor, error) whose parameters are resolved from the
// registry. The executor must have a method Execute(context.Context, J)
// error. A concrete J binds jobs of exactly that type; an interface J binds
// every job type implementing it. Nothing is registered on failure. The
// default lifetime is registry.Transient.
func (eng *Engine) AddExecutor(ctor any, opts ...RegisterOption) error {
	out, err := registry.ConstructorType(ctor)
	if err != nil {
		return jobengine.NewConfigError("register executor", reflect.TypeOf(ctor),
			fmt.Errorf("%w: %w", jobengine.ErrNotExecutor, err))
	}
	b, err := job.Inspect(out)
	if err != nil {
		return err
	}
	cfg := newRegisterConfig(registry.Transient, opts)
	ref, err := registry.Provide(eng.services, ctor, registry.WithLifetime(cfg.lifetime))
	if err != nil {
		return err
	}
	eng.bindExecutor(b, ref)
	return nil
}

// AddExecutorInstance registers a ready executor value.
func (eng *Engine) AddExecutorInstance(v any) error {
	b, err := job.Inspect(reflect.TypeOf(v))
	if err != nil {
		return err
	}
	ref, err := eng.supply(v)
	if err != nil {
		return err
	}
	eng.bindExecutor(b, ref)
	return nil
}

// Handle registers fn as the executor for jobs of type J.
func Handle[J any](eng *Engine, fn func(ctx context.Context, j J) error) error {
	if fn == nil {
		return jobengine.NewConfigError("register executor", reflect.TypeFor[J](),
			fmt.Errorf("%w: nil function", jobengine.ErrNotExecutor))
	}
	return eng.AddExecutorInstance(job.ExecutorFunc[J](fn))
}

func (eng *Engine) bindExecutor(b job.Binding, ref registry.Ref) {
	eng.jobs.Bind(b, ref)
	eng.logger.Debug("executor registered",
		slog.String("executor", b.ExecutorType.String()),
		slog.String("job_type", b.JobType.String()),
		slog.Bool("open", b.Open),
		slog.String("lifetime", ref.Lifetime().String()),
	)
}

// AddHook registers the hook built by ctor against every hook contract its
// type satisfies. It fails with jobengine.ErrNotHook when it satisfies
// none. The default lifetime is registry.Singleton.
func (eng *Engine) AddHook(ctor any, opts ...RegisterOption) error {
	out, err := registry.ConstructorType(ctor)
	if err != nil {
		return jobengine.NewConfigError("register hook", reflect.TypeOf(ctor),
			fmt.Errorf("%w: %w", jobengine.ErrNotHook, err))
	}
	bindings, err := hook.Inspect(out)
	if err != nil {
		return err
	}
	cfg := newRegisterConfig(registry.Singleton, opts)
	ref, err := registry.Provide(eng.services, ctor, registry.WithLifetime(cfg.lifetime))
	if err != nil {
		return err
	}
	eng.bindHook(bindings, ref)
	return nil
}

// AddHookInstance registers a ready hook value.
func (eng *Engine) AddHookInstance(v any) error {
	bindings, err := hook.Inspect(reflect.TypeOf(v))
	if err != nil {
		return err
	}
	ref, err := eng.supply(v)
	if err != nil {
		return err
	}
	eng.bindHook(bindings, ref)
	return nil
}

func (eng *Engine) bindHook(bindings []hook.Binding, ref registry.Ref) {
	for _, b := range bindings {
		eng.hooks.Bind(b, ref)
		eng.logger.Debug("hook registered",
			slog.String("hook", b.HookType.String()),
			slog.String("kind", b.Kind.String()),
			slog.String("target", b.Target.String()),
			slog.Bool("open", b.Open),
		)
	}
}

// supply registers v under its dynamic type. The caller keeps ownership.
func (eng *Engine) supply(v any) (registry.Ref, error) {
	return eng.services.Add(registry.Descriptor{
		Key:      registry.Key{Type: reflect.TypeOf(v)},
		Lifetime: registry.Singleton,
		Borrowed: true,
		Factory:  func(registry.Resolver) (any, error) { return v, nil },
	})
}

// ──────────────────────────────────────────────────
// Runtime surface
// ──────────────────────────────────────────────────

// Queue returns the default queue implementation with the given name. An
// empty name means the configured default queue.
func (eng *Engine) Queue(name string) (queue.Queue, error) {
	return eng.QueueOf(queueType, name)
}

// QueueOf returns the queue of type t with the given name.
func (eng *Engine) QueueOf(t reflect.Type, name string) (queue.Queue, error) {
	if name == "" {
		name = eng.config.DefaultQueue
	}
	return eng.locator.Get(t, name)
}

// GetQueue is QueueOf for a statically known queue type.
func GetQueue[Q queue.Queue](eng *Engine, name string) (Q, error) {
	if name == "" {
		name = eng.config.DefaultQueue
	}
	return queue.GetAs[Q](eng.locator, name)
}

// Enqueue adds j to the default queue.
func (eng *Engine) Enqueue(ctx context.Context, j any) (*job.Envelope, error) {
	return eng.EnqueueTo(ctx, "", j)
}

// EnqueueTo adds j to the named queue.
func (eng *Engine) EnqueueTo(ctx context.Context, name string, j any) (*job.Envelope, error) {
	q, err := eng.Queue(name)
	if err != nil {
		return nil, err
	}
	env, err := q.Enqueue(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("enqueue %T on %q: %w", j, q.Name(), err)
	}
	eng.logger.Debug("job enqueued",
		slog.String("job_id", env.ID.String()),
		slog.String("job_type", env.Name()),
		slog.String("queue", q.Name()),
	)
	return env, nil
}

// Dispatch executes j immediately without queueing it.
func (eng *Engine) Dispatch(ctx context.Context, j any) error {
	return eng.executor.Execute(ctx, job.NewEnvelope(eng.config.DefaultQueue, j))
}

// Drain executes the named queue's jobs until it is empty and returns the
// number of jobs taken. The first failure stops the drain; later jobs stay
// queued.
func (eng *Engine) Drain(ctx context.Context, name string) (int, error) {
	q, err := eng.Queue(name)
	if err != nil {
		return 0, err
	}
	return eng.executor.Drain(ctx, q)
}

// DrainAll drains every constructed queue, repeating until a pass finds
// them all empty, so jobs enqueued by executors are processed too.
func (eng *Engine) DrainAll(ctx context.Context) (int, error) {
	total := 0
	for {
		pass := 0
		for _, q := range eng.locator.Queues() {
			n, err := eng.executor.Drain(ctx, q)
			pass += n
			if err != nil {
				return total + pass, err
			}
		}
		total += pass
		if pass == 0 {
			return total, nil
		}
	}
}

// Start launches the worker pool consuming the configured queues.
func (eng *Engine) Start(ctx context.Context) error {
	if err := eng.pool.Start(ctx); err != nil {
		return fmt.Errorf("start worker pool: %w", err)
	}
	return nil
}

// Stop stops the worker pool. Without a deadline on ctx it waits at most
// the configured ShutdownTimeout.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && eng.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.config.ShutdownTimeout)
		defer cancel()
	}
	return eng.pool.Stop(ctx)
}

// Close stops the pool, closes every queue and then the registry,
// releasing the singletons it constructed. It is safe to call more than
// once.
func (eng *Engine) Close() error {
	eng.closeOnce.Do(func() {
		eng.closeErr = errors.Join(
			eng.Stop(context.Background()),
			eng.locator.Close(),
			eng.services.Close(),
		)
	})
	return eng.closeErr
}

// Resolve returns the registered capability T.
func Resolve[T any](eng *Engine) (T, error) {
	return registry.Inject[T](eng.services)
}

// ResolveNamed returns the capability T registered under name.
func ResolveNamed[T any](eng *Engine, name string) (T, error) {
	return registry.InjectNamed[T](eng.services, name)
}

// Services returns the capability registry.
func (eng *Engine) Services() *registry.Registry { return eng.services }

// Jobs returns the executor registry.
func (eng *Engine) Jobs() *job.Registry { return eng.jobs }

// Hooks returns the hook registry.
func (eng *Engine) Hooks() *hook.Registry { return eng.hooks }

// Locator returns the queue locator.
func (eng *Engine) Locator() *queue.Locator { return eng.locator }

// Executor returns the job executor.
func (eng *Engine) Executor() *worker.Executor { return eng.executor }

// WorkerID returns the worker pool's identifier.
func (eng *Engine) WorkerID() id.WorkerID { return eng.pool.WorkerID() }

// Config returns the engine configuration.
func (eng *Engine) Config() jobengine.Config { return eng.config }

// Logger returns the engine logger.
func (eng *Engine) Logger() *slog.Logger { return eng.logger }
