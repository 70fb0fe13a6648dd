// Package engine wires all jobengine subsystems together and provides the
// primary application-level API for registering and running work.
//
// The engine package exists to break a fundamental import cycle: the
// subsystem packages import the root jobengine package for configuration
// and the error taxonomy, so the root cannot import them back. Engine sits
// above all subsystem packages and below the application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithConfig(cfg),
//	    engine.WithLogger(logger),
//	    engine.WithMiddleware(myMiddleware),
//	)
//	defer eng.Close()
//
// Every Engine owns its own capability registry, queue locator and hook
// registry; nothing is process-global.
//
// # Registering
//
//	// Asset contexts: every embedded ancestor resolves to the same instance.
//	engine.AddAssetContext(eng, voxel.NewContext,
//	    asset.WithAssetTypes(voxel.AssetTypes...))
//
//	// Executors: constructor parameters are resolved from the registry.
//	eng.AddExecutor(voxel.NewUpsertMainManifestHandler)
//	engine.Handle(eng, func(ctx context.Context, j SendEmail) error { ... })
//
//	// Hooks: bound to every hook contract the type satisfies.
//	eng.AddHook(voxel.NewAudit)
//
//	// Queues: registrations resolve through the locator.
//	engine.AddQueueType[*queue.FIFO](eng, "bulk")
//
// Every registration call validates its type immediately and fails with an
// error matching jobengine.ErrConfiguration.
//
// # Running
//
//	eng.Enqueue(ctx, voxel.UpsertMainManifest{})      // default queue
//	eng.EnqueueTo(ctx, "bulk", job)                  // named queue
//	eng.Drain(ctx, "main")                           // synchronous drain
//	eng.Dispatch(ctx, job)                           // execute immediately
//
//	eng.Start(ctx)                                   // worker pool
//	eng.Stop(ctx)
//
// # Options
//
//   - [WithConfig]: set queues, concurrency, timeouts and logging
//   - [WithLogger]: set the structured logger
//   - [WithMiddleware]: add a middleware to the execution chain
//   - [WithQueueFactory]: teach the locator a custom queue type
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
//   - [WithoutObservability]: skip the metrics hook
package engine
