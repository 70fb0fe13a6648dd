// Package jobengine provides an in-process, typed job-dispatch and
// asset-lifecycle event engine for Go.
//
// Producers enqueue ordinary Go values ("jobs") onto named queues.
// Executors are registered per job type and resolved through a capability
// registry when a queue is drained. Executors read and mutate asset sets
// owned by an asset context, and every asset operation fans out to the
// event hooks registered for that operation and asset type.
//
// # Quick Start
//
//	eng, err := engine.New(engine.WithLogger(logger))
//
//	_ = engine.AddAssetContext(eng, voxel.NewContext,
//	    asset.WithAssetTypes(voxel.AssetTypes...))
//	_ = eng.AddExecutor(voxel.NewUpsertMainManifestHandler)
//	_ = eng.AddHook(voxel.NewAudit)
//
//	_, _ = eng.Enqueue(ctx, voxel.UpsertMainManifest{})
//	_, err = eng.DrainAll(ctx)
//
// # Architecture
//
// The root package holds configuration and the error taxonomy. Subsystems
// live in their own packages: registry (capability resolution and
// lifetimes), job (envelopes and executor bindings), queue (FIFO queues and
// the locator), hook (typed event hooks), asset (sets and contexts), worker
// (dispatch and drain loops), and engine, which wires them together.
//
// Optional packages build on the hook and middleware surfaces:
// observability (OpenTelemetry metrics), audit_hook (audit trail
// events), stream (a topic-based change feed), dlq (dead letter capture
// and replay) and cron (scheduled enqueueing).
//
// Job envelopes are identified with TypeIDs: type-prefixed, K-sortable,
// UUIDv7-based identifiers.
package jobengine
