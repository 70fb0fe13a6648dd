// Package dlq provides the dead letter queue for jobs whose executors
// failed. It supports inspection, replay, and purging.
//
// The engine never retries a job. When the [Service] middleware is in the
// chain, a failing job is captured before the error is handed back to the
// caller that drove the drain, so it can be looked at or replayed later.
//
// # Entry
//
// A [Entry] captures:
//   - JobID / JobType / Queue: original job identity
//   - Job: the job value itself
//   - Error: the error message
//   - FailedAt: when the failure occurred
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Service
//
//	svc := dlq.NewService(dlq.NewMemoryStore(), eng, logger)
//	eng, err := engine.New(engine.WithMiddleware(svc.Middleware()))
//
//	// Inspect and replay.
//	entries, err := svc.Store().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
//	env, err := svc.Replay(ctx, entries[0].ID)
//
// Replaying an entry enqueues the original job value again on its original
// queue under a fresh job ID, and sets ReplayedAt on the entry.
package dlq
