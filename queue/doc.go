// Package queue defines the queue contract, the in-memory FIFO queue and
// the queue locator.
//
// A queue is identified by its Go type and a name. The [Locator] creates
// queues lazily on first lookup and returns the same instance for every
// later lookup of the same identity:
//
//	loc := queue.NewLocator()
//	q, err := loc.Get(reflect.TypeFor[queue.Queue](), "main")
//	env, err := q.Enqueue(ctx, UpsertMainManifest{})
//
// An empty name means jobengine.DefaultQueueName. Lookups of the [Queue]
// contract and of [*FIFO] under the same name share one instance. Other
// queue types are constructed by factories registered with [WithFactory]
// or [Locator.Register].
//
// # FIFO
//
// [FIFO] is an unbounded, mutex-guarded slice. Producers never block and
// jobs are never dropped. [FIFO.Dequeue] returns immediately; [FIFO.Next]
// blocks until a job arrives, the context is done, or the queue is closed
// and empty.
package queue
