package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobengine/job"
	"github.com/xraph/jobengine/queue"
	"github.com/xraph/jobengine/registry"
	"github.com/xraph/jobengine/worker"
)

// locatorSource adapts a queue.Locator to worker.QueueSource.
type locatorSource struct{ loc *queue.Locator }

func (s locatorSource) Queue(name string) (queue.Queue, error) {
	return queue.GetAs[*queue.FIFO](s.loc, name)
}

func setupTestPool(t *testing.T, opts ...worker.PoolOption) (*worker.Pool, *harness, *queue.Locator) {
	t.Helper()
	h := newHarness(t)
	loc := queue.NewLocator()
	t.Cleanup(func() { _ = loc.Close() })
	pool := worker.NewPool(locatorSource{loc}, h.executor, slog.Default(), opts...)
	return pool, h, loc
}

func TestPool_StartStop(t *testing.T) {
	pool, _, _ := setupTestPool(t)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// Double start should be no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	// Double stop should be no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ProcessesJobsInOrder(t *testing.T) {
	pool, h, loc := setupTestPool(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, g.Seq)
			if len(got) == 10 {
				close(done)
			}
			return nil
		}
	}, registry.Singleton)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	q, err := queue.GetAs[*queue.FIFO](loc, "main")
	if err != nil {
		t.Fatal(err)
	}
	for i := range 10 {
		if _, err := q.Enqueue(context.Background(), greet{Seq: i}); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for jobs to be processed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range got {
		if seq != i {
			t.Fatalf("position %d ran job %d: %v", i, seq, got)
		}
	}
}

func TestPool_ContinuesAfterFailure(t *testing.T) {
	pool, h, loc := setupTestPool(t)

	var processed atomic.Int32
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(_ context.Context, g greet) error {
			processed.Add(1)
			if g.Seq == 0 {
				return errors.New("first job fails")
			}
			return nil
		}
	}, registry.Singleton)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	q, _ := queue.GetAs[*queue.FIFO](loc, "main")
	_, _ = q.Enqueue(context.Background(), greet{Seq: 0})
	_, _ = q.Enqueue(context.Background(), greet{Seq: 1})

	deadline := time.After(5 * time.Second)
	for processed.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for jobs to be processed")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPool_StopWaitsForRunningJob(t *testing.T) {
	pool, h, loc := setupTestPool(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(context.Context, greet) error {
			close(started)
			<-release
			finished.Store(true)
			return nil
		}
	}, registry.Singleton)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	q, _ := queue.GetAs[*queue.FIFO](loc, "main")
	_, _ = q.Enqueue(context.Background(), greet{})
	<-started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if !finished.Load() {
		t.Fatal("Stop returned before the running job finished")
	}
}

func TestPool_StopTimeoutCancelsJobs(t *testing.T) {
	pool, h, loc := setupTestPool(t)

	started := make(chan struct{})
	h.addExecutor(t, func() job.ExecutorFunc[greet] {
		return func(ctx context.Context, _ greet) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}
	}, registry.Singleton)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	q, _ := queue.GetAs[*queue.FIFO](loc, "main")
	_, _ = q.Enqueue(context.Background(), greet{})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPool_UnknownQueueFailsStart(t *testing.T) {
	h := newHarness(t)
	failing := sourceFunc(func(name string) (queue.Queue, error) {
		return nil, errors.New("no such queue")
	})
	pool := worker.NewPool(failing, h.executor, slog.Default(), worker.WithPoolQueues([]string{"missing"}))
	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
}

type sourceFunc func(name string) (queue.Queue, error)

func (f sourceFunc) Queue(name string) (queue.Queue, error) { return f(name) }

func TestPool_WorkerID(t *testing.T) {
	pool, _, _ := setupTestPool(t)
	if pool.WorkerID().IsNil() {
		t.Fatal("expected worker ID")
	}
}
