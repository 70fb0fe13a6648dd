package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/id"
	"github.com/xraph/jobengine/queue"
)

// QueueSource resolves queues by name.
type QueueSource interface {
	Queue(name string) (queue.Queue, error)
}

// Pool runs consumer goroutines that take jobs from named queues and
// execute them through the Executor.
type Pool struct {
	source      QueueSource
	executor    *Executor
	concurrency int
	queues      []string
	workerID    id.WorkerID
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	stop    context.CancelFunc
	group   *errgroup.Group

	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of consumers per queue. The default
// of 1 executes each queue strictly in enqueue order.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithPoolQueues sets the queues the pool consumes.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) { p.queues = queues }
}

// NewPool creates a worker pool.
func NewPool(source QueueSource, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		source:      source,
		executor:    executor,
		concurrency: 1,
		queues:      []string{jobengine.DefaultQueueName},
		workerID:    id.NewWorkerID(),
		logger:      logger,
		activeJobs:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start resolves the queues and launches the consumers. It returns
// immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	queues := make([]queue.Queue, 0, len(p.queues))
	for _, name := range p.queues {
		q, err := p.source.Queue(name)
		if err != nil {
			return fmt.Errorf("worker pool: queue %q: %w", name, err)
		}
		queues = append(queues, q)
	}

	pollCtx, stop := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(pollCtx)
	for _, q := range queues {
		for range p.concurrency {
			g.Go(func() error { return p.consume(gctx, q) })
		}
	}
	p.running, p.stop, p.group = true, stop, g

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)
	return nil
}

// Stop stops taking new jobs and waits for running jobs to finish. If ctx
// is done first, running jobs are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stop, g := p.stop, p.group
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	stop()

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		err = <-done
	}
	return err
}

// consume is run by each consumer goroutine.
func (p *Pool) consume(ctx context.Context, q queue.Queue) error {
	for {
		env, err := q.Next(ctx)
		if err != nil {
			if isShutdown(err) {
				return nil
			}
			return fmt.Errorf("queue %s: %w", q.Name(), err)
		}

		// Jobs outlive the poll context so Stop can let them finish.
		jobCtx, cancel := context.WithCancel(context.Background())
		p.trackJob(env.ID.String(), cancel)

		if execErr := p.executor.Execute(jobCtx, env); execErr != nil {
			p.logger.Error("job execution failed",
				slog.String("job_id", env.ID.String()),
				slog.String("job_type", env.Name()),
				slog.String("queue", q.Name()),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(env.ID.String())
		cancel()
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
