package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/jobengine"
	"github.com/xraph/jobengine/job"
)

// Queue is an ordered store of job envelopes.
type Queue interface {
	// Name returns the queue name.
	Name() string

	// Enqueue wraps j in an envelope and appends it.
	Enqueue(ctx context.Context, j any) (*job.Envelope, error)

	// Dequeue removes and returns the oldest envelope without blocking.
	Dequeue() (*job.Envelope, bool)

	// Next blocks until an envelope is available. It returns
	// jobengine.ErrQueueClosed once the queue is closed and empty.
	Next(ctx context.Context) (*job.Envelope, error)

	// Len returns the number of queued envelopes.
	Len() int

	// Close stops accepting jobs and wakes blocked consumers.
	Close() error
}

var errNilJob = errors.New("queue: nil job")

// FIFO is an unbounded first-in first-out queue.
// It is safe for concurrent use.
type FIFO struct {
	name string

	mu     sync.Mutex
	items  []*job.Envelope
	closed bool

	wake chan struct{}
	done chan struct{}
}

var _ Queue = (*FIFO)(nil)

// NewFIFO creates an empty FIFO queue.
func NewFIFO(name string) *FIFO {
	return &FIFO{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Name returns the queue name.
func (q *FIFO) Name() string { return q.name }

// Enqueue appends j.
func (q *FIFO) Enqueue(_ context.Context, j any) (*job.Envelope, error) {
	if j == nil {
		return nil, errNilJob
	}
	env := job.NewEnvelope(q.name, j)
	if err := q.Push(env); err != nil {
		return nil, err
	}
	return env, nil
}

// Push appends an existing envelope.
func (q *FIFO) Push(env *job.Envelope) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return jobengine.ErrQueueClosed
	}
	q.items = append(q.items, env)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue removes and returns the oldest envelope.
func (q *FIFO) Dequeue() (*job.Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Next blocks until an envelope is available.
func (q *FIFO) Next(ctx context.Context) (*job.Envelope, error) {
	for {
		q.mu.Lock()
		env, ok := q.popLocked()
		closed := q.closed
		more := len(q.items) > 0
		q.mu.Unlock()

		if ok {
			if more {
				q.signal()
			}
			return env, nil
		}
		if closed {
			return nil, jobengine.ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		case <-q.done:
		}
	}
}

// Len returns the number of queued envelopes.
func (q *FIFO) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting jobs. Queued envelopes stay available to Dequeue
// and Next.
func (q *FIFO) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

func (q *FIFO) popLocked() (*job.Envelope, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	env := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return env, true
}

func (q *FIFO) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
