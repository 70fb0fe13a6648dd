package dlq

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobengine/id"
	"github.com/xraph/jobengine/job"
	"github.com/xraph/jobengine/middleware"
)

// Enqueuer puts a job on a named queue. *engine.Engine satisfies it.
type Enqueuer interface {
	EnqueueTo(ctx context.Context, queue string, j any) (*job.Envelope, error)
}

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store   Store
	enqueue Enqueuer
	logger  *slog.Logger
}

// NewService creates a DLQ service. enq is used by Replay and may be nil
// when replay is not needed.
func NewService(store Store, enq Enqueuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, enqueue: enq, logger: logger}
}

// Store returns the underlying DLQ store for direct access to List, Get,
// Purge, and Count operations.
func (s *Service) Store() Store { return s.store }

// SetEnqueuer sets the enqueuer used by Replay. It lets the service be
// built before the engine that owns the queues.
func (s *Service) SetEnqueuer(enq Enqueuer) { s.enqueue = enq }

// Push builds a DLQ entry from a failed envelope and stores it.
func (s *Service) Push(ctx context.Context, env *job.Envelope, jobErr error) (*Entry, error) {
	entry := &Entry{
		ID:       id.NewDLQID(),
		JobID:    env.ID,
		JobType:  env.Name(),
		Queue:    env.Queue,
		Job:      env.Job,
		Error:    jobErr.Error(),
		FailedAt: time.Now().UTC(),
	}
	if err := s.store.PushDLQ(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Middleware returns middleware that pushes every failed job into the DLQ.
// The job's error is still returned unchanged. Place it after Recover so
// panics are captured as errors.
func (s *Service) Middleware() middleware.Middleware {
	return func(ctx context.Context, env *job.Envelope, next middleware.Handler) error {
		err := next(ctx)
		if err == nil {
			return nil
		}
		entry, pushErr := s.Push(ctx, env, err)
		if pushErr != nil {
			s.logger.Error("dlq: push failed",
				slog.String("job_id", env.ID.String()),
				slog.String("error", pushErr.Error()),
			)
			return err
		}
		s.logger.Warn("job moved to dead letter queue",
			slog.String("dlq_id", entry.ID.String()),
			slog.String("job_id", env.ID.String()),
			slog.String("job_type", entry.JobType),
			slog.String("queue", env.Queue),
		)
		return err
	}
}
