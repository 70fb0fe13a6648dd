package dlq

import (
	"context"
	"errors"

	"github.com/xraph/jobengine/id"
	"github.com/xraph/jobengine/job"
)

// Replay re-enqueues a DLQ entry's job on its original queue and marks the
// entry as replayed. The new envelope gets a fresh job ID. Replaying the
// same entry again enqueues the job again.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*job.Envelope, error) {
	if s.enqueue == nil {
		return nil, errors.New("dlq: replay needs an enqueuer")
	}
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	env, err := s.enqueue.EnqueueTo(ctx, entry.Queue, entry.Job)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The job is already enqueued.
		return env, err
	}
	return env, nil
}
