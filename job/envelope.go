package job

import (
	"reflect"
	"time"

	"github.com/xraph/jobengine/id"
)

// Envelope carries one job through a queue.
type Envelope struct {
	ID         id.JobID     `json:"id"`
	Queue      string       `json:"queue"`
	Type       reflect.Type `json:"-"`
	Job        any          `json:"job"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// NewEnvelope wraps j for the named queue. j must not be nil.
func NewEnvelope(queue string, j any) *Envelope {
	return &Envelope{
		ID:         id.NewJobID(),
		Queue:      queue,
		Type:       reflect.TypeOf(j),
		Job:        j,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Name returns the job type name used in logs and telemetry.
func (e *Envelope) Name() string {
	if e.Type == nil {
		return "<nil>"
	}
	return e.Type.String()
}

// Waited returns how long the envelope sat between enqueue and now. It is
// zero for envelopes without an enqueue time.
func (e *Envelope) Waited(now time.Time) time.Duration {
	if e.EnqueuedAt.IsZero() || now.Before(e.EnqueuedAt) {
		return 0
	}
	return now.Sub(e.EnqueuedAt)
}
