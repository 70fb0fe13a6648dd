package dlq

import (
	"time"

	"github.com/xraph/jobengine/id"
)

// Entry represents a failed job held for inspection or replay.
type Entry struct {
	ID         id.DLQID   `json:"id"`
	JobID      id.JobID   `json:"job_id"`
	JobType    string     `json:"job_type"`
	Queue      string     `json:"queue"`
	Job        any        `json:"job"`
	Error      string     `json:"error"`
	FailedAt   time.Time  `json:"failed_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
}
