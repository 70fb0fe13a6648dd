package cron

import (
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Entry represents a scheduled job.
type Entry struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Queue     string     `json:"queue,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
	Enabled   bool       `json:"enabled"`

	newJob func() any
	sched  cronlib.Schedule
}

// snapshot returns a copy that shares no pointers with e.
func (e *Entry) snapshot() Entry {
	out := *e
	if e.LastRunAt != nil {
		t := *e.LastRunAt
		out.LastRunAt = &t
	}
	if e.NextRunAt != nil {
		t := *e.NextRunAt
		out.NextRunAt = &t
	}
	return out
}
