package cron

// Definition is a typed cron definition. J is the job type enqueued on
// every firing.
type Definition[J any] struct {
	// Name is the unique identifier for this cron entry.
	Name string

	// Schedule is a cron expression (e.g., "*/5 * * * *" or "@every 30s").
	Schedule string

	// Job builds the job to enqueue on each firing.
	Job func() J

	// Queue overrides the default job queue (optional).
	Queue string
}

// Register adds a typed definition to the scheduler.
func Register[J any](s *Scheduler, def Definition[J]) error {
	var build func() any
	if def.Job != nil {
		build = func() any { return def.Job() }
	}
	return s.Add(def.Name, def.Schedule, def.Queue, build)
}
