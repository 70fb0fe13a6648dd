package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/jobengine/job"
)

// Enqueuer puts a job on a named queue. *engine.Engine satisfies it.
type Enqueuer interface {
	EnqueueTo(ctx context.Context, queue string, j any) (*job.Envelope, error)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithClock overrides the time source used by the tick loop.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

var (
	// ErrDuplicateEntry is returned when an entry name is already taken.
	ErrDuplicateEntry = errors.New("cron: duplicate entry")

	// ErrUnknownEntry is returned for an entry name that was never added.
	ErrUnknownEntry = errors.New("cron: unknown entry")
)

// Scheduler fires cron entries on a tick loop.
type Scheduler struct {
	enqueue Enqueuer
	logger  *slog.Logger
	now     func() time.Time

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string

	runMu   sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a Scheduler that enqueues through enq.
func NewScheduler(enq Enqueuer, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		enqueue:      enq,
		logger:       logger,
		now:          time.Now,
		tickInterval: 1 * time.Second,
		entries:      make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers an enabled entry. newJob builds the job enqueued on each
// firing. The first run is the schedule's next activation after now.
func (s *Scheduler) Add(name, schedule, queue string, newJob func() any) error {
	if name == "" {
		return errors.New("cron: entry name is required")
	}
	if newJob == nil {
		return fmt.Errorf("cron: entry %q has no job", name)
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("cron: entry %q: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}
	next := sched.Next(s.now().UTC())
	s.entries[name] = &Entry{
		Name:      name,
		Schedule:  schedule,
		Queue:     queue,
		NextRunAt: &next,
		Enabled:   true,
		newJob:    newJob,
		sched:     sched,
	}
	s.order = append(s.order, name)
	return nil
}

// Remove deletes an entry.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, name)
	}
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Enable turns an entry on. Its next run is recomputed from now.
func (s *Scheduler) Enable(name string) error {
	return s.setEnabled(name, true)
}

// Disable turns an entry off without removing it.
func (s *Scheduler) Disable(name string) error {
	return s.setEnabled(name, false)
}

func (s *Scheduler) setEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntry, name)
	}
	if enabled && !e.Enabled {
		next := e.sched.Next(s.now().UTC())
		e.NextRunAt = &next
	}
	e.Enabled = enabled
	return nil
}

// Entries returns a snapshot of every entry in registration order.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.entries[name].snapshot())
	}
	return out
}

// Start launches the tick loop.
func (s *Scheduler) Start(_ context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return errors.New("cron: scheduler already started")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.tickLoop(s.stopCh)
	s.logger.Info("cron scheduler started",
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the tick loop to stop and waits for it to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("cron scheduler stopped")
	return nil
}

func (s *Scheduler) tickLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RunDue(context.Background(), s.now())
		}
	}
}

// RunDue fires every enabled entry whose next run is not after now and
// returns how many jobs were enqueued. An entry fires at most once per
// call, however many activations it missed.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) int {
	now = now.UTC()

	s.mu.Lock()
	var due []*Entry
	for _, name := range s.order {
		e := s.entries[name]
		if !e.Enabled || e.NextRunAt == nil || e.NextRunAt.After(now) {
			continue
		}
		next := e.sched.Next(now)
		e.NextRunAt = &next
		due = append(due, e)
	}
	s.mu.Unlock()

	fired := 0
	for _, e := range due {
		if s.fire(ctx, e, now) {
			fired++
		}
	}
	return fired
}

func (s *Scheduler) fire(ctx context.Context, e *Entry, now time.Time) bool {
	j := e.newJob()
	env, err := s.enqueue.EnqueueTo(ctx, e.Queue, j)
	if err != nil {
		s.logger.Error("cron enqueue error",
			slog.String("cron_name", e.Name),
			slog.String("job_type", fmt.Sprintf("%T", j)),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.mu.Lock()
	e.LastRunAt = &now
	s.mu.Unlock()

	s.logger.Info("cron fired",
		slog.String("cron_name", e.Name),
		slog.String("job_type", fmt.Sprintf("%T", j)),
		slog.String("job_id", env.ID.String()),
	)
	return true
}
