package jobengine

import "time"

// DefaultQueueName is the queue name used when a caller omits one.
const DefaultQueueName = "main"

// Config holds configuration for an engine.
type Config struct {
	// DefaultQueue is the queue name used by Enqueue when no name is given.
	DefaultQueue string `yaml:"default_queue"`

	// Queues is the list of queue names the worker pool consumes.
	Queues []string `yaml:"queues"`

	// Concurrency is the number of consumers per queue. Values above 1
	// give up per-queue ordering.
	Concurrency int `yaml:"concurrency"`

	// JobTimeout bounds each job's execution. Zero means no limit.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// ShutdownTimeout is the maximum time to wait for workers to finish
	// their current job on Stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is either "json" or "text".
	LogFormat string `yaml:"log_format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultQueue:    DefaultQueueName,
		Queues:          []string{DefaultQueueName},
		Concurrency:     1,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}
