package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobengine/job"
)

const meterName = "github.com/xraph/jobengine"

// Metrics records job metrics on the global MeterProvider.
//
//   - jobengine.job.executions: runs by job_type, queue and status
//   - jobengine.job.duration: run time in seconds, same attributes
//   - jobengine.job.queue_wait: seconds between enqueue and run start,
//     by job_type and queue
//   - jobengine.job.executors: executors fanned out per run, by job_type
//
// status is one of the Status* constants.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter is Metrics on the given meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Creation errors come with noop instruments.
	executions, _ := meter.Int64Counter("jobengine.job.executions",
		metric.WithDescription("Job runs by outcome"),
		metric.WithUnit("{execution}"),
	)
	duration, _ := meter.Float64Histogram("jobengine.job.duration",
		metric.WithDescription("Job run time"),
		metric.WithUnit("s"),
	)
	queueWait, _ := meter.Float64Histogram("jobengine.job.queue_wait",
		metric.WithDescription("Time between enqueue and run start"),
		metric.WithUnit("s"),
	)
	fanout, _ := meter.Int64Histogram("jobengine.job.executors",
		metric.WithDescription("Executors run per job"),
		metric.WithUnit("{executor}"),
	)

	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		start := time.Now()
		jobType := attribute.String("job_type", env.Name())
		queue := attribute.String("queue", env.Queue)

		queueWait.Record(ctx, env.Waited(start).Seconds(), metric.WithAttributes(jobType, queue))
		if n, ok := Executors(ctx); ok && n > 0 {
			fanout.Record(ctx, int64(n), metric.WithAttributes(jobType))
		}

		err := next(ctx)

		outcome := metric.WithAttributes(jobType, queue, attribute.String("status", Status(err)))
		duration.Record(ctx, time.Since(start).Seconds(), outcome)
		executions.Add(ctx, 1, outcome)
		return err
	}
}
