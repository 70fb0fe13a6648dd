package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobengine/hook"
	"github.com/xraph/jobengine/job"
)

const tracerName = "github.com/xraph/jobengine"

// Tracing runs each job in a "jobengine.job.execute" span on the global
// TracerProvider. The span carries the job ID, type and queue, the queue
// wait in milliseconds, the executor count and the run status; hook
// failures also name the failing hook.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing on the given tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, env *job.Envelope, next Handler) error {
		start := time.Now()
		attrs := []attribute.KeyValue{
			attribute.String("jobengine.job.id", env.ID.String()),
			attribute.String("jobengine.job.type", env.Name()),
			attribute.String("jobengine.queue", env.Queue),
			attribute.Int64("jobengine.job.queue_wait_ms", env.Waited(start).Milliseconds()),
		}
		if n, ok := Executors(ctx); ok {
			attrs = append(attrs, attribute.Int("jobengine.job.executors", n))
		}
		ctx, span := tracer.Start(ctx, "jobengine.job.execute",
			trace.WithTimestamp(start),
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)

		status := Status(err)
		span.SetAttributes(attribute.String("jobengine.job.status", status))
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return nil
		}
		var herr *hook.Error
		if errors.As(err, &herr) {
			span.SetAttributes(
				attribute.String("jobengine.hook.kind", herr.Kind.String()),
				attribute.String("jobengine.hook.type", herr.HookType.String()),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}
