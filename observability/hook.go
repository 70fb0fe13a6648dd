package observability

import (
	"context"
	"reflect"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobengine/hook"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/xraph/jobengine/observability"

// Compile-time interface checks.
var (
	_ hook.OnGet[any, any]    = (*Hook)(nil)
	_ hook.OnAdd[any]         = (*Hook)(nil)
	_ hook.OnUpsert[any]      = (*Hook)(nil)
	_ hook.OnUpdate[any]      = (*Hook)(nil)
	_ hook.OnDelete[any, any] = (*Hook)(nil)
	_ hook.OnJobExecute[any]  = (*Hook)(nil)
)

// Hook records lifecycle metrics for every asset type and job type.
//
// Instruments:
//   - jobengine.asset.operations (Int64Counter): asset operations, with
//     attributes: operation, asset_type, and found for get
//   - jobengine.executor.runs (Int64Counter): executor runs, with
//     attributes: job_type, status ("ok" or "error")
//   - jobengine.executor.duration (Float64Histogram): executor run time in
//     seconds, with attributes: job_type, status
type Hook struct {
	assetOps metric.Int64Counter
	runs     metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHook creates a Hook using the global OTel MeterProvider.
func NewHook() *Hook {
	return NewHookWithMeter(otel.Meter(meterName))
}

// NewHookWithMeter creates a Hook using the provided meter.
func NewHookWithMeter(meter metric.Meter) *Hook {
	// OTel returns noop instruments alongside any creation error.
	assetOps, _ := meter.Int64Counter(
		"jobengine.asset.operations",
		metric.WithDescription("Total number of asset set operations"),
		metric.WithUnit("{operation}"),
	)
	runs, _ := meter.Int64Counter(
		"jobengine.executor.runs",
		metric.WithDescription("Total number of executor runs"),
		metric.WithUnit("{run}"),
	)
	duration, _ := meter.Float64Histogram(
		"jobengine.executor.duration",
		metric.WithDescription("Duration of executor runs in seconds"),
		metric.WithUnit("s"),
	)
	return &Hook{assetOps: assetOps, runs: runs, duration: duration}
}

// ── Asset hooks ─────────────────────────────────────

// OnGet implements hook.OnGet for every asset type.
func (h *Hook) OnGet(ctx context.Context, _ any, asset any, found bool) error {
	h.assetOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", hook.KindGet.String()),
		attribute.String("asset_type", typeName(asset)),
		attribute.String("found", strconv.FormatBool(found)),
	))
	return nil
}

// OnAdd implements hook.OnAdd for every asset type.
func (h *Hook) OnAdd(ctx context.Context, asset any) error {
	h.recordAsset(ctx, hook.KindAdd, asset)
	return nil
}

// OnUpsert implements hook.OnUpsert for every asset type.
func (h *Hook) OnUpsert(ctx context.Context, asset any) error {
	h.recordAsset(ctx, hook.KindUpsert, asset)
	return nil
}

// OnUpdate implements hook.OnUpdate for every asset type.
func (h *Hook) OnUpdate(ctx context.Context, asset any) error {
	h.recordAsset(ctx, hook.KindUpdate, asset)
	return nil
}

// OnDelete implements hook.OnDelete for every asset type.
func (h *Hook) OnDelete(ctx context.Context, _ any, asset any) error {
	h.recordAsset(ctx, hook.KindDelete, asset)
	return nil
}

func (h *Hook) recordAsset(ctx context.Context, kind hook.Kind, asset any) {
	h.assetOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", kind.String()),
		attribute.String("asset_type", typeName(asset)),
	))
}

// ── Job hooks ───────────────────────────────────────

// OnJobExecute implements hook.OnJobExecute for every job type.
func (h *Hook) OnJobExecute(ctx context.Context, j any, next hook.Next) error {
	start := time.Now()
	err := next(ctx)
	elapsed := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("job_type", typeName(j)),
		attribute.String("status", status),
	)
	h.runs.Add(ctx, 1, attrs)
	h.duration.Record(ctx, elapsed, attrs)
	return err
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
