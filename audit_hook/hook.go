package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/xraph/jobengine/asset"
	"github.com/xraph/jobengine/hook"
)

// Compile-time interface checks.
var (
	_ hook.OnGet[any, any]    = (*Hook)(nil)
	_ hook.OnAdd[any]         = (*Hook)(nil)
	_ hook.OnUpsert[any]      = (*Hook)(nil)
	_ hook.OnUpdate[any]      = (*Hook)(nil)
	_ hook.OnDelete[any, any] = (*Hook)(nil)
	_ hook.OnJobExecute[any]  = (*Hook)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audited operation.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Hook emits an audit event for every asset operation and executor run.
type Hook struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates a Hook that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Hook {
	h := &Hook{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ── Asset hooks ─────────────────────────────────────

// OnGet implements hook.OnGet for every asset type.
func (h *Hook) OnGet(ctx context.Context, key any, a any, found bool) error {
	return h.record(ctx, ActionAssetRead, SeverityInfo, OutcomeSuccess,
		typeName(a), fmt.Sprint(key), CategoryAsset, nil,
		"found", found,
	)
}

// OnAdd implements hook.OnAdd for every asset type.
func (h *Hook) OnAdd(ctx context.Context, a any) error {
	return h.record(ctx, ActionAssetAdded, SeverityInfo, OutcomeSuccess,
		typeName(a), assetKey(a), CategoryAsset, nil,
	)
}

// OnUpsert implements hook.OnUpsert for every asset type.
func (h *Hook) OnUpsert(ctx context.Context, a any) error {
	return h.record(ctx, ActionAssetUpserted, SeverityInfo, OutcomeSuccess,
		typeName(a), assetKey(a), CategoryAsset, nil,
	)
}

// OnUpdate implements hook.OnUpdate for every asset type.
func (h *Hook) OnUpdate(ctx context.Context, a any) error {
	return h.record(ctx, ActionAssetUpdated, SeverityInfo, OutcomeSuccess,
		typeName(a), assetKey(a), CategoryAsset, nil,
	)
}

// OnDelete implements hook.OnDelete for every asset type.
func (h *Hook) OnDelete(ctx context.Context, key any, a any) error {
	return h.record(ctx, ActionAssetDeleted, SeverityWarning, OutcomeSuccess,
		typeName(a), fmt.Sprint(key), CategoryAsset, nil,
	)
}

// ── Job hooks ───────────────────────────────────────

// OnJobExecute implements hook.OnJobExecute for every job type. The
// executor's error is returned unchanged.
func (h *Hook) OnJobExecute(ctx context.Context, j any, next hook.Next) error {
	jobType := typeName(j)
	_ = h.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		jobType, "", CategoryJob, nil,
	)

	start := time.Now()
	err := next(ctx)
	elapsed := time.Since(start)

	if err != nil {
		_ = h.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
			jobType, "", CategoryJob, err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return err
	}
	_ = h.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		jobType, "", CategoryJob, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (h *Hook) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if h.enabled != nil && !h.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := h.recorder.Record(ctx, evt); recErr != nil {
		h.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// assetKey returns the asset's key as text, or "" when it has none.
func assetKey(a any) string {
	k, ok := asset.KeyOf(a)
	if !ok {
		return ""
	}
	return fmt.Sprint(k)
}
