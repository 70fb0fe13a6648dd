// Package stream provides a real-time change feed for asset and job
// events. The Broker is an open hook: registered on an engine it sees
// every asset mutation and every executor run, and fans them out to
// subscribers via topic-based pub/sub.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of change.
type EventType string

const (
	// Asset events.
	EventAssetAdded    EventType = "asset.added"
	EventAssetUpserted EventType = "asset.upserted"
	EventAssetUpdated  EventType = "asset.updated"
	EventAssetDeleted  EventType = "asset.deleted"

	// Job events.
	EventJobStarted   EventType = "job.started"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the change.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the entity topic this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// AssetEventData is the payload for asset events.
type AssetEventData struct {
	AssetType string          `json:"asset_type"`
	Key       string          `json:"key,omitempty"`
	Asset     json.RawMessage `json:"asset,omitempty"`
}

// JobEventData is the payload for job events.
type JobEventData struct {
	JobType   string `json:"job_type"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
