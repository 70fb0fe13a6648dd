package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/jobengine/asset"
	"github.com/xraph/jobengine/hook"
)

// Compile-time interface checks.
var (
	_ hook.OnAdd[any]         = (*Broker)(nil)
	_ hook.OnUpsert[any]      = (*Broker)(nil)
	_ hook.OnUpdate[any]      = (*Broker)(nil)
	_ hook.OnDelete[any, any] = (*Broker)(nil)
	_ hook.OnJobExecute[any]  = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the change feed broker. Registered as a hook it receives asset
// and job events and fans them out to subscribers. Reads are not published.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]*Subscriber
	closed      bool

	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		subscribers:    make(map[string]*Subscriber),
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Topics returns the topic registry.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a subscriber on the given topics. A subscriber ID that
// is already in use replaces the earlier subscriber, which is closed.
func (b *Broker) Subscribe(subscriberID string, topics ...string) (*Subscriber, error) {
	for _, topic := range topics {
		if err := ValidateTopic(topic); err != nil {
			return nil, err
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, fmt.Errorf("stream: broker closed")
	}
	prev := b.subscribers[subscriberID]
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers[subscriberID] = sub
	b.mu.Unlock()

	if prev != nil {
		b.topics.UnsubscribeAll(subscriberID)
		prev.Close()
	}
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub, nil
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) error {
	sub, ok := b.GetSubscriber(subscriberID)
	if !ok {
		return fmt.Errorf("stream: unknown subscriber %q", subscriberID)
	}
	for _, topic := range topics {
		if err := ValidateTopic(topic); err != nil {
			return err
		}
	}
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return nil
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	b.mu.Lock()
	sub, ok := b.subscribers[subscriberID]
	delete(b.subscribers, subscriberID)
	b.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subscribers[subscriberID]
	return sub, ok
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	b.mu.Lock()
	count := len(b.subscribers)
	b.mu.Unlock()
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// Close closes every subscriber. Later events are discarded.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subscribers
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	for id, sub := range subs {
		b.topics.UnsubscribeAll(id)
		sub.Close()
	}
	b.logger.Info("stream broker closed", slog.Int("subscribers", len(subs)))
	return nil
}

func (b *Broker) publish(evt *Event) {
	delivered, dropped := b.topics.Broadcast(resolveTopics(evt), evt)
	b.totalPublished.Add(int64(delivered))
	b.totalDropped.Add(int64(dropped))
}

func (b *Broker) marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("stream: marshal event payload",
			slog.String("type", fmt.Sprintf("%T", v)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return data
}

// ── Asset hooks ─────────────────────────────────────

func (b *Broker) publishAsset(typ EventType, key any, a any) {
	t := reflect.TypeOf(a)
	if t == nil {
		return
	}
	data := AssetEventData{AssetType: t.String()}
	if key != nil {
		data.Key = fmt.Sprint(key)
	}
	if typ != EventAssetDeleted {
		data.Asset = b.marshal(a)
	}
	b.publish(&Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Topic:     AssetTopic(data.AssetType),
		Data:      b.marshal(data),
	})
}

func keyOf(a any) any {
	k, _ := asset.KeyOf(a)
	return k
}

// OnAdd implements hook.OnAdd for every asset type.
func (b *Broker) OnAdd(_ context.Context, a any) error {
	b.publishAsset(EventAssetAdded, keyOf(a), a)
	return nil
}

// OnUpsert implements hook.OnUpsert for every asset type.
func (b *Broker) OnUpsert(_ context.Context, a any) error {
	b.publishAsset(EventAssetUpserted, keyOf(a), a)
	return nil
}

// OnUpdate implements hook.OnUpdate for every asset type.
func (b *Broker) OnUpdate(_ context.Context, a any) error {
	b.publishAsset(EventAssetUpdated, keyOf(a), a)
	return nil
}

// OnDelete implements hook.OnDelete for every asset type.
func (b *Broker) OnDelete(_ context.Context, key any, a any) error {
	b.publishAsset(EventAssetDeleted, key, a)
	return nil
}

// ── Job hooks ───────────────────────────────────────

// OnJobExecute implements hook.OnJobExecute for every job type. It
// publishes job.started before the executor runs and job.completed or
// job.failed after it.
func (b *Broker) OnJobExecute(ctx context.Context, j any, next hook.Next) error {
	jobType := reflect.TypeOf(j).String()
	topic := JobTopic(jobType)
	b.publish(&Event{
		Type:      EventJobStarted,
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Data:      b.marshal(JobEventData{JobType: jobType}),
	})

	start := time.Now()
	err := next(ctx)
	data := JobEventData{JobType: jobType, ElapsedMs: time.Since(start).Milliseconds()}
	typ := EventJobCompleted
	if err != nil {
		typ = EventJobFailed
		data.Error = err.Error()
	}
	b.publish(&Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Topic:     topic,
		Data:      b.marshal(data),
	})
	return err
}
