package stream

import (
	"fmt"
	"strings"
	"sync"
)

// Topic names follow a pattern:
//
//	asset:<type>   events for one asset type
//	job:<type>     events for one job type
//	assets         all asset events
//	jobs           all job events
//	firehose       everything

const (
	TopicAssets   = "assets"
	TopicJobs     = "jobs"
	TopicFirehose = "firehose"
)

// AssetTopic returns the topic name for an asset type, as printed by
// reflect.Type.String.
func AssetTopic(assetType string) string { return "asset:" + assetType }

// JobTopic returns the topic name for a job type.
func JobTopic(jobType string) string { return "job:" + jobType }

// TopicRegistry manages subscriber sets per topic.
// It is safe for concurrent use.
type TopicRegistry struct {
	mu     sync.RWMutex
	topics map[string]map[string]*Subscriber // topic → subscriberID → subscriber
}

// NewTopicRegistry creates an empty topic registry.
func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{
		topics: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe adds a subscriber to a topic, creating the topic on first use.
func (tr *TopicRegistry) Subscribe(topic string, sub *Subscriber) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	subs, ok := tr.topics[topic]
	if !ok {
		subs = make(map[string]*Subscriber)
		tr.topics[topic] = subs
	}
	subs[sub.ID()] = sub
	sub.addTopic(topic)
}

// Unsubscribe removes a subscriber from a topic. Empty topics are dropped.
func (tr *TopicRegistry) Unsubscribe(topic, subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.unsubscribeLocked(topic, subscriberID)
}

// UnsubscribeAll removes a subscriber from all topics.
func (tr *TopicRegistry) UnsubscribeAll(subscriberID string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for topic := range tr.topics {
		tr.unsubscribeLocked(topic, subscriberID)
	}
}

func (tr *TopicRegistry) unsubscribeLocked(topic, subscriberID string) {
	subs, ok := tr.topics[topic]
	if !ok {
		return
	}
	if sub, exists := subs[subscriberID]; exists {
		sub.removeTopic(topic)
		delete(subs, subscriberID)
	}
	if len(subs) == 0 {
		delete(tr.topics, topic)
	}
}

// Broadcast sends an event to every subscriber on any of topics, once per
// subscriber. It returns how many subscribers received the event and how
// many dropped it for lack of credits or buffer space.
func (tr *TopicRegistry) Broadcast(topics []string, evt *Event) (delivered, dropped int) {
	tr.mu.RLock()
	seen := make(map[string]*Subscriber)
	for _, topic := range topics {
		for id, sub := range tr.topics[topic] {
			seen[id] = sub
		}
	}
	tr.mu.RUnlock()

	for _, sub := range seen {
		switch sub.send(evt) {
		case sendDelivered:
			delivered++
		case sendDropped:
			dropped++
		}
	}
	return delivered, dropped
}

// TopicCount returns the number of active topics.
func (tr *TopicRegistry) TopicCount() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics)
}

// SubscriberCount returns the number of subscribers on a topic.
func (tr *TopicRegistry) SubscriberCount(topic string) int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.topics[topic])
}

// resolveTopics returns every topic an event is published to.
func resolveTopics(evt *Event) []string {
	topics := []string{TopicFirehose}
	switch {
	case strings.HasPrefix(string(evt.Type), "asset."):
		topics = append(topics, TopicAssets)
	case strings.HasPrefix(string(evt.Type), "job."):
		topics = append(topics, TopicJobs)
	}
	if evt.Topic != "" {
		topics = append(topics, evt.Topic)
	}
	return topics
}

// ParseTopicEntity splits an entity topic into its kind and type name.
// "asset:*voxel.Shape" returns ("asset", "*voxel.Shape"). Global topics
// return ("", "").
func ParseTopicEntity(topic string) (entity, name string) {
	entity, name, ok := strings.Cut(topic, ":")
	if !ok {
		return "", ""
	}
	return entity, name
}

// ValidateTopic checks whether a topic string is valid.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicAssets, TopicJobs, TopicFirehose:
		return nil
	}

	entity, name := ParseTopicEntity(topic)
	if entity == "" || name == "" {
		return fmt.Errorf("stream: invalid topic %q", topic)
	}
	switch entity {
	case "asset", "job":
		return nil
	default:
		return fmt.Errorf("stream: unknown topic entity %q", entity)
	}
}
