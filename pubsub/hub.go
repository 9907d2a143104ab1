// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package pubsub fans change notifications out to subscribers of a topic.
//
// Notifications carry no payload: a subscriber that is told its topic
// changed re-reads the state it cares about. Each subscriber channel holds
// at most one pending notification, so bursts coalesce and a slow reader
// never blocks Publish.
package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

type Hub struct {
	mu     sync.Mutex
	topics map[string]map[string]chan struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[string]chan struct{})}
}

// Subscription is one listener on one topic.
type Subscription struct {
	ID     string
	Topic  string
	C      <-chan struct{}
	cancel func()
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.cancel()
}

func (h *Hub) Subscribe(topic string) *Subscription {
	id := uuid.NewString()
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[string]chan struct{})
		h.topics[topic] = subs
	}
	subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return &Subscription{
		ID:    id,
		Topic: topic,
		C:     ch,
		cancel: func() {
			once.Do(func() {
				h.mu.Lock()
				defer h.mu.Unlock()
				delete(h.topics[topic], id)
				if len(h.topics[topic]) == 0 {
					delete(h.topics, topic)
				}
			})
		},
	}
}

// Publish notifies every subscriber of topic and returns how many there were.
func (h *Hub) Publish(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.topics[topic]
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
			// already pending
		}
	}
	return len(subs)
}

// Count returns the number of subscribers of topic.
func (h *Hub) Count(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
