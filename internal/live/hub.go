// Package live turns database change notifications into live snapshot feeds.
package live

import (
	"sync"

	"github.com/google/uuid"
)

// UsersTopic is published whenever any user row changes.
const UsersTopic = "users"

// OwnerTopic is published whenever an item or annotation on the owner's list changes.
func OwnerTopic(ownerID uuid.UUID) string {
	return "owner:" + ownerID.String()
}

// Hub fans change signals out to subscribers by topic. Signals carry no payload;
// subscribers re-read what they need. Each subscription buffers one pending
// signal so bursts coalesce and a slow reader never blocks a publisher.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: map[string]map[chan struct{}]struct{}{}}
}

// Subscribe registers interest in a topic. The returned cancel func is safe to
// call more than once and closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	subs := h.topics[topic]
	if subs == nil {
		subs = map[chan struct{}]struct{}{}
		h.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.topics[topic], ch)
			if len(h.topics[topic]) == 0 {
				delete(h.topics, topic)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish signals every subscriber of topic.
func (h *Hub) Publish(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.topics[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// PublishAll signals every subscriber of every topic. Used after the listener
// reconnects, since notifications sent while it was away are lost.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.topics {
		for ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Subscribers returns the number of open subscriptions across all topics.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.topics {
		n += len(subs)
	}
	return n
}
