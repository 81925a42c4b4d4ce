package sync

import (
	"sync"
	"time"
)

// Event types published by the engine.
const (
	EventProjectSynced  = "project_synced"
	EventProjectRemoved = "project_removed"
	EventBatchComplete  = "batch_complete"
	EventSourcesChanged = "sources_changed"
)

// Event is one engine notification delivered to subscribers.
type Event struct {
	Type      string    `json:"type"`
	Project   string    `json:"project,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans engine events out to subscribers. Publish never blocks: a
// subscriber that falls behind loses events rather than stalling the engine.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called to release the subscription; the channel is closed afterwards.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, 64)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping it for subscribers
// whose buffer is full.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
