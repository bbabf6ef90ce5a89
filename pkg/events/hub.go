package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one governance event pushed to live subscribers.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEvent builds an event with a fresh id and the current timestamp.
func NewEvent(eventType string, data map[string]any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Subscription is one subscriber's bounded event feed. Events arrive on C
// until Unsubscribe closes it.
type Subscription struct {
	ID string
	C  <-chan Event

	ch chan Event
}

// Stats is a snapshot of the hub's counters.
type Stats struct {
	Subscribers uint64 `json:"subscribers"`
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Dropped     uint64 `json:"dropped"`
}

// Hub fans events out to subscribers. It is safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	published uint64
	delivered uint64
	dropped   uint64

	logger *slog.Logger
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[string]*Subscription),
		logger: slog.Default().With("component", "events.hub"),
	}
}

// Subscribe registers a new subscriber with the given channel buffer.
// A non-positive buffer defaults to 64.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	sub := &Subscription{
		ID: uuid.New().String(),
		C:  ch,
		ch: ch,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}

// Publish delivers an event to every subscriber without blocking. A
// subscriber whose buffer is full misses the event.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.published++
	for _, sub := range h.subs {
		select {
		case sub.ch <- e:
			h.delivered++
		default:
			h.dropped++
			h.logger.Debug("event dropped for slow subscriber",
				"subscription_id", sub.ID,
				"event_type", e.Type,
			)
		}
	}
}

// Stats returns a snapshot of the hub's counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{
		Subscribers: uint64(len(h.subs)),
		Published:   h.published,
		Delivered:   h.delivered,
		Dropped:     h.dropped,
	}
}

// Close unsubscribes everyone and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
