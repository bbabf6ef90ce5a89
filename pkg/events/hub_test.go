package events

import (
	"testing"
)

func TestHub_PublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Close()

	s1 := h.Subscribe(4)
	s2 := h.Subscribe(4)

	h.Publish(NewEvent("trust_violation_critical", map[string]any{"agent_id": "a"}))

	for _, sub := range []*Subscription{s1, s2} {
		select {
		case e := <-sub.C:
			if e.Type != "trust_violation_critical" {
				t.Errorf("event type = %q, want trust_violation_critical", e.Type)
			}
			if e.ID == "" || e.Timestamp.IsZero() {
				t.Error("event missing id or timestamp")
			}
		default:
			t.Error("subscriber received no event")
		}
	}
}

func TestHub_SlowSubscriberDropsNotBlocks(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := h.Subscribe(1)

	// Second publish overflows the buffer; it must not block.
	h.Publish(NewEvent("agent_error", nil))
	h.Publish(NewEvent("agent_error", nil))

	stats := h.Stats()
	if stats.Delivered != 1 {
		t.Errorf("Delivered = %d, want 1", stats.Delivered)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}

	// The buffered event is still readable.
	select {
	case <-sub.C:
	default:
		t.Error("buffered event not readable")
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := h.Subscribe(1)
	h.Unsubscribe(sub.ID)

	if _, open := <-sub.C; open {
		t.Error("channel still open after Unsubscribe")
	}

	// Publishing after unsubscribe reaches nobody and does not panic.
	h.Publish(NewEvent("system_error", nil))

	if got := h.Stats().Subscribers; got != 0 {
		t.Errorf("Subscribers = %d, want 0", got)
	}
}

func TestHub_CloseShutsDownAllSubscribers(t *testing.T) {
	h := NewHub()
	s1 := h.Subscribe(1)
	s2 := h.Subscribe(1)

	h.Close()

	for _, sub := range []*Subscription{s1, s2} {
		if _, open := <-sub.C; open {
			t.Error("channel still open after Close")
		}
	}

	// Idempotent.
	h.Close()
	h.Publish(NewEvent("system_error", nil))
	if got := h.Stats().Published; got != 0 {
		t.Errorf("Published after close = %d, want 0", got)
	}
}
