package orders

import (
	"encoding/json"
	"fmt"
)

// EventType names a push event on the account's private channel.
type EventType string

const (
	EventPendingCreated EventType = "OrderPendingCreated"
	EventOpened         EventType = "OrderOpened"
	EventClosed         EventType = "OrderClosed"
)

func (t EventType) Known() bool {
	return t == EventPendingCreated || t == EventOpened || t == EventClosed
}

// Event is one order lifecycle push carrying the full order.
type Event struct {
	Type  EventType
	Order Order
}

// DecodeEvent accepts either a bare order payload or one wrapped as
// {"order": {...}}.
func DecodeEvent(t EventType, data json.RawMessage) (Event, error) {
	if !t.Known() {
		return Event{}, fmt.Errorf("orders: unknown event %q", t)
	}
	var wrapped struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Order) > 0 && string(wrapped.Order) != "null" {
		data = wrapped.Order
	}
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Event{}, fmt.Errorf("orders: decode %s: %w", t, err)
	}
	return Event{Type: t, Order: o}, nil
}

// ApplyEvent moves an order between buckets the way the backend just did:
// pending-created inserts into pending; opened leaves pending for open;
// closed leaves open (or pending, for a cancellation) for closed.
func (c *Cache) ApplyEvent(ev Event) error {
	if ev.Order.ID == "" {
		return fmt.Errorf("orders: %s event without order id", ev.Type)
	}

	var to Status
	var from []Status
	switch ev.Type {
	case EventPendingCreated:
		to = Pending
	case EventOpened:
		to, from = Open, []Status{Pending}
	case EventClosed:
		to, from = Closed, []Status{Open, Pending}
	default:
		return fmt.Errorf("orders: unknown event %q", ev.Type)
	}

	o := ev.Order
	o.Status = to

	c.mu.Lock()
	changed := []Status{to}
	for _, st := range from {
		if i := indexOf(c.buckets[st], o.ID); i >= 0 {
			c.buckets[st] = append(c.buckets[st][:i:i], c.buckets[st][i+1:]...)
			c.gen[st]++
			changed = append(changed, st)
		}
	}
	if i := indexOf(c.buckets[to], o.ID); i >= 0 {
		c.buckets[to][i] = o
	} else {
		c.buckets[to] = append(c.buckets[to], o)
	}
	c.gen[to]++
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		for _, st := range changed {
			cb(st)
		}
	}
	return nil
}
