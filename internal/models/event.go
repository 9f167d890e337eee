package models

import (
	"time"
)

const (
	EventOrderCreated     = "order.created"
	EventOrderUpdated     = "order.updated"
	EventOrderDeleted     = "order.deleted"
	EventOrdersRenumbered = "orders.renumbered"
)

// OrderEvent is the envelope published to the message bus.
type OrderEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	OrderID    int64     `json:"order_id,omitempty"`
	ActorID    int64     `json:"actor_id,omitempty"`
	Payload    any       `json:"payload,omitempty"`
}
