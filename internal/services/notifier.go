package services

import (
	"context"

	"go.uber.org/zap"
)

// Event types sent to the notification collaborator.
const (
	EventOrderCreated    = "order_created"
	EventPaymentReceived = "payment_received"
	EventDeliveryStarted = "delivery_started"
	EventDriverNearby    = "driver_nearby"
	EventDelivered       = "delivered"
)

// Event is a notification request produced by a state-mutating operation.
// Operations return their events as an explicit slice instead of firing side
// effects inline; the caller decides when and how to dispatch them.
type Event struct {
	Type    string         `json:"type"`
	OrderID string         `json:"order_id"`
	UserID  string         `json:"user_id,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Notifier delivers events to the external notification service.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Dispatch sends events fire-and-forget: delivery failure is logged and never
// propagated, the triggering operation has already committed.
func Dispatch(ctx context.Context, n Notifier, log *zap.SugaredLogger, events []Event) {
	if n == nil {
		return
	}
	for _, e := range events {
		if err := n.Notify(ctx, e); err != nil {
			log.Warnw("failed to publish notification", "type", e.Type, "order_id", e.OrderID, "error", err)
		}
	}
}
