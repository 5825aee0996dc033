package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/events"
	"github.com/emberlane/backend-shop/internal/store"
)

// OrderReader loads orders for notification rendering.
type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	MarkOrderNotified(ctx context.Context, id uuid.UUID, customer, owner bool) error
}

// Mailer consumes queued email tasks and delivers the customer and shop
// owner notifications for an order lifecycle event.
type Mailer struct {
	Store      OrderReader
	Sender     common.EmailSender
	OwnerEmail string
	Log        zerolog.Logger
}

// HandleOrderEmail processes one queued order email task. Returning an
// error makes asynq retry the delivery.
func (m *Mailer) HandleOrderEmail(ctx context.Context, task *asynq.Task) error {
	var payload OrderEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Undecodable payloads will never succeed; drop them.
		m.Log.Error().Err(err).Msg("order email task with bad payload dropped")
		return nil
	}
	o, err := m.Store.GetOrder(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.Log.Error().Str("order_id", payload.OrderID.String()).Msg("order email task for unknown order dropped")
			return nil
		}
		return fmt.Errorf("load order: %w", err)
	}

	var customerSent, ownerSent bool
	if o.CustomerEmail != "" {
		subject, body := customerEmail(o, payload.Topic)
		if err := m.Sender.Send(o.CustomerEmail, subject, body); err != nil {
			return fmt.Errorf("send customer email: %w", err)
		}
		customerSent = true
	}
	if m.OwnerEmail != "" && payload.Topic == events.TopicOrderCreated {
		subject, body := ownerEmail(o)
		if err := m.Sender.Send(m.OwnerEmail, subject, body); err != nil {
			return fmt.Errorf("send owner email: %w", err)
		}
		ownerSent = true
	}
	if customerSent || ownerSent {
		if err := m.Store.MarkOrderNotified(ctx, o.ID, customerSent, ownerSent); err != nil {
			m.Log.Error().Err(err).Str("order_id", o.ID.String()).Msg("mark order notified")
		}
	}
	return nil
}

func customerEmail(o store.Order, topic string) (string, string) {
	short := shortID(o.ID)
	switch topic {
	case events.TopicOrderShipped:
		body := fmt.Sprintf("Good news! Your order #%s is on its way.", short)
		if o.TrackingNumber != "" {
			body += fmt.Sprintf(" Track it with %s (%s).", o.TrackingNumber, o.Carrier)
		}
		return fmt.Sprintf("Your order #%s has shipped", short), body
	case events.TopicOrderDelivered:
		return fmt.Sprintf("Your order #%s was delivered", short),
			fmt.Sprintf("Order #%s has been delivered. Enjoy!", short)
	case events.TopicOrderCancelled:
		return fmt.Sprintf("Your order #%s was cancelled", short),
			fmt.Sprintf("Order #%s has been cancelled. If this is unexpected, please reach out.", short)
	default:
		return fmt.Sprintf("Order confirmation #%s", short),
			fmt.Sprintf("Thanks for your order! We received your payment of %s and are getting #%s ready.",
				o.Total.String(), short)
	}
}

func ownerEmail(o store.Order) (string, string) {
	short := shortID(o.ID)
	return fmt.Sprintf("New order #%s", short),
		fmt.Sprintf("New order #%s for %s (%d item lines) from %s.",
			short, o.Total.String(), len(o.Items), o.CustomerEmail)
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
