package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/events"
	"github.com/emberlane/backend-shop/internal/queue"
	"github.com/emberlane/backend-shop/internal/store"
)

// OrderEmailPayload is the task body for order notification emails.
type OrderEmailPayload struct {
	OrderID uuid.UUID `json:"orderId"`
	Topic   string    `json:"topic"`
}

// Enqueuer turns order lifecycle events into queued email tasks. It
// implements events.Notifier; enqueue failures are surfaced to the bus,
// which logs and moves on, so email can never fail an order.
type Enqueuer struct {
	Client *asynq.Client
	Log    zerolog.Logger
}

var _ events.Notifier = (*Enqueuer)(nil)

// Notify enqueues an email task for order lifecycle topics and ignores
// everything else.
func (e *Enqueuer) Notify(ctx context.Context, ev store.DomainEvent) error {
	switch ev.Topic {
	case events.TopicOrderCreated, events.TopicOrderShipped,
		events.TopicOrderDelivered, events.TopicOrderCancelled:
	default:
		return nil
	}
	payload, err := json.Marshal(OrderEmailPayload{OrderID: ev.AggregateID, Topic: ev.Topic})
	if err != nil {
		return fmt.Errorf("encode email task: %w", err)
	}
	task := asynq.NewTask(queue.TaskOrderEmail, payload)
	if _, err := e.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue email task: %w", err)
	}
	e.Log.Debug().Str("topic", ev.Topic).Str("order_id", ev.AggregateID.String()).Msg("order email enqueued")
	return nil
}
