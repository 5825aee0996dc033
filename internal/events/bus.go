package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/store"
)

// EventStore persists events before notifiers see them.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (store.DomainEvent, error)
}

// Notifier reacts to a stored event. Notifier failures never fail the
// publishing operation.
type Notifier interface {
	Notify(ctx context.Context, ev store.DomainEvent) error
}

// Bus appends events to the store and fans them out to notifiers.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
	Log       zerolog.Logger
}

// Publish stores the event, then invokes each notifier in order. Notifier
// errors are logged and swallowed so that the triggering operation is never
// rolled back by a side effect.
func (b *Bus) Publish(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error {
	if b == nil || b.Store == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	ev, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, body)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	for _, n := range b.Notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			b.Log.Error().Err(err).Str("topic", topic).Str("aggregate_id", aggregateID.String()).Msg("event notifier failed")
		}
	}
	return nil
}
