package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/events"
	"github.com/emberlane/backend-shop/internal/store"
)

var (
	// ErrNotFound is returned when an order does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store is the subset of persistence the order service needs.
type Store interface {
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrders(ctx context.Context, params store.ListOrdersParams) ([]store.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status, trackingNumber, carrier string) (store.Order, error)
}

// Service exposes order reads for customers and lifecycle management for
// admins.
type Service struct {
	Store Store
	Bus   *events.Bus
	Log   zerolog.Logger
}

// ListForUser returns the caller's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]store.Order, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("order service not initialised")
	}
	return s.Store.ListOrders(ctx, store.ListOrdersParams{
		UserID: &userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
}

// GetForUser fetches one order, hiding orders owned by anyone else behind
// ErrNotFound.
func (s *Service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (store.Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, fmt.Errorf("get order: %w", err)
	}
	if o.UserID == nil || *o.UserID != userID {
		return store.Order{}, ErrNotFound
	}
	return o, nil
}

// List returns orders across all customers. Admin only.
func (s *Service) List(ctx context.Context, params store.ListOrdersParams) ([]store.Order, error) {
	return s.Store.ListOrders(ctx, params)
}

// Get fetches any order by id. Admin only.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (store.Order, error) {
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// UpdateStatus moves an order through its lifecycle, optionally attaching
// tracking metadata, and publishes the matching lifecycle event.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, rawStatus, trackingNumber, carrier string) (store.Order, error) {
	next, err := ParseStatus(rawStatus)
	if err != nil {
		return store.Order{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	current, err := s.Get(ctx, orderID)
	if err != nil {
		return store.Order{}, err
	}
	from := Status(current.Status)
	if !CanTransition(from, next) {
		return store.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}
	updated, err := s.Store.UpdateOrderStatus(ctx, orderID, string(next), trackingNumber, carrier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, ErrNotFound
		}
		return store.Order{}, fmt.Errorf("update order status: %w", err)
	}
	if topic := events.TopicForStatus(string(next)); topic != "" && s.Bus != nil {
		if err := s.Bus.Publish(ctx, topic, updated.ID, updated); err != nil {
			s.Log.Error().Err(err).Str("order_id", updated.ID.String()).Str("topic", topic).Msg("publish order lifecycle event")
		}
	}
	return updated, nil
}
