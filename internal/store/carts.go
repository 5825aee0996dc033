package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/google/uuid"
)

// Cart belongs to exactly one of an authenticated user or an anonymous
// guest session. Items are unpriced references; prices are resolved from
// the product records at checkout.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	GuestID   *string    `json:"-"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// CartItem is a product reference plus quantity.
type CartItem struct {
	ProductID uuid.UUID `json:"productId"`
	Qty       int       `json:"quantity"`
}

func (s *Store) loadCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, qty FROM cart_items
		WHERE cart_id = $1 ORDER BY created_at`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItem
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) getCart(ctx context.Context, where string, arg any) (Cart, error) {
	var c Cart
	row := s.Pool.QueryRow(ctx, `
		SELECT id, user_id, guest_id, created_at, updated_at
		FROM carts WHERE `+where, arg)
	if err := row.Scan(&c.ID, &c.UserID, &c.GuestID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Cart{}, notFound(err)
	}
	items, err := s.loadCartItems(ctx, c.ID)
	if err != nil {
		return Cart{}, err
	}
	c.Items = items
	return c, nil
}

// GetCartByUser loads the cart owned by the given user.
func (s *Store) GetCartByUser(ctx context.Context, userID uuid.UUID) (Cart, error) {
	return s.getCart(ctx, `user_id = $1`, userID)
}

// GetCartByGuest loads the cart owned by the given guest session.
func (s *Store) GetCartByGuest(ctx context.Context, guestID string) (Cart, error) {
	return s.getCart(ctx, `guest_id = $1`, guestID)
}

// CreateCart creates an empty cart for exactly one owner.
func (s *Store) CreateCart(ctx context.Context, userID *uuid.UUID, guestID *string) (Cart, error) {
	var c Cart
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO carts (user_id, guest_id) VALUES ($1, $2)
		RETURNING id, user_id, guest_id, created_at, updated_at`, userID, guestID)
	if err := row.Scan(&c.ID, &c.UserID, &c.GuestID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Cart{}, err
	}
	return c, nil
}

// ReplaceCartItems swaps the full item list of a cart.
func (s *Store) ReplaceCartItems(ctx context.Context, cartID uuid.UUID, items []CartItem) error {
	return s.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return err
		}
		for _, it := range items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_items (cart_id, product_id, qty)
				VALUES ($1, $2, $3)`, cartID, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
		return err
	})
}

// AppendCartItems adds items to a cart as separate lines, preserving order.
func (s *Store) AppendCartItems(ctx context.Context, cartID uuid.UUID, items []CartItem) error {
	return s.InTx(ctx, func(tx pgx.Tx) error {
		for _, it := range items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_items (cart_id, product_id, qty)
				VALUES ($1, $2, $3)`, cartID, it.ProductID, it.Qty); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
		return err
	})
}

// DeleteCart removes a cart and its items.
func (s *Store) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

// TransferCartToUser re-owns a guest cart to an authenticated user.
func (s *Store) TransferCartToUser(ctx context.Context, cartID, userID uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE carts SET user_id = $2, guest_id = NULL, updated_at = now()
		WHERE id = $1`, cartID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EmptyCart removes all items from a cart. Called when an order is finalised.
func (s *Store) EmptyCart(ctx context.Context, cartID uuid.UUID) error {
	_, err := s.Pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}
