package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/store"
)

// ErrInvalidItem rejects cart payloads with unknown products or bad
// quantities.
var ErrInvalidItem = errors.New("invalid cart item")

// Shortage describes one product without enough stock to cover a cart.
type Shortage struct {
	ProductID uuid.UUID `json:"productId"`
	Name      string    `json:"name"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// InsufficientInventoryError reports every shortage found during cart
// validation, not just the first.
type InsufficientInventoryError struct {
	Shortages []Shortage
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for %d item(s)", len(e.Shortages))
}

// AppError converts the shortage list into the API error envelope.
func (e *InsufficientInventoryError) AppError() *common.AppError {
	return &common.AppError{
		Code:       common.CodeInsufficientInventory,
		Message:    e.Error(),
		HTTPStatus: http.StatusBadRequest,
		Err:        e,
		Details:    e.Shortages,
	}
}

// CartStore is the persistence surface the cart service needs.
type CartStore interface {
	GetCartByUser(ctx context.Context, userID uuid.UUID) (store.Cart, error)
	GetCartByGuest(ctx context.Context, guestID string) (store.Cart, error)
	CreateCart(ctx context.Context, userID *uuid.UUID, guestID *string) (store.Cart, error)
	ReplaceCartItems(ctx context.Context, cartID uuid.UUID, items []store.CartItem) error
	AppendCartItems(ctx context.Context, cartID uuid.UUID, items []store.CartItem) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	TransferCartToUser(ctx context.Context, cartID, userID uuid.UUID) error
}

// ProductReader resolves products for validation.
type ProductReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
}

// Service manages guest and user carts.
type Service struct {
	Store    CartStore
	Products ProductReader
	Log      zerolog.Logger
}

// Owner identifies exactly one cart owner.
type Owner struct {
	UserID  *uuid.UUID
	GuestID string
}

func (s *Service) load(ctx context.Context, owner Owner) (store.Cart, error) {
	if owner.UserID != nil {
		return s.Store.GetCartByUser(ctx, *owner.UserID)
	}
	return s.Store.GetCartByGuest(ctx, owner.GuestID)
}

// GetOrCreate loads the owner's cart, creating an empty one on first use.
func (s *Service) GetOrCreate(ctx context.Context, owner Owner) (store.Cart, error) {
	c, err := s.load(ctx, owner)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var guestID *string
	if owner.UserID == nil {
		guestID = &owner.GuestID
	}
	created, err := s.Store.CreateCart(ctx, owner.UserID, guestID)
	if err != nil {
		return store.Cart{}, fmt.Errorf("create cart: %w", err)
	}
	return created, nil
}

// Replace overwrites the owner's cart with the provided items after checking
// each product exists and has a positive quantity.
func (s *Service) Replace(ctx context.Context, owner Owner, items []store.CartItem) (store.Cart, error) {
	for _, it := range items {
		if it.Qty < 1 {
			return store.Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidItem)
		}
		if _, err := s.Products.GetProduct(ctx, it.ProductID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Cart{}, fmt.Errorf("%w: unknown product %s", ErrInvalidItem, it.ProductID)
			}
			return store.Cart{}, fmt.Errorf("resolve product: %w", err)
		}
	}
	c, err := s.GetOrCreate(ctx, owner)
	if err != nil {
		return store.Cart{}, err
	}
	if err := s.Store.ReplaceCartItems(ctx, c.ID, items); err != nil {
		return store.Cart{}, fmt.Errorf("replace cart items: %w", err)
	}
	c.Items = items
	return c, nil
}

// Merge folds a guest cart into the authenticated user's cart by
// concatenating the guest lines after the user's, then deletes the guest
// cart. No quantity consolidation happens here; duplicate lines survive
// until checkout prices them.
func (s *Service) Merge(ctx context.Context, userID uuid.UUID, guestID string) (store.Cart, error) {
	guest, err := s.Store.GetCartByGuest(ctx, guestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.GetOrCreate(ctx, Owner{UserID: &userID})
		}
		return store.Cart{}, fmt.Errorf("load guest cart: %w", err)
	}

	user, err := s.Store.GetCartByUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		// No user cart yet; re-own the guest cart wholesale.
		if err := s.Store.TransferCartToUser(ctx, guest.ID, userID); err != nil {
			return store.Cart{}, fmt.Errorf("transfer guest cart: %w", err)
		}
		return s.Store.GetCartByUser(ctx, userID)
	}
	if err != nil {
		return store.Cart{}, fmt.Errorf("load user cart: %w", err)
	}

	if len(guest.Items) > 0 {
		if err := s.Store.AppendCartItems(ctx, user.ID, guest.Items); err != nil {
			return store.Cart{}, fmt.Errorf("append guest items: %w", err)
		}
	}
	if err := s.Store.DeleteCart(ctx, guest.ID); err != nil {
		return store.Cart{}, fmt.Errorf("delete guest cart: %w", err)
	}
	return s.Store.GetCartByUser(ctx, userID)
}

// Validate checks every cart line against current inventory and reports all
// shortages together. A nil return means the cart is currently satisfiable;
// stock can still move before payment confirms.
func (s *Service) Validate(ctx context.Context, items []store.CartItem) error {
	var shortages []Shortage
	for _, it := range items {
		p, err := s.Products.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				shortages = append(shortages, Shortage{ProductID: it.ProductID, Requested: it.Qty, Available: 0})
				continue
			}
			return fmt.Errorf("resolve product: %w", err)
		}
		if p.Inventory < it.Qty {
			shortages = append(shortages, Shortage{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: it.Qty,
				Available: p.Inventory,
			})
		}
	}
	if len(shortages) > 0 {
		return &InsufficientInventoryError{Shortages: shortages}
	}
	return nil
}
