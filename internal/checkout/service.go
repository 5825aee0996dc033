package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/emberlane/backend-shop/internal/cart"
	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/obs"
	"github.com/emberlane/backend-shop/internal/payment"
	"github.com/emberlane/backend-shop/internal/pricing"
	"github.com/emberlane/backend-shop/internal/store"
)

// ProductReader resolves catalog entries for server-side pricing.
type ProductReader interface {
	GetProduct(ctx context.Context, id uuid.UUID) (store.Product, error)
}

// Service prices the cart from the catalog and opens a hosted payment
// session. Client-supplied prices are never trusted; the catalog is the only
// pricing source.
type Service struct {
	Carts      *cart.Service
	Products   ProductReader
	Provider   payment.Provider
	Currency   string
	TaxRateBPS int
	SuccessURL string
	CancelURL  string
	Log        zerolog.Logger
}

// Result is the checkout response: where to send the shopper plus the
// derived financial preview. The preview is advisory; the webhook recomputes
// the authoritative figures from the session metadata.
type Result struct {
	SessionID string             `json:"sessionId"`
	URL       string             `json:"url"`
	Summary   pricing.Financials `json:"summary"`
}

// Start validates the owner's cart, derives the financial preview, and
// creates the payment session with the full item snapshot in its metadata.
func (s *Service) Start(ctx context.Context, owner cart.Owner, customerEmail string) (Result, error) {
	c, err := s.Carts.GetOrCreate(ctx, owner)
	if err != nil {
		return Result{}, err
	}
	if len(c.Items) == 0 {
		return Result{}, common.NewAppError(common.CodeEmptyOrder, "cart is empty", http.StatusBadRequest, nil)
	}

	items, err := s.priceItems(ctx, c.Items)
	if err != nil {
		return Result{}, err
	}
	if err := s.Carts.Validate(ctx, c.Items); err != nil {
		var inv *cart.InsufficientInventoryError
		if errors.As(err, &inv) {
			s.sessionResult("insufficient_inventory")
			return Result{}, inv.AppError()
		}
		return Result{}, err
	}

	var subtotal money.Money
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.MulQty(it.Qty))
	}
	subtotal = subtotal.Round2()
	shipping := pricing.ShippingQuote(subtotal, pricing.ItemCount(items))
	tax := s.taxOn(subtotal)

	fin, err := pricing.Derive(items, shipping, tax)
	if err != nil {
		return Result{}, common.NewAppError(common.CodeValidation, err.Error(), http.StatusBadRequest, err)
	}

	req := payment.SessionRequest{
		Items:         items,
		ShippingCost:  shipping,
		Tax:           tax,
		Currency:      s.Currency,
		CustomerEmail: customerEmail,
		CartID:        c.ID.String(),
		SuccessURL:    s.SuccessURL,
		CancelURL:     s.CancelURL,
	}
	if owner.UserID != nil {
		req.UserID = owner.UserID.String()
	}
	session, err := s.Provider.CreateSession(ctx, req)
	if err != nil {
		s.sessionResult("provider_error")
		return Result{}, fmt.Errorf("create payment session: %w", err)
	}
	s.sessionResult("created")
	s.Log.Info().
		Str("session_id", session.ID).
		Str("cart_id", c.ID.String()).
		Str("total", fin.Total.String()).
		Msg("checkout session created")

	return Result{SessionID: session.ID, URL: session.URL, Summary: fin}, nil
}

// priceItems turns cart lines into priced line items using current catalog
// prices and costs.
func (s *Service) priceItems(ctx context.Context, cartItems []store.CartItem) ([]pricing.LineItem, error) {
	items := make([]pricing.LineItem, 0, len(cartItems))
	for _, ci := range cartItems {
		p, err := s.Products.GetProduct(ctx, ci.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, common.NewAppError(common.CodeValidation,
					fmt.Sprintf("product %s is no longer available", ci.ProductID), http.StatusBadRequest, err)
			}
			return nil, fmt.Errorf("resolve product: %w", err)
		}
		items = append(items, pricing.LineItem{
			ProductID: p.ID.String(),
			Name:      p.Name,
			Qty:       ci.Qty,
			UnitPrice: p.Price,
			UnitCost:  p.MaterialCost,
		})
	}
	return items, nil
}

func (s *Service) taxOn(subtotal money.Money) money.Money {
	if s.TaxRateBPS <= 0 {
		return money.Zero
	}
	rate := decimal.New(int64(s.TaxRateBPS), -4)
	return subtotal.MulRate(rate).Round2()
}

func (s *Service) sessionResult(result string) {
	if obs.CheckoutSessionsTotal != nil {
		obs.CheckoutSessionsTotal.WithLabelValues(result).Inc()
	}
}

// normalizeEmail lowercases and trims a customer-supplied address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
