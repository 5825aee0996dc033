package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/cart"
	"github.com/emberlane/backend-shop/internal/checkout"
	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/payment"
	"github.com/emberlane/backend-shop/internal/store"
)

type fakeCartStore struct {
	carts map[uuid.UUID]store.Cart
}

func (f *fakeCartStore) GetCartByUser(_ context.Context, userID uuid.UUID) (store.Cart, error) {
	for _, c := range f.carts {
		if c.UserID != nil && *c.UserID == userID {
			return c, nil
		}
	}
	return store.Cart{}, store.ErrNotFound
}

func (f *fakeCartStore) GetCartByGuest(_ context.Context, guestID string) (store.Cart, error) {
	for _, c := range f.carts {
		if c.GuestID != nil && *c.GuestID == guestID {
			return c, nil
		}
	}
	return store.Cart{}, store.ErrNotFound
}

func (f *fakeCartStore) CreateCart(_ context.Context, userID *uuid.UUID, guestID *string) (store.Cart, error) {
	c := store.Cart{ID: uuid.New(), UserID: userID, GuestID: guestID}
	f.carts[c.ID] = c
	return c, nil
}

func (f *fakeCartStore) ReplaceCartItems(_ context.Context, cartID uuid.UUID, items []store.CartItem) error {
	c := f.carts[cartID]
	c.Items = items
	f.carts[cartID] = c
	return nil
}

func (f *fakeCartStore) AppendCartItems(_ context.Context, cartID uuid.UUID, items []store.CartItem) error {
	c := f.carts[cartID]
	c.Items = append(c.Items, items...)
	f.carts[cartID] = c
	return nil
}

func (f *fakeCartStore) DeleteCart(_ context.Context, cartID uuid.UUID) error {
	delete(f.carts, cartID)
	return nil
}

func (f *fakeCartStore) TransferCartToUser(_ context.Context, cartID, userID uuid.UUID) error {
	c := f.carts[cartID]
	c.UserID = &userID
	c.GuestID = nil
	f.carts[cartID] = c
	return nil
}

type fakeProducts struct {
	products map[uuid.UUID]store.Product
}

func (f *fakeProducts) GetProduct(_ context.Context, id uuid.UUID) (store.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return store.Product{}, store.ErrNotFound
	}
	return p, nil
}

type fakeProvider struct {
	lastRequest payment.SessionRequest
	err         error
}

func (f *fakeProvider) CreateSession(_ context.Context, req payment.SessionRequest) (payment.CheckoutSession, error) {
	f.lastRequest = req
	if f.err != nil {
		return payment.CheckoutSession{}, f.err
	}
	return payment.CheckoutSession{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func (f *fakeProvider) VerifyWebhook(*http.Request, []byte) (payment.WebhookResult, error) {
	return payment.WebhookResult{}, errors.New("not used")
}

func newCheckout(taxBPS int, products ...store.Product) (*checkout.Service, *fakeCartStore, *fakeProvider) {
	cs := &fakeCartStore{carts: map[uuid.UUID]store.Cart{}}
	ps := &fakeProducts{products: map[uuid.UUID]store.Product{}}
	for _, p := range products {
		ps.products[p.ID] = p
	}
	provider := &fakeProvider{}
	svc := &checkout.Service{
		Carts:      &cart.Service{Store: cs, Products: ps, Log: zerolog.Nop()},
		Products:   ps,
		Provider:   provider,
		Currency:   "usd",
		TaxRateBPS: taxBPS,
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cart",
		Log:        zerolog.Nop(),
	}
	return svc, cs, provider
}

func catalogProduct(price, cost string, inventory int) store.Product {
	return store.Product{
		ID:           uuid.New(),
		Name:         "candle",
		Price:        money.MustParse(price),
		MaterialCost: money.MustParse(cost),
		Inventory:    inventory,
	}
}

func guestCartWith(cs *fakeCartStore, guestID string, items ...store.CartItem) {
	c := store.Cart{ID: uuid.New(), GuestID: &guestID, Items: items}
	cs.carts[c.ID] = c
}

func TestStartEmptyCart(t *testing.T) {
	svc, _, _ := newCheckout(0)

	_, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeEmptyOrder, appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestStartPricesFromCatalog(t *testing.T) {
	p := catalogProduct("19.99", "5.50", 10)
	svc, cs, provider := newCheckout(0, p)
	guestCartWith(cs, "g1", store.CartItem{ProductID: p.ID, Qty: 2})

	result, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "shopper@example.com")
	require.NoError(t, err)
	require.Equal(t, "cs_1", result.SessionID)
	require.Equal(t, "https://pay.example/cs_1", result.URL)

	// Catalog pricing: 2 x 19.99 = 39.98, mid shipping tier.
	require.Equal(t, "39.98", result.Summary.Subtotal.String())
	require.Equal(t, "4.99", result.Summary.ShippingCost.String())
	require.Equal(t, "44.97", result.Summary.Total.String())

	req := provider.lastRequest
	require.Len(t, req.Items, 1)
	require.Equal(t, p.ID.String(), req.Items[0].ProductID)
	require.Equal(t, "19.99", req.Items[0].UnitPrice.String())
	require.Equal(t, "5.50", req.Items[0].UnitCost.String())
	require.Equal(t, "4.99", req.ShippingCost.String())
	require.Equal(t, "shopper@example.com", req.CustomerEmail)
	require.NotEmpty(t, req.CartID)
}

func TestStartFreeShippingTier(t *testing.T) {
	p := catalogProduct("40.00", "10.00", 10)
	svc, cs, _ := newCheckout(0, p)
	guestCartWith(cs, "g1", store.CartItem{ProductID: p.ID, Qty: 2})

	result, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "")
	require.NoError(t, err)
	require.Equal(t, "80.00", result.Summary.Subtotal.String())
	require.True(t, result.Summary.ShippingCost.IsZero())
}

func TestStartAppliesTaxRate(t *testing.T) {
	p := catalogProduct("100.00", "0.00", 10)
	svc, cs, provider := newCheckout(825, p) // 8.25%
	guestCartWith(cs, "g1", store.CartItem{ProductID: p.ID, Qty: 1})

	result, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "")
	require.NoError(t, err)
	require.Equal(t, "8.25", result.Summary.Tax.String())
	require.Equal(t, "108.25", result.Summary.Total.String())
	require.Equal(t, "8.25", provider.lastRequest.Tax.String())
}

func TestStartInsufficientInventory(t *testing.T) {
	p := catalogProduct("10.00", "1.00", 1)
	svc, cs, _ := newCheckout(0, p)
	guestCartWith(cs, "g1", store.CartItem{ProductID: p.ID, Qty: 3})

	_, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeInsufficientInventory, appErr.Code)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestStartVanishedProduct(t *testing.T) {
	svc, cs, _ := newCheckout(0)
	guestCartWith(cs, "g1", store.CartItem{ProductID: uuid.New(), Qty: 1})

	_, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeValidation, appErr.Code)
}

func TestStartProviderFailure(t *testing.T) {
	p := catalogProduct("10.00", "1.00", 5)
	svc, cs, provider := newCheckout(0, p)
	provider.err = errors.New("gateway down")
	guestCartWith(cs, "g1", store.CartItem{ProductID: p.ID, Qty: 1})

	_, err := svc.Start(context.Background(), cart.Owner{GuestID: "g1"}, "")
	require.Error(t, err)
	require.False(t, common.IsAppError(err))
}
