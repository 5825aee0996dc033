package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/emberlane/backend-shop/internal/payment"
	"github.com/emberlane/backend-shop/internal/store"
)

type fakeWebhookStore struct {
	byRef       map[string]store.Order
	inventory   map[uuid.UUID]int
	sold        map[uuid.UUID]int
	emptied     []uuid.UUID
	failCreates int
}

func newFakeWebhookStore() *fakeWebhookStore {
	return &fakeWebhookStore{
		byRef:     map[string]store.Order{},
		inventory: map[uuid.UUID]int{},
		sold:      map[uuid.UUID]int{},
	}
}

func (f *fakeWebhookStore) GetOrderByPaymentRef(_ context.Context, ref string) (store.Order, error) {
	o, ok := f.byRef[ref]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeWebhookStore) CreateOrder(_ context.Context, o store.Order) (store.Order, error) {
	if f.failCreates > 0 {
		f.failCreates--
		return store.Order{}, errors.New("connection reset")
	}
	o.ID = uuid.New()
	f.byRef[o.PaymentRef] = o
	return o, nil
}

func (f *fakeWebhookStore) DecrementInventory(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	if f.inventory[id] < qty {
		return false, nil
	}
	f.inventory[id] -= qty
	f.sold[id] += qty
	return true, nil
}

func (f *fakeWebhookStore) EmptyCart(_ context.Context, cartID uuid.UUID) error {
	f.emptied = append(f.emptied, cartID)
	return nil
}

const webhookSecret = "whsec_test"

func newHandler(t *testing.T, fake *fakeWebhookStore, rdb *redis.Client) *payment.WebhookHandler {
	t.Helper()
	now := time.Now()
	return &payment.WebhookHandler{
		Provider: &payment.StripeProvider{
			WebhookSecret: webhookSecret,
			Now:           func() time.Time { return now },
		},
		Store: fake,
		Redis: rdb,
		Log:   zerolog.Nop(),
	}
}

func eventBody(t *testing.T, eventID, sessionID, intent string, metadata map[string]string) string {
	t.Helper()
	payload := map[string]any{
		"id":   eventID,
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"payment_intent": intent,
				"customer_details": map[string]string{
					"email": "shopper@example.com",
					"name":  "Sam Shopper",
				},
				"metadata": metadata,
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(raw)
}

func itemsMeta(t *testing.T, productID uuid.UUID, qty int) string {
	t.Helper()
	raw, err := json.Marshal([]map[string]any{{
		"productId": productID.String(),
		"name":      "candle",
		"quantity":  qty,
		"price":     19.99,
		"cost":      5.50,
	}})
	require.NoError(t, err)
	return string(raw)
}

func deliver(handler *payment.WebhookHandler, body string, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader([]byte(body)))
	if sign {
		req.Header.Set(payment.SignatureHeader, payment.SignPayload(webhookSecret, time.Now(), []byte(body)))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 5
	handler := newHandler(t, fake, nil)

	body := eventBody(t, "evt_1", "cs_1", "pi_1", map[string]string{
		payment.MetaItems: itemsMeta(t, productID, 2),
	})
	rec := deliver(handler, body, false)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "INVALID_SIGNATURE")
	require.Empty(t, fake.byRef)
	require.Equal(t, 5, fake.inventory[productID])
}

func TestWebhookCreatesOrderAndSettlesInventory(t *testing.T) {
	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 5
	handler := newHandler(t, fake, nil)
	cartID := uuid.New()

	body := eventBody(t, "evt_1", "cs_1", "pi_1", map[string]string{
		payment.MetaItems:    itemsMeta(t, productID, 2),
		payment.MetaShipping: "4.99",
		payment.MetaTax:      "0",
		payment.MetaCartID:   cartID.String(),
	})
	rec := deliver(handler, body, true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received":true}`, rec.Body.String())

	o, ok := fake.byRef["pi_1"]
	require.True(t, ok)
	require.Equal(t, "processing", o.Status)
	require.Equal(t, "shopper@example.com", o.CustomerEmail)
	require.Equal(t, "39.98", o.Subtotal.String())
	require.Equal(t, "44.97", o.Total.String())
	// fee = round2(44.97 * 0.029 + 0.30) = 1.60
	require.Equal(t, "1.60", o.ProcessorFee.String())
	require.Equal(t, "11.00", o.TotalCost.String())
	// profit = round2(44.97 - (11.00 + 1.60 + 4.99)) = 27.38
	require.Equal(t, "27.38", o.TotalProfit.String())

	require.Equal(t, 3, fake.inventory[productID])
	require.Equal(t, 2, fake.sold[productID])
	require.Equal(t, []uuid.UUID{cartID}, fake.emptied)
}

func TestWebhookDuplicateDeliveryIsIdempotent(t *testing.T) {
	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 5
	handler := newHandler(t, fake, nil)

	meta := map[string]string{
		payment.MetaItems:    itemsMeta(t, productID, 2),
		payment.MetaShipping: "4.99",
	}
	first := deliver(handler, eventBody(t, "evt_1", "cs_1", "pi_1", meta), true)
	require.Equal(t, http.StatusOK, first.Code)

	// Redelivery with a fresh event id but the same payment reference.
	second := deliver(handler, eventBody(t, "evt_2", "cs_1", "pi_1", meta), true)
	require.Equal(t, http.StatusOK, second.Code)
	require.JSONEq(t, `{"received":true}`, second.Body.String())

	require.Len(t, fake.byRef, 1)
	require.Equal(t, 3, fake.inventory[productID])
	require.Equal(t, 2, fake.sold[productID])
}

func TestWebhookReplayGuardShortCircuits(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 5
	handler := newHandler(t, fake, rdb)

	body := eventBody(t, "evt_same", "cs_1", "pi_1", map[string]string{
		payment.MetaItems: itemsMeta(t, productID, 2),
	})
	first := deliver(handler, body, true)
	require.Equal(t, http.StatusOK, first.Code)
	require.Len(t, fake.byRef, 1)

	second := deliver(handler, body, true)
	require.Equal(t, http.StatusOK, second.Code)
	require.Len(t, fake.byRef, 1)
	require.Equal(t, 3, fake.inventory[productID])
}

func TestWebhookRedeliveryAfterStoreFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 5
	fake.failCreates = 1
	handler := newHandler(t, fake, rdb)

	body := eventBody(t, "evt_same", "cs_1", "pi_1", map[string]string{
		payment.MetaItems:    itemsMeta(t, productID, 2),
		payment.MetaShipping: "4.99",
	})
	first := deliver(handler, body, true)
	require.Equal(t, http.StatusInternalServerError, first.Code)
	require.Empty(t, fake.byRef)

	// The failed attempt must not hold the event id: the processor's
	// redelivery has to produce the order.
	second := deliver(handler, body, true)
	require.Equal(t, http.StatusOK, second.Code)
	require.Len(t, fake.byRef, 1)
	require.Equal(t, 3, fake.inventory[productID])

	// Once confirmed, further replays of the event id short-circuit.
	third := deliver(handler, body, true)
	require.Equal(t, http.StatusOK, third.Code)
	require.Len(t, fake.byRef, 1)
	require.Equal(t, 3, fake.inventory[productID])
}

func TestWebhookMalformedShippingRejected(t *testing.T) {
	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 5
	handler := newHandler(t, fake, nil)

	body := eventBody(t, "evt_1", "cs_1", "pi_1", map[string]string{
		payment.MetaItems:    itemsMeta(t, productID, 2),
		payment.MetaShipping: "free",
	})
	rec := deliver(handler, body, true)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	require.Empty(t, fake.byRef)
	require.Equal(t, 5, fake.inventory[productID])
}

func TestWebhookEmptyItemsRejected(t *testing.T) {
	fake := newFakeWebhookStore()
	handler := newHandler(t, fake, nil)

	body := eventBody(t, "evt_1", "cs_1", "pi_1", map[string]string{
		payment.MetaItems: "[]",
	})
	rec := deliver(handler, body, true)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "EMPTY_ORDER")
	require.Empty(t, fake.byRef)
}

func TestWebhookInventoryDriftKeepsOrder(t *testing.T) {
	fake := newFakeWebhookStore()
	productID := uuid.New()
	fake.inventory[productID] = 1
	handler := newHandler(t, fake, nil)

	body := eventBody(t, "evt_1", "cs_1", "pi_1", map[string]string{
		payment.MetaItems: itemsMeta(t, productID, 2),
	})
	rec := deliver(handler, body, true)

	// The payment settled, so the order stands even though stock fell short.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.byRef, 1)
	require.Equal(t, 1, fake.inventory[productID])
	require.Equal(t, 0, fake.sold[productID])
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	fake := newFakeWebhookStore()
	handler := newHandler(t, fake, nil)

	body := `{"id":"evt_1","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`
	rec := deliver(handler, body, true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, fake.byRef)
}
