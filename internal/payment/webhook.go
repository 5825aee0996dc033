package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/events"
	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/obs"
	"github.com/emberlane/backend-shop/internal/pricing"
	"github.com/emberlane/backend-shop/internal/store"
)

const maxWebhookBody = 1 << 20

// OrderStore is the persistence surface the webhook needs.
type OrderStore interface {
	GetOrderByPaymentRef(ctx context.Context, ref string) (store.Order, error)
	CreateOrder(ctx context.Context, o store.Order) (store.Order, error)
	DecrementInventory(ctx context.Context, id uuid.UUID, qty int) (bool, error)
	EmptyCart(ctx context.Context, cartID uuid.UUID) error
}

// WebhookHandler turns confirmed payment events into orders. It is the only
// code path that creates orders; the checkout endpoint never does.
type WebhookHandler struct {
	Provider  Provider
	Store     OrderStore
	Bus       *events.Bus
	Redis     *redis.Client
	ReplayTTL time.Duration
	Log       zerolog.Logger
}

// ServeHTTP processes one webhook delivery.
//
// An unverifiable signature is terminal: respond 400 and never retry, since
// redelivery cannot make a forged request authentic. Everything after the
// order row is committed is best-effort; inventory drift and side-effect
// failures are logged, not rolled back, because the customer has already
// paid.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "unreadable payload", nil)
		return
	}

	result, err := h.Provider.VerifyWebhook(r, body)
	if !result.Valid {
		h.rejected("invalid_signature")
		h.Log.Warn().Msg("payment webhook rejected: bad signature")
		common.JSONError(w, http.StatusBadRequest, common.CodeInvalidSignature, "webhook signature verification failed", nil)
		return
	}
	if err != nil {
		h.rejected("malformed_payload")
		h.Log.Warn().Err(err).Msg("payment webhook rejected: malformed payload")
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "malformed webhook payload", nil)
		return
	}
	ev := result.Event

	if h.alreadySeen(ctx, ev.ID) {
		received(w)
		return
	}
	if ev.Type != EventTypeCheckoutCompleted {
		received(w)
		return
	}

	if err := h.confirm(ctx, ev); err != nil {
		// The event never became an order, so the replay claim must not
		// survive: a redelivery has to reach confirm again.
		h.release(ctx, ev.ID)
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.WriteError(w, appErr)
			return
		}
		// Transient failure: respond 5xx so the processor redelivers.
		h.Log.Error().Err(err).Str("event_id", ev.ID).Msg("payment confirmation failed")
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "confirmation failed", nil)
		return
	}
	received(w)
}

func (h *WebhookHandler) confirm(ctx context.Context, ev Event) error {
	ref := ev.PaymentRef()
	if ref == "" {
		return common.NewAppError(common.CodeValidation, "event carries no payment reference", http.StatusBadRequest, nil)
	}

	// Same payment already produced an order: duplicate delivery, success.
	if existing, err := h.Store.GetOrderByPaymentRef(ctx, ref); err == nil {
		h.Log.Info().Str("order_id", existing.ID.String()).Str("payment_ref", ref).Msg("duplicate payment event ignored")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	items, err := decodeItems(ev.Metadata[MetaItems])
	if err != nil {
		return common.NewAppError(common.CodeValidation, "unreadable item metadata", http.StatusBadRequest, err)
	}
	if len(items) == 0 {
		return common.NewAppError(common.CodeEmptyOrder, "confirmed session carries no items", http.StatusBadRequest, nil)
	}

	shipping, err := parseMoney(ev.Metadata[MetaShipping])
	if err != nil {
		return common.NewAppError(common.CodeValidation, "unreadable shipping metadata", http.StatusBadRequest, err)
	}
	tax, err := parseMoney(ev.Metadata[MetaTax])
	if err != nil {
		return common.NewAppError(common.CodeValidation, "unreadable tax metadata", http.StatusBadRequest, err)
	}
	fin, err := pricing.Derive(items, shipping, tax)
	if err != nil {
		if errors.Is(err, pricing.ErrEmptyOrder) {
			return common.NewAppError(common.CodeEmptyOrder, "confirmed session carries no items", http.StatusBadRequest, err)
		}
		return common.NewAppError(common.CodeValidation, "item metadata failed validation", http.StatusBadRequest, err)
	}

	o := store.Order{
		CustomerName:  ev.CustomerName,
		CustomerEmail: ev.CustomerEmail,
		Items:         orderItems(items),
		Subtotal:      fin.Subtotal,
		ShippingCost:  fin.ShippingCost,
		Tax:           fin.Tax,
		Total:         fin.Total,
		ProcessorFee:  fin.ProcessorFee,
		TotalCost:     fin.TotalCost,
		TotalProfit:   fin.TotalProfit,
		Status:        "processing",
		PaymentRef:    ref,
		SessionID:     ev.SessionID,
		ChargeID:      ev.ChargeID,
	}
	if raw := ev.Metadata[MetaUserID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			o.UserID = &id
		}
	}

	created, err := h.Store.CreateOrder(ctx, o)
	if err != nil {
		// A concurrent delivery won the unique payment_ref race.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			h.Log.Info().Str("payment_ref", ref).Msg("concurrent payment event ignored")
			return nil
		}
		return err
	}
	if obs.OrdersConfirmedTotal != nil {
		obs.OrdersConfirmedTotal.Inc()
	}
	h.Log.Info().
		Str("order_id", created.ID.String()).
		Str("payment_ref", ref).
		Str("total", created.Total.String()).
		Msg("order confirmed")

	h.settleInventory(ctx, created)
	h.clearCart(ctx, ev.Metadata[MetaCartID])

	if h.Bus != nil {
		if err := h.Bus.Publish(ctx, events.TopicOrderCreated, created.ID, created); err != nil {
			h.Log.Error().Err(err).Str("order_id", created.ID.String()).Msg("publish order created event")
		}
	}
	return nil
}

// settleInventory decrements stock for each line. A line that can no longer
// be covered is recorded as drift; the order stands because the charge has
// settled.
func (h *WebhookHandler) settleInventory(ctx context.Context, o store.Order) {
	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		ok, err := h.Store.DecrementInventory(ctx, *it.ProductID, it.Qty)
		if err != nil {
			h.Log.Error().Err(err).
				Str("order_id", o.ID.String()).
				Str("product_id", it.ProductID.String()).
				Msg("inventory decrement failed")
			continue
		}
		if !ok {
			if obs.InventoryDriftTotal != nil {
				obs.InventoryDriftTotal.Inc()
			}
			h.Log.Warn().
				Str("order_id", o.ID.String()).
				Str("product_id", it.ProductID.String()).
				Int("qty", it.Qty).
				Msg("inventory drift: sold below available stock")
		}
	}
}

func (h *WebhookHandler) clearCart(ctx context.Context, rawCartID string) {
	if rawCartID == "" {
		return
	}
	cartID, err := uuid.Parse(rawCartID)
	if err != nil {
		return
	}
	if err := h.Store.EmptyCart(ctx, cartID); err != nil {
		h.Log.Error().Err(err).Str("cart_id", rawCartID).Msg("empty cart after order")
	}
}

// alreadySeen marks the event id in redis and reports whether a previous
// delivery already claimed it. Fails open when redis is unavailable; the
// payment_ref check still guarantees at-most-one order.
func (h *WebhookHandler) alreadySeen(ctx context.Context, eventID string) bool {
	if h.Redis == nil || eventID == "" {
		return false
	}
	ttl := h.ReplayTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	set, err := h.Redis.SetNX(ctx, "webhook:seen:"+eventID, 1, ttl).Result()
	if err != nil {
		h.Log.Warn().Err(err).Msg("webhook replay guard unavailable")
		return false
	}
	return !set
}

// release frees the replay claim after a failed confirmation so the
// processor's redelivery is not short-circuited.
func (h *WebhookHandler) release(ctx context.Context, eventID string) {
	if h.Redis == nil || eventID == "" {
		return
	}
	if err := h.Redis.Del(ctx, "webhook:seen:"+eventID).Err(); err != nil {
		h.Log.Warn().Err(err).Str("event_id", eventID).Msg("webhook replay guard release failed")
	}
}

func (h *WebhookHandler) rejected(reason string) {
	if obs.WebhookRejectedTotal != nil {
		obs.WebhookRejectedTotal.WithLabelValues(reason).Inc()
	}
}

func received(w http.ResponseWriter) {
	common.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

func decodeItems(raw string) ([]pricing.LineItem, error) {
	if raw == "" {
		return nil, nil
	}
	var items []pricing.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func parseMoney(raw string) (money.Money, error) {
	if raw == "" {
		return money.Zero, nil
	}
	return money.Parse(raw)
}

func orderItems(items []pricing.LineItem) []store.OrderItem {
	out := make([]store.OrderItem, 0, len(items))
	for _, it := range items {
		oi := store.OrderItem{
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			UnitCost:  it.UnitCost,
		}
		if id, err := uuid.Parse(it.ProductID); err == nil {
			oi.ProductID = &id
		}
		out = append(out, oi)
	}
	return out
}
