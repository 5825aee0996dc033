package payment

import (
	"context"
	"net/http"

	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/pricing"
)

// Metadata keys attached to the hosted checkout session. The session
// metadata is the source of truth when the confirmation webhook arrives;
// nothing about the order is reconstructed from the cart at that point.
const (
	MetaItems    = "items"
	MetaUserID   = "userId"
	MetaCartID   = "cartId"
	MetaShipping = "shippingCost"
	MetaTax      = "tax"
)

// SessionRequest describes the checkout to hand to the processor.
type SessionRequest struct {
	Items         []pricing.LineItem
	ShippingCost  money.Money
	Tax           money.Money
	Currency      string
	CustomerEmail string
	UserID        string
	CartID        string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the processor's hosted payment page.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is the decoded confirmation payload.
type Event struct {
	ID            string
	Type          string
	SessionID     string
	PaymentIntent string
	ChargeID      string
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]string
}

// WebhookResult reports signature verification alongside the decoded event.
// Valid is false for a bad or missing signature; the error return is
// reserved for payload decoding problems on an authentic request.
type WebhookResult struct {
	Valid bool
	Event Event
}

// Provider abstracts the payment processor.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (CheckoutSession, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookResult, error)
}

// EventTypeCheckoutCompleted is the only event type that creates orders.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// PaymentRef picks the durable idempotency key for an event: the payment
// intent when present, otherwise the session id.
func (e Event) PaymentRef() string {
	if e.PaymentIntent != "" {
		return e.PaymentIntent
	}
	return e.SessionID
}
