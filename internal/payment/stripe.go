package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature scheme
// "t=<unix>,v1=<hmac-sha256(ts.body)>".
const SignatureHeader = "Stripe-Signature"

// DefaultSignatureTolerance bounds how stale a signed timestamp may be.
const DefaultSignatureTolerance = 5 * time.Minute

// StripeProvider drives hosted checkout sessions over the processor's
// form-encoded HTTP API.
type StripeProvider struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTP          *http.Client
	Tolerance     time.Duration
	Now           func() time.Time
}

func (p *StripeProvider) client() *http.Client {
	if p.HTTP != nil {
		return p.HTTP
	}
	return http.DefaultClient
}

func (p *StripeProvider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// CreateSession opens a hosted checkout session. Line amounts are sent in
// minor units; the full item snapshot plus shipping and tax ride along as
// metadata so the webhook can rebuild the order without touching the cart.
func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (CheckoutSession, error) {
	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("encode session items: %w", err)
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for i, it := range req.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(it.Qty))
		form.Set(prefix+"[price_data][currency]", strings.ToLower(req.Currency))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(it.UnitPrice.Cents(), 10))
		form.Set(prefix+"[price_data][product_data][name]", it.Name)
	}
	if !req.ShippingCost.IsZero() {
		form.Set("shipping_options[0][shipping_rate_data][type]", "fixed_amount")
		form.Set("shipping_options[0][shipping_rate_data][display_name]", "Shipping")
		form.Set("shipping_options[0][shipping_rate_data][fixed_amount][currency]", strings.ToLower(req.Currency))
		form.Set("shipping_options[0][shipping_rate_data][fixed_amount][amount]", strconv.FormatInt(req.ShippingCost.Cents(), 10))
	}
	form.Set("metadata["+MetaItems+"]", string(itemsJSON))
	form.Set("metadata["+MetaShipping+"]", req.ShippingCost.String())
	form.Set("metadata["+MetaTax+"]", req.Tax.String())
	if req.UserID != "" {
		form.Set("metadata["+MetaUserID+"]", req.UserID)
	}
	if req.CartID != "" {
		form.Set("metadata["+MetaCartID+"]", req.CartID)
	}

	endpoint := strings.TrimSuffix(p.BaseURL, "/") + "/v1/checkout/sessions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client().Do(httpReq)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return CheckoutSession{}, fmt.Errorf("checkout session rejected: status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode session response: %w", err)
	}
	if session.ID == "" || session.URL == "" {
		return CheckoutSession{}, fmt.Errorf("checkout session response missing id or url")
	}
	return session, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID              string `json:"id"`
			PaymentIntent   string `json:"payment_intent"`
			LatestCharge    string `json:"latest_charge"`
			CustomerDetails struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"customer_details"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks the signature header against the raw body. A bad or
// stale signature yields Valid=false with a nil error; decoding problems on
// an authentic payload are returned as errors.
func (p *StripeProvider) VerifyWebhook(r *http.Request, body []byte) (WebhookResult, error) {
	header := r.Header.Get(SignatureHeader)
	if !p.signatureOK(header, body) {
		return WebhookResult{Valid: false}, nil
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return WebhookResult{Valid: true}, fmt.Errorf("decode webhook payload: %w", err)
	}
	return WebhookResult{
		Valid: true,
		Event: Event{
			ID:            env.ID,
			Type:          env.Type,
			SessionID:     env.Data.Object.ID,
			PaymentIntent: env.Data.Object.PaymentIntent,
			ChargeID:      env.Data.Object.LatestCharge,
			CustomerEmail: env.Data.Object.CustomerDetails.Email,
			CustomerName:  env.Data.Object.CustomerDetails.Name,
			Metadata:      env.Data.Object.Metadata,
		},
	}, nil
}

func (p *StripeProvider) signatureOK(header string, body []byte) bool {
	if header == "" || p.WebhookSecret == "" {
		return false
	}
	var ts int64
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return false
			}
			ts = n
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == 0 || len(sigs) == 0 {
		return false
	}
	tolerance := p.Tolerance
	if tolerance == 0 {
		tolerance = DefaultSignatureTolerance
	}
	age := p.now().Sub(time.Unix(ts, 0))
	if age > tolerance || age < -tolerance {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.WebhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	for _, sig := range sigs {
		if hmac.Equal([]byte(sig), []byte(want)) {
			return true
		}
	}
	return false
}

// SignPayload produces a signature header for the given body, used by test
// harnesses and the local webhook replayer.
func SignPayload(secret string, at time.Time, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
