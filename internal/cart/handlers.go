package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/store"
)

// Handlers serves the cart routes for both guests and authenticated users.
type Handlers struct {
	Svc          *Service
	CookieSecret string
	CookieTTL    time.Duration
	SecureCookie bool
}

// Routes mounts the cart endpoints. Authentication is optional; guests are
// tracked with a signed cookie.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Put("/", h.replace)
	r.Post("/merge", h.merge)
	r.Post("/validate", h.validate)
}

// owner resolves the request's cart owner, issuing a guest cookie when the
// caller is anonymous and carries none.
func (h *Handlers) owner(w http.ResponseWriter, r *http.Request) Owner {
	if raw, ok := common.UserID(r.Context()); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return Owner{UserID: &id}
		}
	}
	guestID := GuestIDFromRequest(r, h.CookieSecret)
	if guestID == "" {
		guestID = IssueGuestID(w, h.CookieSecret, h.CookieTTL, h.SecureCookie)
	}
	return Owner{GuestID: guestID}
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.GetOrCreate(r.Context(), h.owner(w, r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if c.Items == nil {
		c.Items = []store.CartItem{}
	}
	common.JSON(w, http.StatusOK, c)
}

type replaceRequest struct {
	Items []store.CartItem `json:"items"`
}

func (h *Handlers) replace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	c, err := h.Svc.Replace(r.Context(), h.owner(w, r), req.Items)
	if err != nil {
		if errors.Is(err, ErrInvalidItem) {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	if c.Items == nil {
		c.Items = []store.CartItem{}
	}
	common.JSON(w, http.StatusOK, c)
}

// merge folds the guest cookie cart into the authenticated user's cart.
// Called by the storefront right after login.
func (h *Handlers) merge(w http.ResponseWriter, r *http.Request) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "authentication required", nil)
		return
	}
	guestID := GuestIDFromRequest(r, h.CookieSecret)
	if guestID == "" {
		// Nothing to merge; just return the user's cart.
		c, err := h.Svc.GetOrCreate(r.Context(), Owner{UserID: &userID})
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.JSON(w, http.StatusOK, c)
		return
	}
	c, err := h.Svc.Merge(r.Context(), userID, guestID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	ClearGuestID(w)
	if c.Items == nil {
		c.Items = []store.CartItem{}
	}
	common.JSON(w, http.StatusOK, c)
}

// validate is an advisory stock check the storefront calls before sending
// the shopper to payment.
func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.GetOrCreate(r.Context(), h.owner(w, r))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.Svc.Validate(r.Context(), c.Items); err != nil {
		var inv *InsufficientInventoryError
		if errors.As(err, &inv) {
			common.WriteError(w, inv.AppError())
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"valid": true})
}
