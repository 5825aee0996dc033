package checkout

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/emberlane/backend-shop/internal/cart"
	"github.com/emberlane/backend-shop/internal/common"
)

// Handlers serves the checkout endpoint for guests and authenticated users.
type Handlers struct {
	Svc          *Service
	Validate     *validator.Validate
	CookieSecret string
	CookieTTL    time.Duration
	SecureCookie bool
}

type startRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// Start handles POST /checkout. Authentication is optional; anonymous
// shoppers check out against their guest cookie cart.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}

	owner := h.owner(w, r)
	result, err := h.Svc.Start(r.Context(), owner, normalizeEmail(req.Email))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, result)
}

func (h *Handlers) owner(w http.ResponseWriter, r *http.Request) cart.Owner {
	if raw, ok := common.UserID(r.Context()); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return cart.Owner{UserID: &id}
		}
	}
	guestID := cart.GuestIDFromRequest(r, h.CookieSecret)
	if guestID == "" {
		guestID = cart.IssueGuestID(w, h.CookieSecret, h.CookieTTL, h.SecureCookie)
	}
	return cart.Owner{GuestID: guestID}
}
