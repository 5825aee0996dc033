package order

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/store"
)

// AdminHandlers serves the back-office order routes.
type AdminHandlers struct {
	Svc      *Service
	Validate *validator.Validate
}

// Routes mounts the admin order endpoints. The caller wraps them with the
// admin role middleware.
func (h *AdminHandlers) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Patch("/{orderID}/status", h.updateStatus)
}

func (h *AdminHandlers) list(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 50)
	params := store.ListOrdersParams{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid userId filter", nil)
			return
		}
		params.UserID = &id
	}
	orders, err := h.Svc.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *AdminHandlers) get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order id", nil)
		return
	}
	o, err := h.Svc.Get(r.Context(), orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, o)
}

type updateStatusRequest struct {
	Status         string `json:"status" validate:"required,oneof=processing shipped delivered cancelled"`
	TrackingNumber string `json:"trackingNumber" validate:"omitempty,max=64"`
	Carrier        string `json:"carrier" validate:"omitempty,max=64"`
}

func (h *AdminHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid order id", nil)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	o, err := h.Svc.UpdateStatus(r.Context(), orderID, req.Status, req.TrackingNumber, req.Carrier)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, o)
}
