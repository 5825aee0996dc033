package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/emberlane/backend-shop/internal/common"
	"github.com/emberlane/backend-shop/internal/money"
	"github.com/emberlane/backend-shop/internal/store"
)

// Handlers serves the public catalog routes.
type Handlers struct {
	Svc      *Service
	Validate *validator.Validate
}

// Routes mounts the public catalog endpoints.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{productID}", h.get)
	r.Get("/{productID}/reviews", h.listReviews)
	r.Post("/{productID}/reviews", h.addReview)
}

func boolFilter(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	params := store.ListProductsParams{
		Category:   r.URL.Query().Get("category"),
		Featured:   boolFilter(r, "featured"),
		Bestseller: boolFilter(r, "bestseller"),
		NewArrival: boolFilter(r, "newArrival"),
		Limit:      50,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			params.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			params.Offset = n
		}
	}
	products, err := h.Svc.List(r.Context(), params)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid product id", nil)
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, p)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid product id", nil)
		return
	}
	reviews, err := h.Svc.Reviews(r.Context(), id)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

type reviewRequest struct {
	UserName string `json:"userName" validate:"required,max=80"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Body     string `json:"body" validate:"max=2000"`
}

func (h *Handlers) addReview(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid product id", nil)
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return
	}
	review, err := h.Svc.AddReview(r.Context(), store.Review{
		ProductID: id,
		UserName:  req.UserName,
		Rating:    req.Rating,
		Body:      req.Body,
	})
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, review)
}

func writeCatalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "product not found", nil)
		return
	}
	common.WriteError(w, err)
}

// AdminHandlers serves the back-office product CRUD.
type AdminHandlers struct {
	Svc      *Service
	Validate *validator.Validate
}

// Routes mounts the admin product endpoints. The caller wraps them with the
// admin role middleware.
func (h *AdminHandlers) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/{productID}", h.update)
	r.Delete("/{productID}", h.delete)
}

type productRequest struct {
	Name            string  `json:"name" validate:"required,max=200"`
	Description     string  `json:"description" validate:"max=2000"`
	LongDescription string  `json:"longDescription" validate:"max=10000"`
	Category        string  `json:"category" validate:"required,max=80"`
	Price           string  `json:"price" validate:"required"`
	MaterialCost    string  `json:"materialCost"`
	Inventory       int     `json:"inventory" validate:"min=0"`
	Featured        bool    `json:"featured"`
	Bestseller      bool    `json:"bestseller"`
	NewArrival      bool    `json:"newArrival"`
}

func (h *AdminHandlers) decode(w http.ResponseWriter, r *http.Request) (store.Product, bool) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid request body", nil)
		return store.Product{}, false
	}
	if err := h.Validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, err.Error(), nil)
		return store.Product{}, false
	}
	price, err := money.Parse(req.Price)
	if err != nil || price.IsNegative() {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid price", nil)
		return store.Product{}, false
	}
	cost := money.Zero
	if req.MaterialCost != "" {
		cost, err = money.Parse(req.MaterialCost)
		if err != nil || cost.IsNegative() {
			common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid materialCost", nil)
			return store.Product{}, false
		}
	}
	return store.Product{
		Name:            req.Name,
		Description:     req.Description,
		LongDescription: req.LongDescription,
		Category:        req.Category,
		Price:           price,
		MaterialCost:    cost,
		Inventory:       req.Inventory,
		Featured:        req.Featured,
		Bestseller:      req.Bestseller,
		NewArrival:      req.NewArrival,
	}, true
}

func (h *AdminHandlers) create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.Create(r.Context(), p)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, created)
}

func (h *AdminHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid product id", nil)
		return
	}
	p, ok := h.decode(w, r)
	if !ok {
		return
	}
	p.ID = id
	updated, err := h.Svc.Update(r.Context(), p)
	if err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, updated)
}

func (h *AdminHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeValidation, "invalid product id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeCatalogError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
