package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberlane/backend-shop/internal/common"
)

// Handlers serves the admin analytics routes.
type Handlers struct {
	Svc *Service
}

// Routes mounts the analytics endpoints. The caller wraps them with the
// admin role middleware.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/overview", h.overview)
}

func (h *Handlers) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Svc.GetOverview(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, overview)
}
