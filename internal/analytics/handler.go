package analytics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the sales aggregator endpoints.
type Handler struct {
	svc *Service
}

// NewHandler constructs the handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// MountRoutes attaches analytics routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/analytics/products/{productID}", func(r chi.Router) {
		r.Get("/summary", h.summary)
		r.Get("/variants", h.variants)
		r.Get("/customers", h.customers)
	})
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return 0, false
	}
	return id, true
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, h.svc.GetProductHistorySummary(r.Context(), id))
}

func (h *Handler) variants(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	details := h.svc.GetVariantSalesDetails(r.Context(), id)
	httpx.JSON(w, http.StatusOK, map[string]any{"items": details})
}

func (h *Handler) customers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	purchases := h.svc.GetCustomerPurchaseHistory(r.Context(), id)
	httpx.JSON(w, http.StatusOK, map[string]any{"items": purchases})
}
