package ledger

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes inventory journal HTTP endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// MountRoutes attaches ledger routes to the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/entries", h.listEntries)
		r.Post("/entries", h.recordChange)
		r.Get("/products/{productID}/summary", h.summary)
	})
}

func (h *Handler) recordChange(w http.ResponseWriter, r *http.Request) {
	var input ChangeInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	entry, err := h.svc.RecordChange(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrZeroChange) || errors.Is(err, ErrUnknownSource):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		default:
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product id")
		return
	}
	var variantID *int64
	if v := r.URL.Query().Get("variant_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid variant id")
			return
		}
		variantID = &id
	}
	summary, err := h.svc.GetInventorySummary(r.Context(), productID, variantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	filter := EntryFilter{Limit: 50}
	q := r.URL.Query()
	parseID := func(name string) (*int64, bool) {
		v := q.Get(name)
		if v == "" {
			return nil, true
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		return &id, true
	}
	var ok bool
	if filter.ProductID, ok = parseID("product_id"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid product_id")
		return
	}
	if filter.VariantID, ok = parseID("variant_id"); !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid variant_id")
		return
	}
	if v := q.Get("source_type"); v != "" {
		st := SourceType(v)
		if !st.Valid() {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid source_type")
			return
		}
		filter.SourceType = &st
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+name+" timestamp")
				return
			}
			*dst = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	entries, total, err := h.svc.ListEntries(r.Context(), filter)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries, "total": total})
}
