package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/analytics"
	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/clients"
	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/reconcile"
	"github.com/meridian-erp/meridian-erp/internal/shipping"
	"github.com/meridian-erp/meridian-erp/internal/suppliers"
	"github.com/meridian-erp/meridian-erp/jobs"
	"github.com/meridian-erp/meridian-erp/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	CatalogHandler   *catalog.Handler
	ClientsHandler   *clients.Handler
	SuppliersHandler *suppliers.Handler
	LedgerHandler    *ledger.Handler
	InvoicingHandler *invoicing.Handler
	ShippingHandler  *shipping.Handler
	ReconcileHandler *reconcile.Handler
	AnalyticsHandler *analytics.Handler
	ReportHandler    *report.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthService.RequireAuth)

		params.CatalogHandler.MountRoutes(r)
		params.ClientsHandler.MountRoutes(r)
		params.SuppliersHandler.MountRoutes(r)
		params.LedgerHandler.MountRoutes(r)
		r.Route("/invoices", func(r chi.Router) {
			params.InvoicingHandler.MountInvoiceRoutes(r)
			r.Route("/{id}/shipping", params.ShippingHandler.MountInvoiceRoutes)
		})
		r.Route("/receipts", params.InvoicingHandler.MountReceiptRoutes)
		r.Route("/shipments", params.ShippingHandler.MountRoutes)
		params.ReconcileHandler.MountRoutes(r)
		params.AnalyticsHandler.MountRoutes(r)
		r.Route("/reports", params.ReportHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
