package report

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shipping"
)

// ClientNamer resolves client display names for documents.
type ClientNamer interface {
	ClientName(ctx context.Context, id int64) (string, error)
}

// Handler manages report endpoints.
type Handler struct {
	client    *Client
	builder   *Builder
	invoices  *invoicing.Service
	shipments *shipping.Service
	names     ClientNamer
	logger    *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(client *Client, builder *Builder, invoices *invoicing.Service, shipments *shipping.Service, names ClientNamer, logger *slog.Logger) *Handler {
	return &Handler{client: client, builder: builder, invoices: invoices, shipments: shipments, names: names, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/invoices/{id}", h.invoicePDF)
	r.Get("/receipts/{id}", h.receiptPDF)
	r.Get("/shipments/{id}", h.shipmentPDF)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) servePDF(w http.ResponseWriter, r *http.Request, filename, html string) {
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render pdf", slog.String("document", filename), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	inv, err := h.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, err := h.names.ClientName(r.Context(), inv.ClientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.servePDF(w, r, "invoice-"+inv.Number+".pdf", h.builder.InvoiceHTML(*inv, name))
}

func (h *Handler) receiptPDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid receipt id")
		return
	}
	rc, err := h.invoices.GetReceipt(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	name, err := h.names.ClientName(r.Context(), rc.ClientID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	currency := "USD"
	if rc.InvoiceID != nil {
		if inv, err := h.invoices.GetInvoice(r.Context(), *rc.InvoiceID); err == nil {
			currency = inv.Currency
		}
	}
	h.servePDF(w, r, "receipt-"+rc.Number+".pdf", h.builder.ReceiptHTML(*rc, name, currency))
}

func (h *Handler) shipmentPDF(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid shipment id")
		return
	}
	sh, err := h.shipments.GetShipment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.invoices.GetInvoice(r.Context(), sh.InvoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.servePDF(w, r, "shipment-"+sh.Number+".pdf", h.builder.ShipmentHTML(*sh, inv.Number))
}
