package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/shipping"
)

func strPtr(s string) *string { return &s }

func TestInvoiceHTMLContainsLinesAndTotal(t *testing.T) {
	b := NewBuilder("en")
	inv := invoicing.Invoice{
		ID: 1, Number: "INV-001", Type: invoicing.TypeRegular, Currency: "USD",
		TotalPrice: 1250.5, CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Lines: []invoicing.Line{
			{ProductID: 5, Size: strPtr("M"), Color: strPtr("black"), Quantity: 10, UnitPrice: 125.05},
		},
	}
	html := b.InvoiceHTML(inv, "Acme & Sons")
	require.Contains(t, html, "Invoice INV-001")
	require.Contains(t, html, "Acme &amp; Sons")
	require.Contains(t, html, "USD 1,250.50")
	require.Contains(t, html, "<td>M</td>")
}

func TestReturnInvoiceTitled(t *testing.T) {
	b := NewBuilder("en")
	inv := invoicing.Invoice{Number: "RET-001", Type: invoicing.TypeReturn, Currency: "USD"}
	html := b.InvoiceHTML(inv, "Acme")
	require.Contains(t, html, "Return Invoice RET-001")
}

func TestShipmentHTMLListsItems(t *testing.T) {
	b := NewBuilder("en")
	shippedAt := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	sh := shipping.Shipment{
		Number: "SHP-001", Status: shipping.StatusShipped, ShippedAt: &shippedAt,
		Items: []shipping.Item{{ProductID: 5, Size: strPtr("M"), Quantity: 4}},
	}
	html := b.ShipmentHTML(sh, "INV-001")
	require.Contains(t, html, "Shipment SHP-001")
	require.Contains(t, html, "INV-001")
	require.Contains(t, html, "<td>4</td>")
	require.Contains(t, html, "2026-05-02")
}

func TestBuilderFallsBackToEnglish(t *testing.T) {
	b := NewBuilder("")
	rc := invoicing.Receipt{Number: "RCP-001", Amount: 99999.9, PaidAt: time.Now()}
	html := b.ReceiptHTML(rc, "Acme", "EUR")
	require.Contains(t, html, "EUR 99,999.90")
}
