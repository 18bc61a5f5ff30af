package report

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/shipping"
)

// Builder assembles document HTML. Amounts are grouped with the printer's
// locale before rendering.
type Builder struct {
	printer *message.Printer
}

// NewBuilder constructs a builder for the given locale tag.
func NewBuilder(locale string) *Builder {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Builder{printer: message.NewPrinter(tag)}
}

func (b *Builder) money(currency string, amount float64) string {
	return b.printer.Sprintf("%s %.2f", currency, amount)
}

func esc(s string) string {
	return html.EscapeString(s)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return esc(*s)
}

// InvoiceHTML renders a client invoice document.
func (b *Builder) InvoiceHTML(inv invoicing.Invoice, clientName string) string {
	var sb strings.Builder
	title := "Invoice"
	if inv.Type == invoicing.TypeReturn {
		title = "Return Invoice"
	}
	sb.WriteString("<html><head><meta charset=\"utf-8\"><title>" + title + " " + esc(inv.Number) + "</title>")
	sb.WriteString(documentStyle)
	sb.WriteString("</head><body>")
	fmt.Fprintf(&sb, "<h1>%s %s</h1>", title, esc(inv.Number))
	fmt.Fprintf(&sb, "<p class=\"meta\">Client: %s<br>Date: %s</p>", esc(clientName), inv.CreatedAt.Format("2006-01-02"))

	sb.WriteString("<table><thead><tr><th>Product</th><th>Size</th><th>Color</th><th>Qty</th><th>Unit price</th><th>Amount</th></tr></thead><tbody>")
	for _, line := range inv.Lines {
		fmt.Fprintf(&sb, "<tr><td>#%d</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%s</td></tr>",
			line.ProductID, optional(line.Size), optional(line.Color), line.Quantity,
			b.money(inv.Currency, line.UnitPrice),
			b.money(inv.Currency, float64(line.Quantity)*line.UnitPrice))
	}
	sb.WriteString("</tbody></table>")
	fmt.Fprintf(&sb, "<p class=\"total\">Total: %s</p>", b.money(inv.Currency, inv.TotalPrice))
	sb.WriteString("</body></html>")
	return sb.String()
}

// ReceiptHTML renders a payment receipt document.
func (b *Builder) ReceiptHTML(rc invoicing.Receipt, clientName, currency string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><meta charset=\"utf-8\"><title>Receipt " + esc(rc.Number) + "</title>")
	sb.WriteString(documentStyle)
	sb.WriteString("</head><body>")
	fmt.Fprintf(&sb, "<h1>Receipt %s</h1>", esc(rc.Number))
	fmt.Fprintf(&sb, "<p class=\"meta\">Client: %s<br>Paid: %s</p>", esc(clientName), rc.PaidAt.Format("2006-01-02"))
	fmt.Fprintf(&sb, "<p class=\"total\">Amount received: %s</p>", b.money(currency, rc.Amount))
	sb.WriteString("</body></html>")
	return sb.String()
}

// ShipmentHTML renders a shipping document with its positions.
func (b *Builder) ShipmentHTML(sh shipping.Shipment, invoiceNumber string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><meta charset=\"utf-8\"><title>Shipment " + esc(sh.Number) + "</title>")
	sb.WriteString(documentStyle)
	sb.WriteString("</head><body>")
	fmt.Fprintf(&sb, "<h1>Shipment %s</h1>", esc(sh.Number))
	shippedAt := ""
	if sh.ShippedAt != nil {
		shippedAt = sh.ShippedAt.Format("2006-01-02")
	}
	fmt.Fprintf(&sb, "<p class=\"meta\">Invoice: %s<br>Status: %s<br>Shipped: %s</p>",
		esc(invoiceNumber), esc(string(sh.Status)), shippedAt)

	sb.WriteString("<table><thead><tr><th>Product</th><th>Size</th><th>Color</th><th>Qty</th></tr></thead><tbody>")
	for _, item := range sh.Items {
		fmt.Fprintf(&sb, "<tr><td>#%d</td><td>%s</td><td>%s</td><td>%d</td></tr>",
			item.ProductID, optional(item.Size), optional(item.Color), item.Quantity)
	}
	sb.WriteString("</tbody></table>")
	if sh.Notes != nil {
		fmt.Fprintf(&sb, "<p class=\"meta\">%s</p>", esc(*sh.Notes))
	}
	fmt.Fprintf(&sb, "<p class=\"meta\">Generated %s</p>", time.Now().Format(time.RFC1123))
	sb.WriteString("</body></html>")
	return sb.String()
}

const documentStyle = `<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
.meta { color: #555; }
.total { font-weight: bold; font-size: 1.2em; }
</style>`
