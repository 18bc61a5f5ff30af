// Package invoicing manages client invoices and payment receipts. Invoice
// creation moves the client balance and feeds the inventory journal; the
// shipping package layers fulfillment state on top of invoice lines.
package invoicing

import "time"

// InvoiceType distinguishes sales from returns.
type InvoiceType string

const (
	TypeRegular InvoiceType = "regular"
	TypeReturn  InvoiceType = "return"
)

// Valid reports whether the invoice type is known.
func (t InvoiceType) Valid() bool {
	return t == TypeRegular || t == TypeReturn
}

// ShippingStatus summarizes fulfillment across an invoice's shipments.
type ShippingStatus string

const (
	ShippingUnshipped ShippingStatus = "unshipped"
	ShippingPartial   ShippingStatus = "partially_shipped"
	ShippingFull      ShippingStatus = "fully_shipped"
)

// Invoice is a client sales document. TotalPrice is stored positive for
// both types; Type decides the sign of its balance effect.
type Invoice struct {
	ID             int64          `json:"id"`
	ClientID       int64          `json:"client_id"`
	Number         string         `json:"number"`
	Type           InvoiceType    `json:"type"`
	Currency       string         `json:"currency"`
	TotalPrice     float64        `json:"total_price"`
	ShippingStatus ShippingStatus `json:"shipping_status"`
	Notes          *string        `json:"notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	Lines          []Line         `json:"lines,omitempty"`
}

// Line is one invoice position.
type Line struct {
	ID        int64   `json:"id"`
	InvoiceID int64   `json:"invoice_id"`
	ProductID int64   `json:"product_id"`
	VariantID *int64  `json:"variant_id,omitempty"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Size      *string `json:"size,omitempty"`
	Color     *string `json:"color,omitempty"`
}

// Receipt records a client payment, optionally tied to an invoice.
type Receipt struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	InvoiceID *int64    `json:"invoice_id,omitempty"`
	Number    string    `json:"number"`
	Amount    float64   `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	CreatedAt time.Time `json:"created_at"`
}

// BalanceDelta is the signed amount this invoice adds to the client
// balance: regular invoices raise what the client owes, returns lower it.
func (inv Invoice) BalanceDelta() float64 {
	if inv.Type == TypeReturn {
		return -inv.TotalPrice
	}
	return inv.TotalPrice
}
