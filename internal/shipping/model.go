// Package shipping tracks how much of each invoice line has left the
// warehouse. Shipments carry their own document lifecycle; the parent
// invoice's shipping_status is derived from the non-cancelled ones.
package shipping

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
)

// Status is the shipment document lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether the status is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the move to target is allowed. Pending
// shipments may only ship; shipped ones may deliver or cancel; delivered
// and cancelled are terminal. A pending shipment is removed via delete,
// not cancellation.
func (s Status) CanTransition(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusShipped
	case StatusShipped:
		return target == StatusDelivered || target == StatusCancelled
	}
	return false
}

// Counted reports whether the shipment's quantities count toward
// fulfillment. Cancelled shipments do not.
func (s Status) Counted() bool {
	return s != StatusCancelled
}

// Shipment is one shipping invoice against a parent sales invoice.
type Shipment struct {
	ID          int64      `json:"id"`
	InvoiceID   int64      `json:"invoice_id"`
	Number      string     `json:"number"`
	Status      Status     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Items       []Item     `json:"items,omitempty"`
}

// Item is one shipped position inside a shipment.
type Item struct {
	ID         int64   `json:"id"`
	ShipmentID int64   `json:"shipment_id"`
	ProductID  int64   `json:"product_id"`
	VariantID  *int64  `json:"variant_id,omitempty"`
	Size       *string `json:"size,omitempty"`
	Color      *string `json:"color,omitempty"`
	Quantity   int64   `json:"quantity"`
}

// LineKey identifies an invoice position for quantity matching. Absent
// variant/size/color collapse to their zero values on both sides.
type LineKey struct {
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

func keyFor(productID int64, variantID *int64, size, color *string) LineKey {
	k := LineKey{ProductID: productID}
	if variantID != nil {
		k.VariantID = *variantID
	}
	if size != nil {
		k.Size = *size
	}
	if color != nil {
		k.Color = *color
	}
	return k
}

// QuantityRow reports fulfillment progress for one invoice position.
type QuantityRow struct {
	LineKey
	Ordered   int64 `json:"ordered"`
	Shipped   int64 `json:"shipped"`
	Remaining int64 `json:"remaining"`
}

// ValidationResult collects every quantity violation instead of stopping
// at the first one.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// deriveInvoiceStatus folds per-line progress into the parent invoice's
// shipping_status.
func deriveInvoiceStatus(rows []QuantityRow) invoicing.ShippingStatus {
	anyShipped, allShipped := false, true
	for _, row := range rows {
		if row.Shipped > 0 {
			anyShipped = true
		}
		if row.Shipped < row.Ordered {
			allShipped = false
		}
	}
	switch {
	case len(rows) > 0 && allShipped:
		return invoicing.ShippingFull
	case anyShipped:
		return invoicing.ShippingPartial
	default:
		return invoicing.ShippingUnshipped
	}
}
