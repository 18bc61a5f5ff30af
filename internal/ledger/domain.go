// Package ledger keeps the append-only journal of inventory quantity
// changes. Every movement records the counter before and after, so the
// journal doubles as an audit trail for the live variant counter.
package ledger

import "time"

// SourceType tags what business operation caused a quantity change.
type SourceType string

const (
	SourceManual          SourceType = "manual"
	SourceClientInvoice   SourceType = "client_invoice"
	SourceSupplierInvoice SourceType = "supplier_invoice"
	SourceAdjustment      SourceType = "adjustment"
	SourceQuotation       SourceType = "quotation"
	SourceReturn          SourceType = "return"
	SourceTrigger         SourceType = "trigger"
)

// Valid reports whether the source type is a known tag.
func (s SourceType) Valid() bool {
	switch s {
	case SourceManual, SourceClientInvoice, SourceSupplierInvoice,
		SourceAdjustment, SourceQuotation, SourceReturn, SourceTrigger:
		return true
	}
	return false
}

// Entry is one immutable line of the inventory journal.
type Entry struct {
	ID               int64      `json:"id"`
	ProductID        int64      `json:"product_id"`
	VariantID        int64      `json:"variant_id"`
	QuantityChange   int64      `json:"quantity_change"`
	PreviousQuantity int64      `json:"previous_quantity"`
	NewQuantity      int64      `json:"new_quantity"`
	SourceType       SourceType `json:"source_type"`
	SourceID         *int64     `json:"source_id,omitempty"`
	SourceReference  *string    `json:"source_reference,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ChangeInput describes a quantity movement to record. When VariantID is
// nil the change lands on the product's default variant (its oldest one).
type ChangeInput struct {
	ProductID       int64      `json:"product_id" validate:"required,gt=0"`
	VariantID       *int64     `json:"variant_id" validate:"omitempty,gt=0"`
	QuantityChange  int64      `json:"quantity_change" validate:"required"`
	SourceType      SourceType `json:"source_type" validate:"required"`
	SourceID        *int64     `json:"source_id"`
	SourceReference *string    `json:"source_reference"`
	Notes           *string    `json:"notes"`
}

// VariantSummary aggregates journal activity for one variant.
type VariantSummary struct {
	VariantID       int64      `json:"variant_id"`
	SKU             string     `json:"sku"`
	CurrentQuantity int64      `json:"current_quantity"`
	TotalIn         int64      `json:"total_in"`
	TotalOut        int64      `json:"total_out"`
	EntryCount      int64      `json:"entry_count"`
	LastChangeAt    *time.Time `json:"last_change_at,omitempty"`
}

// InventorySummary aggregates journal activity for a product.
type InventorySummary struct {
	ProductID       int64            `json:"product_id"`
	CurrentQuantity int64            `json:"current_quantity"`
	TotalIn         int64            `json:"total_in"`
	TotalOut        int64            `json:"total_out"`
	EntryCount      int64            `json:"entry_count"`
	LastChangeAt    *time.Time       `json:"last_change_at,omitempty"`
	Variants        []VariantSummary `json:"variants,omitempty"`
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	ProductID  *int64      `json:"product_id"`
	VariantID  *int64      `json:"variant_id"`
	SourceType *SourceType `json:"source_type"`
	From       *time.Time  `json:"from"`
	To         *time.Time  `json:"to"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}
