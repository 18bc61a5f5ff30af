package shipping

import "time"

// CreateRequest carries a new shipment against an invoice.
type CreateRequest struct {
	InvoiceID      int64       `json:"invoice_id" validate:"required,gt=0"`
	Number         string      `json:"number" validate:"required,max=64"`
	Notes          *string     `json:"notes" validate:"omitempty,max=1000"`
	ShippedAt      *time.Time  `json:"shipped_at"`
	Items          []ItemInput `json:"items" validate:"required,min=1,dive"`
	IdempotencyKey string      `json:"idempotency_key" validate:"omitempty,max=128"`
}

// ItemInput is one proposed shipped position.
type ItemInput struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	VariantID *int64  `json:"variant_id" validate:"omitempty,gt=0"`
	Size      *string `json:"size" validate:"omitempty,max=32"`
	Color     *string `json:"color" validate:"omitempty,max=32"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
}

// UpdateStatusRequest moves a shipment through its lifecycle.
type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required"`
}
