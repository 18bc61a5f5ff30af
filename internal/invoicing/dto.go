package invoicing

import "time"

// CreateInvoiceRequest carries a new invoice with its lines.
type CreateInvoiceRequest struct {
	ClientID int64             `json:"client_id" validate:"required,gt=0"`
	Number   string            `json:"number" validate:"required,max=64"`
	Type     InvoiceType       `json:"type" validate:"required,oneof=regular return"`
	Currency string            `json:"currency" validate:"required,len=3"`
	Notes    *string           `json:"notes" validate:"omitempty,max=1000"`
	Lines    []LineInput       `json:"lines" validate:"required,min=1,dive"`
}

// LineInput is one requested invoice position.
type LineInput struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	VariantID *int64  `json:"variant_id" validate:"omitempty,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
	Size      *string `json:"size" validate:"omitempty,max=32"`
	Color     *string `json:"color" validate:"omitempty,max=32"`
}

// CreateReceiptRequest carries a new payment receipt.
type CreateReceiptRequest struct {
	ClientID  int64      `json:"client_id" validate:"required,gt=0"`
	InvoiceID *int64     `json:"invoice_id" validate:"omitempty,gt=0"`
	Number    string     `json:"number" validate:"required,max=64"`
	Amount    float64    `json:"amount" validate:"required,gt=0"`
	PaidAt    *time.Time `json:"paid_at"`
}

// ListInvoicesRequest filters the invoice listing.
type ListInvoicesRequest struct {
	ClientID *int64       `json:"client_id"`
	Type     *InvoiceType `json:"type"`
	From     *time.Time   `json:"from"`
	To       *time.Time   `json:"to"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}
