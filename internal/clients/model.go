// Package clients manages the customer master records, including the
// running balance adjusted by invoicing and corrected by reconciliation.
package clients

import "time"

// Client is a customer master record. Balance is the amount the client
// owes: invoices raise it, returns and receipts lower it.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	TaxID     *string   `json:"tax_id,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Address   *string   `json:"address,omitempty"`
	Balance   float64   `json:"balance"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest carries fields for registering a client.
type CreateRequest struct {
	Name    string  `json:"name" validate:"required,min=2,max=255"`
	TaxID   *string `json:"tax_id" validate:"omitempty,max=32"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

// UpdateRequest patches mutable client fields. Balance is deliberately
// absent: only invoicing and reconciliation move it.
type UpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=255"`
	TaxID    *string `json:"tax_id" validate:"omitempty,max=32"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	IsActive *bool   `json:"is_active"`
}

// ListRequest filters the client listing.
type ListRequest struct {
	Search *string `json:"search"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
