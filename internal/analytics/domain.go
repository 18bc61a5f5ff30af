// Package analytics serves read-only sales aggregates. Every read path
// degrades instead of failing: a broken aggregate query falls back to
// computing from raw rows, and a broken fallback yields a zeroed result.
package analytics

import "time"

// ProductHistorySummary aggregates a product's sales history. Returns are
// omitted from the totals, not negated.
type ProductHistorySummary struct {
	ProductID       int64      `json:"product_id"`
	TotalSold       int64      `json:"total_sold"`
	UniqueCustomers int64      `json:"unique_customers"`
	FirstSaleAt     *time.Time `json:"first_sale_at,omitempty"`
	LastSaleAt      *time.Time `json:"last_sale_at,omitempty"`
	AvgSaleQuantity float64    `json:"avg_sale_quantity"`
}

// VariantSalesDetail compares one variant's sales against its live stock.
type VariantSalesDetail struct {
	VariantID    int64   `json:"variant_id"`
	SKU          string  `json:"sku"`
	Size         *string `json:"size,omitempty"`
	Color        *string `json:"color,omitempty"`
	TotalSold    int64   `json:"total_sold"`
	CurrentStock int64   `json:"current_stock"`
}

// SizeColorQuantity is one cell of a customer's purchase breakdown.
type SizeColorQuantity struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int64  `json:"quantity"`
}

// CustomerPurchase groups a product's sales per client.
type CustomerPurchase struct {
	ClientID       int64               `json:"client_id"`
	ClientName     string              `json:"client_name"`
	TotalQuantity  int64               `json:"total_quantity"`
	TotalSpent     float64             `json:"total_spent"`
	PurchaseCount  int64               `json:"purchase_count"`
	LastPurchaseAt *time.Time          `json:"last_purchase_at,omitempty"`
	Breakdown      []SizeColorQuantity `json:"breakdown,omitempty"`
}

// SalesLine is one raw sold position, the input of the fallback
// computations.
type SalesLine struct {
	ClientID   int64
	ClientName string
	VariantID  *int64
	Size       *string
	Color      *string
	Quantity   int64
	UnitPrice  float64
	SoldAt     time.Time
}
