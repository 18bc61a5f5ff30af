package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort is the persistence surface the aggregators depend on.
type RepositoryPort interface {
	SummaryAggregate(ctx context.Context, productID int64) (*ProductHistorySummary, error)
	VariantSales(ctx context.Context, productID int64) ([]VariantSalesDetail, error)
	SalesLines(ctx context.Context, productID int64) ([]SalesLine, error)
}

// Repository provides PostgreSQL backed reads.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SummaryAggregate runs the primary one-shot aggregate over sold lines.
func (r *Repository) SummaryAggregate(ctx context.Context, productID int64) (*ProductHistorySummary, error) {
	s := ProductHistorySummary{ProductID: productID}
	err := r.pool.QueryRow(ctx, `SELECT
	COALESCE(SUM(l.quantity), 0),
	COUNT(DISTINCT i.client_id),
	MIN(i.created_at),
	MAX(i.created_at),
	COALESCE(AVG(l.quantity), 0)
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id
WHERE l.product_id = $1 AND i.type = 'regular'`, productID).
		Scan(&s.TotalSold, &s.UniqueCustomers, &s.FirstSaleAt, &s.LastSaleAt, &s.AvgSaleQuantity)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// VariantSales joins per-variant sold totals with the live stock counter.
func (r *Repository) VariantSales(ctx context.Context, productID int64) ([]VariantSalesDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT v.id, v.sku, v.size, v.color, v.quantity,
	COALESCE(SUM(l.quantity) FILTER (WHERE i.type = 'regular'), 0)
FROM product_variants v
LEFT JOIN invoice_lines l ON l.variant_id = v.id
LEFT JOIN invoices i ON i.id = l.invoice_id
WHERE v.product_id = $1
GROUP BY v.id, v.sku, v.size, v.color, v.quantity
ORDER BY v.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VariantSalesDetail
	for rows.Next() {
		var d VariantSalesDetail
		if err := rows.Scan(&d.VariantID, &d.SKU, &d.Size, &d.Color, &d.CurrentStock, &d.TotalSold); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SalesLines loads the raw sold positions for a product, regular invoices
// only, oldest first.
func (r *Repository) SalesLines(ctx context.Context, productID int64) ([]SalesLine, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.client_id, c.name, l.variant_id, l.size, l.color, l.quantity, l.unit_price, i.created_at
FROM invoice_lines l
JOIN invoices i ON i.id = l.invoice_id
JOIN clients c ON c.id = i.client_id
WHERE l.product_id = $1 AND i.type = 'regular'
ORDER BY i.created_at, l.id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesLine
	for rows.Next() {
		var sl SalesLine
		if err := rows.Scan(&sl.ClientID, &sl.ClientName, &sl.VariantID, &sl.Size, &sl.Color, &sl.Quantity, &sl.UnitPrice, &sl.SoldAt); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}
