package shipping

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes a fulfillment operation runs in one
// transaction. Quantity reads repeat inside the transaction so the
// validation that gates the insert sees locked rows.
type TxRepository interface {
	LockInvoice(ctx context.Context, invoiceID int64) error
	OrderedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error)
	ShippedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error)
	InsertShipment(ctx context.Context, sh Shipment) (int64, time.Time, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	GetShipmentForUpdate(ctx context.Context, id int64) (*Shipment, error)
	SetShipmentStatus(ctx context.Context, id int64, status Status, deliveredAt *time.Time) error
	DeleteShipment(ctx context.Context, id int64) error
	SetInvoiceShippingStatus(ctx context.Context, invoiceID int64, status invoicing.ShippingStatus) error
}

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	OrderedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error)
	ShippedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error)
	GetShipment(ctx context.Context, id int64) (*Shipment, error)
	ListShipments(ctx context.Context, invoiceID int64) ([]Shipment, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepo{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func orderedQuantities(ctx context.Context, q querier, invoiceID int64) (map[LineKey]int64, error) {
	rows, err := q.Query(ctx, `SELECT product_id, variant_id, size, color, SUM(quantity)
FROM invoice_lines WHERE invoice_id=$1 GROUP BY product_id, variant_id, size, color`, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanQuantities(rows)
}

func shippedQuantities(ctx context.Context, q querier, invoiceID int64) (map[LineKey]int64, error) {
	rows, err := q.Query(ctx, `SELECT i.product_id, i.variant_id, i.size, i.color, SUM(i.quantity)
FROM shipment_items i
JOIN shipments s ON s.id = i.shipment_id
WHERE s.invoice_id=$1 AND s.status <> 'cancelled'
GROUP BY i.product_id, i.variant_id, i.size, i.color`, invoiceID)
	if err != nil {
		return nil, err
	}
	return scanQuantities(rows)
}

func scanQuantities(rows pgx.Rows) (map[LineKey]int64, error) {
	defer rows.Close()
	out := map[LineKey]int64{}
	for rows.Next() {
		var productID int64
		var variantID *int64
		var size, color *string
		var qty int64
		if err := rows.Scan(&productID, &variantID, &size, &color, &qty); err != nil {
			return nil, err
		}
		out[keyFor(productID, variantID, size, color)] += qty
	}
	return out, rows.Err()
}

func (t *txRepo) LockInvoice(ctx context.Context, invoiceID int64) error {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM invoices WHERE id=$1 FOR UPDATE`, invoiceID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func (t *txRepo) OrderedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error) {
	return orderedQuantities(ctx, t.tx, invoiceID)
}

func (t *txRepo) ShippedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error) {
	return shippedQuantities(ctx, t.tx, invoiceID)
}

func (t *txRepo) InsertShipment(ctx context.Context, sh Shipment) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := t.tx.QueryRow(ctx, `INSERT INTO shipments (invoice_id, number, status, notes, shipped_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at`,
		sh.InvoiceID, sh.Number, sh.Status, sh.Notes, sh.ShippedAt).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO shipment_items (shipment_id, product_id, variant_id, size, color, quantity)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.ShipmentID, item.ProductID, item.VariantID, item.Size, item.Color, item.Quantity).Scan(&id)
	return id, err
}

const shipmentColumns = `id, invoice_id, number, status, notes, shipped_at, delivered_at, created_at, updated_at`

func scanShipment(row pgx.Row) (*Shipment, error) {
	var sh Shipment
	err := row.Scan(&sh.ID, &sh.InvoiceID, &sh.Number, &sh.Status, &sh.Notes, &sh.ShippedAt, &sh.DeliveredAt, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sh, nil
}

func (t *txRepo) GetShipmentForUpdate(ctx context.Context, id int64) (*Shipment, error) {
	return scanShipment(t.tx.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) SetShipmentStatus(ctx context.Context, id int64, status Status, deliveredAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE shipments SET status=$1, delivered_at=COALESCE($2, delivered_at), updated_at=NOW() WHERE id=$3`,
		status, deliveredAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteShipment(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM shipment_items WHERE shipment_id=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM shipments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) SetInvoiceShippingStatus(ctx context.Context, invoiceID int64, status invoicing.ShippingStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET shipping_status=$1, updated_at=NOW() WHERE id=$2`, status, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// OrderedQuantities sums invoice line quantities per position key.
func (r *Repository) OrderedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error) {
	return orderedQuantities(ctx, r.pool, invoiceID)
}

// ShippedQuantities sums non-cancelled shipment quantities per position key.
func (r *Repository) ShippedQuantities(ctx context.Context, invoiceID int64) (map[LineKey]int64, error) {
	return shippedQuantities(ctx, r.pool, invoiceID)
}

// GetShipment fetches a shipment with its items.
func (r *Repository) GetShipment(ctx context.Context, id int64) (*Shipment, error) {
	sh, err := scanShipment(r.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.listItems(ctx, id)
	if err != nil {
		return nil, err
	}
	sh.Items = items
	return sh, nil
}

func (r *Repository) listItems(ctx context.Context, shipmentID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, shipment_id, product_id, variant_id, size, color, quantity
FROM shipment_items WHERE shipment_id=$1 ORDER BY id`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ShipmentID, &it.ProductID, &it.VariantID, &it.Size, &it.Color, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListShipments returns an invoice's shipments newest first.
func (r *Repository) ListShipments(ctx context.Context, invoiceID int64) ([]Shipment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE invoice_id=$1 ORDER BY created_at DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Shipment
	for rows.Next() {
		var sh Shipment
		if err := rows.Scan(&sh.ID, &sh.InvoiceID, &sh.Number, &sh.Status, &sh.Notes, &sh.ShippedAt, &sh.DeliveredAt, &sh.CreatedAt, &sh.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}
