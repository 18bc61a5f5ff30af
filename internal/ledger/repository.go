package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LockedVariant is a variant row held FOR UPDATE during a movement.
type LockedVariant struct {
	ID        int64
	ProductID int64
	SKU       string
	Quantity  int64
}

// TxRepository exposes the operations a movement runs inside one transaction.
type TxRepository interface {
	LockVariant(ctx context.Context, variantID int64) (*LockedVariant, error)
	LockDefaultVariant(ctx context.Context, productID int64) (*LockedVariant, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, time.Time, error)
	SetVariantQuantity(ctx context.Context, variantID, quantity int64) error
}

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error)
	LatestNewQuantity(ctx context.Context, variantID int64) (int64, bool, error)
	VariantSummaries(ctx context.Context, productID int64, variantID *int64) ([]VariantSummary, error)
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

func scanLockedVariant(row pgx.Row) (*LockedVariant, error) {
	var v LockedVariant
	if err := row.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Quantity); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (t *txRepo) LockVariant(ctx context.Context, variantID int64) (*LockedVariant, error) {
	return scanLockedVariant(t.tx.QueryRow(ctx,
		`SELECT id, product_id, sku, quantity FROM product_variants WHERE id=$1 FOR UPDATE`, variantID))
}

// LockDefaultVariant locks the product's oldest variant, the fallback
// target when a movement names no variant.
func (t *txRepo) LockDefaultVariant(ctx context.Context, productID int64) (*LockedVariant, error) {
	return scanLockedVariant(t.tx.QueryRow(ctx,
		`SELECT id, product_id, sku, quantity FROM product_variants WHERE product_id=$1 ORDER BY id LIMIT 1 FOR UPDATE`, productID))
}

func (t *txRepo) InsertEntry(ctx context.Context, entry Entry) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := t.tx.QueryRow(ctx, `INSERT INTO inventory_ledger
(product_id, variant_id, quantity_change, previous_quantity, new_quantity, source_type, source_id, source_reference, notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()) RETURNING id, created_at`,
		entry.ProductID, entry.VariantID, entry.QuantityChange, entry.PreviousQuantity, entry.NewQuantity,
		entry.SourceType, entry.SourceID, entry.SourceReference, entry.Notes).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

func (t *txRepo) SetVariantQuantity(ctx context.Context, variantID, quantity int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE product_variants SET quantity=$1, updated_at=NOW() WHERE id=$2`, quantity, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListEntries returns journal lines newest first with the total count.
func (r *Repository) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(cond string, val any) {
		where += fmt.Sprintf(cond, idx)
		args = append(args, val)
		idx++
	}
	if filter.ProductID != nil {
		add(` AND product_id = $%d`, *filter.ProductID)
	}
	if filter.VariantID != nil {
		add(` AND variant_id = $%d`, *filter.VariantID)
	}
	if filter.SourceType != nil {
		add(` AND source_type = $%d`, *filter.SourceType)
	}
	if filter.From != nil {
		add(` AND created_at >= $%d`, *filter.From)
	}
	if filter.To != nil {
		add(` AND created_at < $%d`, *filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_ledger`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, variant_id, quantity_change, previous_quantity, new_quantity, source_type, source_id, source_reference, notes, created_at
FROM inventory_ledger`+where+fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.VariantID, &e.QuantityChange, &e.PreviousQuantity, &e.NewQuantity,
			&e.SourceType, &e.SourceID, &e.SourceReference, &e.Notes, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// LatestNewQuantity returns the new_quantity of the variant's most recent
// entry; ok is false when the variant has no journal lines yet.
func (r *Repository) LatestNewQuantity(ctx context.Context, variantID int64) (int64, bool, error) {
	var qty int64
	err := r.pool.QueryRow(ctx,
		`SELECT new_quantity FROM inventory_ledger WHERE variant_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		variantID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

// VariantSummaries aggregates journal totals per variant for one product,
// joining the live counter from product_variants.
func (r *Repository) VariantSummaries(ctx context.Context, productID int64, variantID *int64) ([]VariantSummary, error) {
	query := `SELECT v.id, v.sku, v.quantity,
	COALESCE(SUM(CASE WHEN l.quantity_change > 0 THEN l.quantity_change ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN l.quantity_change < 0 THEN -l.quantity_change ELSE 0 END), 0),
	COUNT(l.id),
	MAX(l.created_at)
FROM product_variants v
LEFT JOIN inventory_ledger l ON l.variant_id = v.id
WHERE v.product_id = $1`
	args := []any{productID}
	if variantID != nil {
		query += ` AND v.id = $2`
		args = append(args, *variantID)
	}
	query += ` GROUP BY v.id, v.sku, v.quantity ORDER BY v.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VariantSummary
	for rows.Next() {
		var s VariantSummary
		if err := rows.Scan(&s.VariantID, &s.SKU, &s.CurrentQuantity, &s.TotalIn, &s.TotalOut, &s.EntryCount, &s.LastChangeAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
