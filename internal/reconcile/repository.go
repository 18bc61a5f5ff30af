package reconcile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Store is the persistence surface the engine depends on.
type Store interface {
	GetClient(ctx context.Context, id int64) (*ClientAccount, error)
	ListClientIDs(ctx context.Context) ([]int64, error)
	ListInvoiceAmounts(ctx context.Context, clientID int64) ([]InvoiceAmount, error)
	ListReceiptAmounts(ctx context.Context, clientID int64) ([]ReceiptAmount, error)
	CorrectBalance(ctx context.Context, clientID int64, calculated, tolerance float64) (bool, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetClient loads the balance-bearing slice of a client row.
func (r *Repository) GetClient(ctx context.Context, id int64) (*ClientAccount, error) {
	var c ClientAccount
	err := r.pool.QueryRow(ctx, `SELECT id, name, balance FROM clients WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListClientIDs returns every active client id in stable order.
func (r *Repository) ListClientIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM clients WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListInvoiceAmounts returns the client's invoice totals.
func (r *Repository) ListInvoiceAmounts(ctx context.Context, clientID int64) ([]InvoiceAmount, error) {
	rows, err := r.pool.Query(ctx, `SELECT type, currency, total_price, created_at FROM invoices WHERE client_id=$1`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoiceAmount
	for rows.Next() {
		var a InvoiceAmount
		if err := rows.Scan(&a.Type, &a.Currency, &a.Total, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListReceiptAmounts returns the client's receipt amounts.
func (r *Repository) ListReceiptAmounts(ctx context.Context, clientID int64) ([]ReceiptAmount, error) {
	rows, err := r.pool.Query(ctx, `SELECT amount, paid_at FROM receipts WHERE client_id=$1`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReceiptAmount
	for rows.Next() {
		var a ReceiptAmount
		if err := rows.Scan(&a.Amount, &a.PaidAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CorrectBalance writes the calculated balance only when the stored one
// still drifts beyond tolerance, folding the re-check into the UPDATE so
// a concurrent correction cannot be overwritten with a stale value.
func (r *Repository) CorrectBalance(ctx context.Context, clientID int64, calculated, tolerance float64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE clients SET balance=$1, updated_at=NOW() WHERE id=$2 AND ABS(balance - $1) > $3`,
		calculated, clientID, tolerance)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
