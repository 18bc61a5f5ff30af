package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/clients"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository exposes the writes a document operation runs in one transaction.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv Invoice) (int64, time.Time, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	InsertReceipt(ctx context.Context, rc Receipt) (int64, time.Time, error)
	AdjustClientBalance(ctx context.Context, clientID int64, delta float64) error
	DeleteInvoice(ctx context.Context, id int64) error
	DeleteReceipt(ctx context.Context, id int64) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error)
	GetReceiptForUpdate(ctx context.Context, id int64) (*Receipt, error)
}

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	ListLines(ctx context.Context, invoiceID int64) ([]Line, error)
	GetReceipt(ctx context.Context, id int64) (*Receipt, error)
	ListReceipts(ctx context.Context, clientID int64) ([]Receipt, error)
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

const invoiceColumns = `id, client_id, number, type, currency, total_price, shipping_status, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.ClientID, &inv.Number, &inv.Type, &inv.Currency, &inv.TotalPrice,
		&inv.ShippingStatus, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (t *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (client_id, number, type, currency, total_price, shipping_status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id, created_at`,
		inv.ClientID, inv.Number, inv.Type, inv.Currency, inv.TotalPrice, ShippingUnshipped, inv.Notes).
		Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

func (t *txRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO invoice_lines (invoice_id, product_id, variant_id, quantity, unit_price, size, color)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		line.InvoiceID, line.ProductID, line.VariantID, line.Quantity, line.UnitPrice, line.Size, line.Color).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReceipt(ctx context.Context, rc Receipt) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := t.tx.QueryRow(ctx, `INSERT INTO receipts (client_id, invoice_id, number, amount, paid_at, created_at)
VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_at`,
		rc.ClientID, rc.InvoiceID, rc.Number, rc.Amount, rc.PaidAt).Scan(&id, &createdAt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return id, createdAt, nil
}

func (t *txRepo) AdjustClientBalance(ctx context.Context, clientID int64, delta float64) error {
	if err := clients.AdjustBalance(ctx, t.tx, clientID, delta); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("invoicing: client %d: %w", clientID, shared.ErrNotFound)
		}
		return err
	}
	return nil
}

func (t *txRepo) DeleteInvoice(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) DeleteReceipt(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepo) GetReceiptForUpdate(ctx context.Context, id int64) (*Receipt, error) {
	var rc Receipt
	err := t.tx.QueryRow(ctx, `SELECT id, client_id, invoice_id, number, amount, paid_at, created_at FROM receipts WHERE id=$1 FOR UPDATE`, id).
		Scan(&rc.ID, &rc.ClientID, &rc.InvoiceID, &rc.Number, &rc.Amount, &rc.PaidAt, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rc, nil
}

// GetInvoice fetches an invoice with its lines.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	lines, err := r.ListLines(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

// ListLines returns the invoice's line items ordered by id.
func (r *Repository) ListLines(ctx context.Context, invoiceID int64) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, product_id, variant_id, quantity, unit_price, size, color
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.VariantID, &l.Quantity, &l.UnitPrice, &l.Size, &l.Color); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// ListInvoices returns a filtered page of invoices with the total count.
func (r *Repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(cond string, val any) {
		where += fmt.Sprintf(cond, idx)
		args = append(args, val)
		idx++
	}
	if req.ClientID != nil {
		add(` AND client_id = $%d`, *req.ClientID)
	}
	if req.Type != nil {
		add(` AND type = $%d`, *req.Type)
	}
	if req.From != nil {
		add(` AND created_at >= $%d`, *req.From)
	}
	if req.To != nil {
		add(` AND created_at < $%d`, *req.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices`+where+
		fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, idx, idx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.ClientID, &inv.Number, &inv.Type, &inv.Currency, &inv.TotalPrice,
			&inv.ShippingStatus, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

// GetReceipt fetches a receipt by id.
func (r *Repository) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	var rc Receipt
	err := r.pool.QueryRow(ctx, `SELECT id, client_id, invoice_id, number, amount, paid_at, created_at FROM receipts WHERE id=$1`, id).
		Scan(&rc.ID, &rc.ClientID, &rc.InvoiceID, &rc.Number, &rc.Amount, &rc.PaidAt, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rc, nil
}

// ListReceipts returns a client's receipts newest first.
func (r *Repository) ListReceipts(ctx context.Context, clientID int64) ([]Receipt, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, client_id, invoice_id, number, amount, paid_at, created_at
FROM receipts WHERE client_id=$1 ORDER BY paid_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.ClientID, &rc.InvoiceID, &rc.Number, &rc.Amount, &rc.PaidAt, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
