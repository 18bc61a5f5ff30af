package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed client persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const clientColumns = `id, name, tax_id, email, phone, address, balance, is_active, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address, &c.Balance, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Create inserts a client with a zero opening balance.
func (r *Repository) Create(ctx context.Context, req CreateRequest) (*Client, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO clients (name, tax_id, email, phone, address, balance, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, TRUE, NOW(), NOW()) RETURNING `+clientColumns,
		req.Name, req.TaxID, req.Email, req.Phone, req.Address)
	return scanClient(row)
}

// Get fetches a client by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Client, error) {
	return scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
}

// ClientName returns just the display name, used by document rendering.
func (r *Repository) ClientName(ctx context.Context, id int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM clients WHERE id=$1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return name, nil
}

// List returns a filtered page of clients with the total row count.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Client, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	if req.Search != nil {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR COALESCE(tax_id,'') ILIKE $%d)`, idx, idx)
		args = append(args, "%"+*req.Search+"%")
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients`+where+
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &c.Email, &c.Phone, &c.Address, &c.Balance, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update patches mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateRequest) error {
	set := `updated_at = NOW()`
	args := []any{}
	idx := 1
	apply := func(col string, val any) {
		set += fmt.Sprintf(`, %s = $%d`, col, idx)
		args = append(args, val)
		idx++
	}
	if req.Name != nil {
		apply("name", *req.Name)
	}
	if req.TaxID != nil {
		apply("tax_id", *req.TaxID)
	}
	if req.Email != nil {
		apply("email", *req.Email)
	}
	if req.Phone != nil {
		apply("phone", *req.Phone)
	}
	if req.Address != nil {
		apply("address", *req.Address)
	}
	if req.IsActive != nil {
		apply("is_active", *req.IsActive)
	}
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE clients SET %s WHERE id = $%d`, set, idx), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AdjustBalance moves the client balance by delta inside tx. Callers that
// bill or credit a client (invoicing, receipts) go through here so the
// balance write stays in one place.
func AdjustBalance(ctx context.Context, tx pgx.Tx, id int64, delta float64) error {
	tag, err := tx.Exec(ctx, `UPDATE clients SET balance = balance + $1, updated_at = NOW() WHERE id = $2`, delta, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
