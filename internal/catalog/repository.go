package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateProduct inserts a product and its variants in one transaction.
func (r *Repository) CreateProduct(ctx context.Context, product Product) (*Product, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `INSERT INTO products (code, name, description, category, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		product.Code, product.Name, product.Description, product.Category).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("catalog: insert product: %w", err)
	}
	product.IsActive = true

	for i := range product.Variants {
		v := &product.Variants[i]
		v.ProductID = product.ID
		err = tx.QueryRow(ctx, `INSERT INTO product_variants (product_id, sku, size, color, quantity, unit_price, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			v.ProductID, v.SKU, v.Size, v.Color, v.Quantity, v.UnitPrice).
			Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("catalog: insert variant %s: %w", v.SKU, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProduct fetches a product with its variants.
func (r *Repository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, description, category, is_active, created_at, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	variants, err := r.ListVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Variants = variants
	return &p, nil
}

// ListVariants returns all variants of a product ordered by id.
func (r *Repository) ListVariants(ctx context.Context, productID int64) ([]Variant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, sku, size, color, quantity, unit_price, created_at, updated_at FROM product_variants WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Size, &v.Color, &v.Quantity, &v.UnitPrice, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// GetVariant fetches a single variant.
func (r *Repository) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, sku, size, color, quantity, unit_price, created_at, updated_at FROM product_variants WHERE id=$1`, id).
		Scan(&v.ID, &v.ProductID, &v.SKU, &v.Size, &v.Color, &v.Quantity, &v.UnitPrice, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// ListProducts returns a filtered, paginated product listing with totals.
func (r *Repository) ListProducts(ctx context.Context, req ListRequest) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	idx := 1
	if req.Search != nil {
		where += fmt.Sprintf(` AND (name ILIKE $%d OR code ILIKE $%d)`, idx, idx)
		args = append(args, "%"+*req.Search+"%")
		idx++
	}
	if req.Category != nil {
		where += fmt.Sprintf(` AND category = $%d`, idx)
		args = append(args, *req.Category)
		idx++
	}
	if req.IsActive != nil {
		where += fmt.Sprintf(` AND is_active = $%d`, idx)
		args = append(args, *req.IsActive)
		idx++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, code, name, description, category, is_active, created_at, updated_at FROM products` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Category, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// UpdateProduct patches mutable fields.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) error {
	set := `updated_at = NOW()`
	args := []any{}
	idx := 1
	if req.Name != nil {
		set += fmt.Sprintf(`, name = $%d`, idx)
		args = append(args, *req.Name)
		idx++
	}
	if req.Description != nil {
		set += fmt.Sprintf(`, description = $%d`, idx)
		args = append(args, *req.Description)
		idx++
	}
	if req.Category != nil {
		set += fmt.Sprintf(`, category = $%d`, idx)
		args = append(args, *req.Category)
		idx++
	}
	if req.IsActive != nil {
		set += fmt.Sprintf(`, is_active = $%d`, idx)
		args = append(args, *req.IsActive)
		idx++
	}
	args = append(args, id)
	tag, err := r.pool.Exec(ctx, fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, set, idx), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
