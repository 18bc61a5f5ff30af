// Package catalog maintains products and their sellable variants. The
// quantity column on product_variants is the authoritative stock counter;
// the ledger package records how it got there.
package catalog

import (
	"context"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// Service implements catalog use cases.
type Service struct {
	repo   *Repository
	cache  *cache.Cache
	logger *slog.Logger
}

// NewService constructs the catalog service.
func NewService(repo *Repository, c *cache.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: c, logger: logger}
}

// CreateProduct registers a product and its initial variants.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	product := Product{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, Variant{
			SKU:       v.SKU,
			Size:      v.Size,
			Color:     v.Color,
			Quantity:  v.Quantity,
			UnitPrice: v.UnitPrice,
		})
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	s.logger.Info("product created", slog.Int64("product_id", created.ID), slog.String("code", created.Code))
	return created, nil
}

// GetProduct returns a product with variants.
func (s *Service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// GetVariant returns a single variant.
func (s *Service) GetVariant(ctx context.Context, id int64) (*Variant, error) {
	return s.repo.GetVariant(ctx, id)
}

// ListProducts returns a page of products.
func (s *Service) ListProducts(ctx context.Context, req ListRequest) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, req)
}

// UpdateProduct patches product fields and invalidates cached aggregates
// keyed to the product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	if err := s.repo.UpdateProduct(ctx, id, req); err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, cache.Tag{Entity: "product", ID: id}); err != nil {
		s.logger.Warn("cache invalidation failed", slog.Int64("product_id", id), slog.Any("error", err))
	}
	return s.repo.GetProduct(ctx, id)
}
