package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// Service serves the sales aggregators.
type Service struct {
	repo   RepositoryPort
	cache  *cache.Cache
	logger *slog.Logger
}

// NewService constructs the analytics service.
func NewService(repo RepositoryPort, c *cache.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: c, logger: logger}
}

func productTags(productID int64) []cache.Tag {
	return []cache.Tag{{Entity: "product", ID: productID}}
}

// GetProductHistorySummary returns a product's sales totals. A failing
// aggregate falls back to computing from raw lines, then to zeros.
func (s *Service) GetProductHistorySummary(ctx context.Context, productID int64) *ProductHistorySummary {
	var summary ProductHistorySummary
	key := fmt.Sprintf("analytics:summary:%d", productID)
	err := s.cache.FetchJSON(ctx, key, productTags(productID), &summary, func(ctx context.Context) (interface{}, error) {
		return s.loadSummary(ctx, productID), nil
	})
	if err != nil {
		s.logger.Warn("summary cache fetch failed", slog.Int64("product_id", productID), slog.Any("error", err))
		return s.loadSummary(ctx, productID)
	}
	return &summary
}

func (s *Service) loadSummary(ctx context.Context, productID int64) *ProductHistorySummary {
	summary, err := s.repo.SummaryAggregate(ctx, productID)
	if err == nil {
		return summary
	}
	s.logger.Warn("summary aggregate failed, recomputing from lines",
		slog.Int64("product_id", productID), slog.Any("error", err))

	lines, err := s.repo.SalesLines(ctx, productID)
	if err != nil {
		s.logger.Warn("summary fallback failed", slog.Int64("product_id", productID), slog.Any("error", err))
		return &ProductHistorySummary{ProductID: productID}
	}
	out := &ProductHistorySummary{ProductID: productID}
	customers := map[int64]bool{}
	for _, l := range lines {
		out.TotalSold += l.Quantity
		customers[l.ClientID] = true
		t := l.SoldAt
		if out.FirstSaleAt == nil || t.Before(*out.FirstSaleAt) {
			first := t
			out.FirstSaleAt = &first
		}
		if out.LastSaleAt == nil || t.After(*out.LastSaleAt) {
			last := t
			out.LastSaleAt = &last
		}
	}
	out.UniqueCustomers = int64(len(customers))
	if len(lines) > 0 {
		out.AvgSaleQuantity = float64(out.TotalSold) / float64(len(lines))
	}
	return out
}

// GetVariantSalesDetails returns per-variant sold totals next to live
// stock. Failures degrade to an empty list.
func (s *Service) GetVariantSalesDetails(ctx context.Context, productID int64) []VariantSalesDetail {
	var details []VariantSalesDetail
	key := fmt.Sprintf("analytics:variants:%d", productID)
	err := s.cache.FetchJSON(ctx, key, productTags(productID), &details, func(ctx context.Context) (interface{}, error) {
		return s.loadVariantSales(ctx, productID), nil
	})
	if err != nil {
		s.logger.Warn("variant sales cache fetch failed", slog.Int64("product_id", productID), slog.Any("error", err))
		return s.loadVariantSales(ctx, productID)
	}
	return details
}

func (s *Service) loadVariantSales(ctx context.Context, productID int64) []VariantSalesDetail {
	details, err := s.repo.VariantSales(ctx, productID)
	if err == nil {
		return details
	}
	s.logger.Warn("variant sales query failed, recomputing from lines",
		slog.Int64("product_id", productID), slog.Any("error", err))

	lines, err := s.repo.SalesLines(ctx, productID)
	if err != nil {
		s.logger.Warn("variant sales fallback failed", slog.Int64("product_id", productID), slog.Any("error", err))
		return nil
	}
	// Stock counters are unreachable on this path; report sold totals only.
	byVariant := map[int64]*VariantSalesDetail{}
	for _, l := range lines {
		if l.VariantID == nil {
			continue
		}
		d, ok := byVariant[*l.VariantID]
		if !ok {
			d = &VariantSalesDetail{VariantID: *l.VariantID, Size: l.Size, Color: l.Color}
			byVariant[*l.VariantID] = d
		}
		d.TotalSold += l.Quantity
	}
	out := make([]VariantSalesDetail, 0, len(byVariant))
	for _, d := range byVariant {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariantID < out[j].VariantID })
	return out
}

// GetCustomerPurchaseHistory groups a product's sales per client with a
// size/color breakdown. Failures degrade to an empty list.
func (s *Service) GetCustomerPurchaseHistory(ctx context.Context, productID int64) []CustomerPurchase {
	var purchases []CustomerPurchase
	key := fmt.Sprintf("analytics:customers:%d", productID)
	err := s.cache.FetchJSON(ctx, key, productTags(productID), &purchases, func(ctx context.Context) (interface{}, error) {
		return s.loadCustomerPurchases(ctx, productID), nil
	})
	if err != nil {
		s.logger.Warn("customer history cache fetch failed", slog.Int64("product_id", productID), slog.Any("error", err))
		return s.loadCustomerPurchases(ctx, productID)
	}
	return purchases
}

func (s *Service) loadCustomerPurchases(ctx context.Context, productID int64) []CustomerPurchase {
	lines, err := s.repo.SalesLines(ctx, productID)
	if err != nil {
		s.logger.Warn("customer history load failed", slog.Int64("product_id", productID), slog.Any("error", err))
		return nil
	}

	type cell struct {
		size, color string
	}
	byClient := map[int64]*CustomerPurchase{}
	cells := map[int64]map[cell]int64{}
	for _, l := range lines {
		cp, ok := byClient[l.ClientID]
		if !ok {
			cp = &CustomerPurchase{ClientID: l.ClientID, ClientName: l.ClientName}
			byClient[l.ClientID] = cp
			cells[l.ClientID] = map[cell]int64{}
		}
		cp.TotalQuantity += l.Quantity
		cp.TotalSpent += float64(l.Quantity) * l.UnitPrice
		cp.PurchaseCount++
		if cp.LastPurchaseAt == nil || l.SoldAt.After(*cp.LastPurchaseAt) {
			last := l.SoldAt
			cp.LastPurchaseAt = &last
		}
		c := cell{}
		if l.Size != nil {
			c.size = *l.Size
		}
		if l.Color != nil {
			c.color = *l.Color
		}
		cells[l.ClientID][c] += l.Quantity
	}

	out := make([]CustomerPurchase, 0, len(byClient))
	for id, cp := range byClient {
		for c, qty := range cells[id] {
			cp.Breakdown = append(cp.Breakdown, SizeColorQuantity{Size: c.size, Color: c.color, Quantity: qty})
		}
		sort.Slice(cp.Breakdown, func(i, j int) bool {
			a, b := cp.Breakdown[i], cp.Breakdown[j]
			if a.Size != b.Size {
				return a.Size < b.Size
			}
			return a.Color < b.Color
		})
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalQuantity > out[j].TotalQuantity })
	return out
}
