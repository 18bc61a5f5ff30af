package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

type memoryAnalyticsRepo struct {
	summary      *ProductHistorySummary
	summaryErr   error
	variants     []VariantSalesDetail
	variantsErr  error
	lines        []SalesLine
	linesErr     error
	summaryCalls int
}

func (m *memoryAnalyticsRepo) SummaryAggregate(context.Context, int64) (*ProductHistorySummary, error) {
	m.summaryCalls++
	return m.summary, m.summaryErr
}

func (m *memoryAnalyticsRepo) VariantSales(context.Context, int64) ([]VariantSalesDetail, error) {
	return m.variants, m.variantsErr
}

func (m *memoryAnalyticsRepo) SalesLines(context.Context, int64) ([]SalesLine, error) {
	return m.lines, m.linesErr
}

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func newTestService(t *testing.T, repo RepositoryPort, withCache bool) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if !withCache {
		return NewService(repo, nil, logger)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(repo, cache.New(client, time.Minute), logger)
}

func sampleLines() []SalesLine {
	day := func(d int) time.Time { return time.Date(2026, 4, d, 0, 0, 0, 0, time.UTC) }
	return []SalesLine{
		{ClientID: 1, ClientName: "Acme", VariantID: i64Ptr(10), Size: strPtr("M"), Color: strPtr("black"), Quantity: 3, UnitPrice: 20, SoldAt: day(1)},
		{ClientID: 1, ClientName: "Acme", VariantID: i64Ptr(11), Size: strPtr("L"), Color: strPtr("black"), Quantity: 2, UnitPrice: 22, SoldAt: day(3)},
		{ClientID: 2, ClientName: "Globex", VariantID: i64Ptr(10), Size: strPtr("M"), Color: strPtr("black"), Quantity: 7, UnitPrice: 20, SoldAt: day(5)},
	}
}

func TestSummaryFallsBackToLines(t *testing.T) {
	repo := &memoryAnalyticsRepo{
		summaryErr: errors.New("relation missing"),
		lines:      sampleLines(),
	}
	svc := newTestService(t, repo, false)

	s := svc.GetProductHistorySummary(context.Background(), 1)
	require.Equal(t, int64(12), s.TotalSold)
	require.Equal(t, int64(2), s.UniqueCustomers)
	require.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *s.FirstSaleAt)
	require.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), *s.LastSaleAt)
	require.InDelta(t, 4.0, s.AvgSaleQuantity, 0.001)
}

func TestSummaryZeroedWhenEverythingFails(t *testing.T) {
	repo := &memoryAnalyticsRepo{
		summaryErr: errors.New("down"),
		linesErr:   errors.New("down"),
	}
	svc := newTestService(t, repo, false)

	s := svc.GetProductHistorySummary(context.Background(), 42)
	require.Equal(t, int64(42), s.ProductID)
	require.Zero(t, s.TotalSold)
	require.Zero(t, s.UniqueCustomers)
	require.Nil(t, s.FirstSaleAt)
}

func TestSummaryCachedUntilInvalidated(t *testing.T) {
	repo := &memoryAnalyticsRepo{
		summary: &ProductHistorySummary{ProductID: 1, TotalSold: 12},
	}
	svc := newTestService(t, repo, true)

	first := svc.GetProductHistorySummary(context.Background(), 1)
	second := svc.GetProductHistorySummary(context.Background(), 1)
	require.Equal(t, first.TotalSold, second.TotalSold)
	require.Equal(t, 1, repo.summaryCalls)

	require.NoError(t, svc.cache.Invalidate(context.Background(), cache.Tag{Entity: "product", ID: 1}))
	svc.GetProductHistorySummary(context.Background(), 1)
	require.Equal(t, 2, repo.summaryCalls)
}

func TestVariantSalesFallbackOmitsStock(t *testing.T) {
	repo := &memoryAnalyticsRepo{
		variantsErr: errors.New("down"),
		lines:       sampleLines(),
	}
	svc := newTestService(t, repo, false)

	details := svc.GetVariantSalesDetails(context.Background(), 1)
	require.Len(t, details, 2)
	require.Equal(t, int64(10), details[0].VariantID)
	require.Equal(t, int64(10), details[0].TotalSold)
	require.Zero(t, details[0].CurrentStock)
}

func TestCustomerPurchaseHistoryGroupsAndSorts(t *testing.T) {
	repo := &memoryAnalyticsRepo{lines: sampleLines()}
	svc := newTestService(t, repo, false)

	purchases := svc.GetCustomerPurchaseHistory(context.Background(), 1)
	require.Len(t, purchases, 2)
	// Sorted by quantity descending: Globex bought 7, Acme 5.
	require.Equal(t, "Globex", purchases[0].ClientName)
	require.Equal(t, int64(7), purchases[0].TotalQuantity)
	require.Equal(t, 140.0, purchases[0].TotalSpent)
	require.Equal(t, int64(1), purchases[0].PurchaseCount)
	require.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), *purchases[0].LastPurchaseAt)
	require.Equal(t, "Acme", purchases[1].ClientName)
	require.Equal(t, int64(2), purchases[1].PurchaseCount)
	require.Equal(t, time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC), *purchases[1].LastPurchaseAt)
	require.Len(t, purchases[1].Breakdown, 2)
	require.Equal(t, "L", purchases[1].Breakdown[0].Size)
	require.Equal(t, int64(2), purchases[1].Breakdown[0].Quantity)
}
