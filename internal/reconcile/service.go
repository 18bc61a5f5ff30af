package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// Metrics counts reconciliation outcomes. Nil disables counting.
type Metrics interface {
	ObserveReconciliation(updated bool, failed bool)
}

// Service implements the balance reconciliation engine.
type Service struct {
	store   Store
	cache   *cache.Cache
	metrics Metrics
	logger  *slog.Logger
}

// NewService constructs the reconciler.
func NewService(store Store, c *cache.Cache, metrics Metrics, logger *slog.Logger) *Service {
	return &Service{store: store, cache: c, metrics: metrics, logger: logger}
}

// calculate derives the balance a client should carry: regular invoices
// raise the debt, returns and receipts lower it.
func calculate(invoices []InvoiceAmount, receipts []ReceiptAmount) (balance float64, count int, last *time.Time) {
	touch := func(t time.Time) {
		if last == nil || t.After(*last) {
			copied := t
			last = &copied
		}
	}
	for _, inv := range invoices {
		if inv.Type == "return" {
			balance -= math.Abs(inv.Total)
		} else {
			balance += inv.Total
		}
		count++
		touch(inv.CreatedAt)
	}
	for _, rc := range receipts {
		balance -= math.Abs(rc.Amount)
		count++
		touch(rc.PaidAt)
	}
	return balance, count, last
}

// ReconcileClient recomputes one client's balance and corrects the stored
// value when it drifts beyond the tolerance.
func (s *Service) ReconcileClient(ctx context.Context, clientID int64) (*Result, error) {
	client, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.store.ListInvoiceAmounts(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load invoices for client %d: %w", clientID, err)
	}
	receipts, err := s.store.ListReceiptAmounts(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load receipts for client %d: %w", clientID, err)
	}

	calculated, count, last := calculate(invoices, receipts)
	result := &Result{
		ClientID:            clientID,
		CalculatedBalance:   calculated,
		DatabaseBalance:     client.Balance,
		Difference:          calculated - client.Balance,
		TransactionCount:    count,
		LastTransactionDate: last,
	}
	result.IsReconciled = math.Abs(result.Difference) <= Tolerance

	if !result.IsReconciled {
		updated, err := s.store.CorrectBalance(ctx, clientID, calculated, Tolerance)
		if err != nil {
			return nil, fmt.Errorf("reconcile: correct balance for client %d: %w", clientID, err)
		}
		result.WasUpdated = updated
		if updated {
			s.invalidateClient(ctx, clientID)
			s.logger.Info("client balance corrected",
				slog.Int64("client_id", clientID),
				slog.Float64("stored", client.Balance),
				slog.Float64("calculated", calculated),
				slog.Float64("difference", result.Difference))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveReconciliation(result.WasUpdated, false)
	}
	return result, nil
}

// ReconcileAll runs the engine over every active client sequentially.
// One client's failure is recorded in its result and never stops the
// batch.
func (s *Service) ReconcileAll(ctx context.Context) (*BatchSummary, error) {
	ids, err := s.store.ListClientIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list clients: %w", err)
	}

	summary := &BatchSummary{TotalClients: len(ids), StartedAt: time.Now().UTC()}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.ReconcileClient(ctx, id)
		if err != nil {
			summary.ErrorClients++
			summary.Results = append(summary.Results, Result{
				ClientID: id,
				Errors:   []string{err.Error()},
			})
			if s.metrics != nil {
				s.metrics.ObserveReconciliation(false, true)
			}
			s.logger.Error("client reconciliation failed", slog.Int64("client_id", id), slog.Any("error", err))
			continue
		}
		if result.IsReconciled {
			summary.ReconciledClients++
		}
		if result.WasUpdated {
			summary.UpdatedClients++
		}
		summary.TotalDifference += math.Abs(result.Difference)
		summary.Results = append(summary.Results, *result)
	}
	summary.FinishedAt = time.Now().UTC()
	s.logger.Info("reconciliation batch finished",
		slog.Int("total", summary.TotalClients),
		slog.Int("updated", summary.UpdatedClients),
		slog.Int("errors", summary.ErrorClients),
		slog.Float64("total_difference", summary.TotalDifference))
	return summary, nil
}

// GetBreakdown explains a client's calculated balance without mutating
// anything. The three reads are independent and run in parallel.
func (s *Service) GetBreakdown(ctx context.Context, clientID int64) (*Breakdown, error) {
	var (
		client   *ClientAccount
		invoices []InvoiceAmount
		receipts []ReceiptAmount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		client, err = s.store.GetClient(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		invoices, err = s.store.ListInvoiceAmounts(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		receipts, err = s.store.ListReceiptAmounts(gctx, clientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byCurrency := map[string]*CurrencyTotals{}
	for _, inv := range invoices {
		ct, ok := byCurrency[inv.Currency]
		if !ok {
			ct = &CurrencyTotals{Currency: inv.Currency}
			byCurrency[inv.Currency] = ct
		}
		if inv.Type == "return" {
			ct.InvoicedReturns += math.Abs(inv.Total)
		} else {
			ct.InvoicedRegular += inv.Total
		}
		ct.NetInvoiced = ct.InvoicedRegular - ct.InvoicedReturns
		ct.InvoiceCount++
	}

	breakdown := &Breakdown{
		ClientID:        client.ID,
		ClientName:      client.Name,
		DatabaseBalance: client.Balance,
	}
	for _, ct := range byCurrency {
		breakdown.Currencies = append(breakdown.Currencies, *ct)
	}
	sort.Slice(breakdown.Currencies, func(i, j int) bool {
		return breakdown.Currencies[i].Currency < breakdown.Currencies[j].Currency
	})
	for _, rc := range receipts {
		breakdown.ReceiptsTotal += math.Abs(rc.Amount)
		breakdown.ReceiptCount++
	}
	breakdown.CalculatedBalance, _, _ = calculate(invoices, receipts)
	return breakdown, nil
}

func (s *Service) invalidateClient(ctx context.Context, clientID int64) {
	if err := s.cache.Invalidate(ctx, cache.Tag{Entity: "client", ID: clientID}); err != nil {
		s.logger.Warn("cache invalidation failed", slog.Int64("client_id", clientID), slog.Any("error", err))
	}
}
