package invoicing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
)

// HistoryRecorder feeds the inventory journal without failing the caller.
type HistoryRecorder interface {
	RecordChangeBestEffort(ctx context.Context, input ledger.ChangeInput)
}

// Service implements invoice and receipt use cases.
type Service struct {
	repo    RepositoryPort
	history HistoryRecorder
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewService constructs the invoicing service.
func NewService(repo RepositoryPort, history HistoryRecorder, c *cache.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, history: history, cache: c, logger: logger}
}

// CreateInvoice stores the invoice with its lines and moves the client
// balance in one transaction, then records the stock movements in the
// inventory journal best-effort.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	inv := Invoice{
		ClientID: req.ClientID,
		Number:   req.Number,
		Type:     req.Type,
		Currency: req.Currency,
		Notes:    req.Notes,
	}
	for _, l := range req.Lines {
		inv.TotalPrice += float64(l.Quantity) * l.UnitPrice
		inv.Lines = append(inv.Lines, Line{
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Size:      l.Size,
			Color:     l.Color,
		})
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, createdAt, err := tx.InsertInvoice(ctx, inv)
		if err != nil {
			return fmt.Errorf("invoicing: insert invoice: %w", err)
		}
		inv.ID = id
		inv.CreatedAt = createdAt
		inv.UpdatedAt = createdAt
		inv.ShippingStatus = ShippingUnshipped
		for i := range inv.Lines {
			inv.Lines[i].InvoiceID = id
			lineID, err := tx.InsertLine(ctx, inv.Lines[i])
			if err != nil {
				return fmt.Errorf("invoicing: insert line: %w", err)
			}
			inv.Lines[i].ID = lineID
		}
		if err := tx.AdjustClientBalance(ctx, inv.ClientID, inv.BalanceDelta()); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordStockMovements(ctx, inv, false)
	s.invalidate(ctx, inv)
	s.logger.Info("invoice created",
		slog.Int64("invoice_id", inv.ID),
		slog.String("number", inv.Number),
		slog.String("type", string(inv.Type)),
		slog.Float64("total", inv.TotalPrice))
	return &inv, nil
}

// DeleteInvoice removes the invoice and rolls its balance effect back in
// one transaction, then journals compensating stock movements.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.AdjustClientBalance(ctx, locked.ClientID, -locked.BalanceDelta()); err != nil {
			return err
		}
		return tx.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recordStockMovements(ctx, *inv, true)
	s.invalidate(ctx, *inv)
	s.logger.Info("invoice deleted", slog.Int64("invoice_id", id), slog.String("number", inv.Number))
	return nil
}

// CreateReceipt stores a payment and lowers the client balance.
func (s *Service) CreateReceipt(ctx context.Context, req CreateReceiptRequest) (*Receipt, error) {
	rc := Receipt{
		ClientID:  req.ClientID,
		InvoiceID: req.InvoiceID,
		Number:    req.Number,
		Amount:    req.Amount,
	}
	if req.PaidAt != nil {
		rc.PaidAt = *req.PaidAt
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if rc.PaidAt.IsZero() {
			rc.PaidAt = time.Now().UTC()
		}
		id, createdAt, err := tx.InsertReceipt(ctx, rc)
		if err != nil {
			return fmt.Errorf("invoicing: insert receipt: %w", err)
		}
		rc.ID = id
		rc.CreatedAt = createdAt
		return tx.AdjustClientBalance(ctx, rc.ClientID, -rc.Amount)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateClient(ctx, rc.ClientID)
	s.logger.Info("receipt created", slog.Int64("receipt_id", rc.ID), slog.Float64("amount", rc.Amount))
	return &rc, nil
}

// DeleteReceipt removes a payment and restores the client balance.
func (s *Service) DeleteReceipt(ctx context.Context, id int64) error {
	var clientID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rc, err := tx.GetReceiptForUpdate(ctx, id)
		if err != nil {
			return err
		}
		clientID = rc.ClientID
		if err := tx.AdjustClientBalance(ctx, rc.ClientID, rc.Amount); err != nil {
			return err
		}
		return tx.DeleteReceipt(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidateClient(ctx, clientID)
	return nil
}

// GetInvoice returns the invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns a filtered invoice page.
func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.ListInvoices(ctx, req)
}

// GetReceipt returns one receipt.
func (s *Service) GetReceipt(ctx context.Context, id int64) (*Receipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts returns a client's receipts.
func (s *Service) ListReceipts(ctx context.Context, clientID int64) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, clientID)
}

// recordStockMovements journals one movement per line. Regular sales move
// stock out, returns move it back in; reverse flips both for deletions.
func (s *Service) recordStockMovements(ctx context.Context, inv Invoice, reverse bool) {
	if s.history == nil {
		return
	}
	for _, line := range inv.Lines {
		change := -line.Quantity
		source := ledger.SourceClientInvoice
		if inv.Type == TypeReturn {
			change = line.Quantity
			source = ledger.SourceReturn
		}
		if reverse {
			change = -change
			source = ledger.SourceAdjustment
		}
		ref := inv.Number
		invoiceID := inv.ID
		s.history.RecordChangeBestEffort(ctx, ledger.ChangeInput{
			ProductID:       line.ProductID,
			VariantID:       line.VariantID,
			QuantityChange:  change,
			SourceType:      source,
			SourceID:        &invoiceID,
			SourceReference: &ref,
		})
	}
}

func (s *Service) invalidate(ctx context.Context, inv Invoice) {
	s.invalidateClient(ctx, inv.ClientID)
	seen := map[int64]bool{}
	for _, line := range inv.Lines {
		if seen[line.ProductID] {
			continue
		}
		seen[line.ProductID] = true
		if err := s.cache.Invalidate(ctx, cache.Tag{Entity: "product", ID: line.ProductID}); err != nil {
			s.logger.Warn("cache invalidation failed", slog.Int64("product_id", line.ProductID), slog.Any("error", err))
		}
	}
}

func (s *Service) invalidateClient(ctx context.Context, clientID int64) {
	if err := s.cache.Invalidate(ctx, cache.Tag{Entity: "client", ID: clientID}); err != nil {
		s.logger.Warn("cache invalidation failed", slog.Int64("client_id", clientID), slog.Any("error", err))
	}
}
