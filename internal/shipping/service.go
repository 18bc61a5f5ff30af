package shipping

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// IdempotencyGuard dedupes shipment creation retries.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// InvoiceReader is the slice of invoicing this package needs.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, id int64) (*invoicing.Invoice, error)
}

// Service implements fulfillment use cases.
type Service struct {
	repo        RepositoryPort
	invoices    InvoiceReader
	idempotency IdempotencyGuard
	cache       *cache.Cache
	logger      *slog.Logger
}

// NewService constructs the shipping service. idempotency may be nil.
func NewService(repo RepositoryPort, invoices InvoiceReader, guard IdempotencyGuard, c *cache.Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, invoices: invoices, idempotency: guard, cache: c, logger: logger}
}

// GetShippedQuantities reports per-position fulfillment progress for an
// invoice: ordered from its lines, shipped summed over non-cancelled
// shipments.
func (s *Service) GetShippedQuantities(ctx context.Context, invoiceID int64) ([]QuantityRow, error) {
	if _, err := s.invoices.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	ordered, err := s.repo.OrderedQuantities(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	shipped, err := s.repo.ShippedQuantities(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return buildRows(ordered, shipped), nil
}

// ValidateQuantities checks a proposed shipment against the invoice's
// open quantities. Violations come back in the result, not as an error:
// an invalid proposal is a normal answer, not a failure.
func (s *Service) ValidateQuantities(ctx context.Context, invoiceID int64, proposed []ItemInput) (*ValidationResult, error) {
	if _, err := s.invoices.GetInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	ordered, err := s.repo.OrderedQuantities(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	shipped, err := s.repo.ShippedQuantities(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return validate(ordered, shipped, proposed), nil
}

func validate(ordered, shipped map[LineKey]int64, proposed []ItemInput) *ValidationResult {
	result := &ValidationResult{IsValid: true}
	fail := func(format string, args ...any) {
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	byKey := map[LineKey]int64{}
	for _, item := range proposed {
		if item.Quantity <= 0 {
			fail("product %d: quantity must be positive, got %d", item.ProductID, item.Quantity)
			continue
		}
		byKey[keyFor(item.ProductID, item.VariantID, item.Size, item.Color)] += item.Quantity
	}

	for key, qty := range byKey {
		orderedQty, ok := ordered[key]
		if !ok {
			fail("product %d (%s/%s): not on this invoice", key.ProductID, key.Size, key.Color)
			continue
		}
		remaining := orderedQty - shipped[key]
		if qty > remaining {
			fail("product %d (%s/%s): proposed %d exceeds remaining %d",
				key.ProductID, key.Size, key.Color, qty, remaining)
		}
	}
	return result
}

// Create validates the proposal, then inside one transaction re-validates
// against locked rows, inserts the shipment and recomputes the parent
// invoice's shipping_status. A duplicate idempotency key returns the
// conflict instead of a second shipment.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Shipment, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	result, err := s.ValidateQuantities(ctx, req.InvoiceID, req.Items)
	if err != nil {
		return nil, err
	}
	if !result.IsValid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuantities, result.Errors)
	}

	if s.idempotency != nil && req.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "shipping"); err != nil {
			return nil, err
		}
	}

	sh := Shipment{
		InvoiceID: req.InvoiceID,
		Number:    req.Number,
		Status:    StatusPending,
		Notes:     req.Notes,
		ShippedAt: req.ShippedAt,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockInvoice(ctx, req.InvoiceID); err != nil {
			return err
		}
		ordered, err := tx.OrderedQuantities(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		shipped, err := tx.ShippedQuantities(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if recheck := validate(ordered, shipped, req.Items); !recheck.IsValid {
			return fmt.Errorf("%w: %v", ErrInvalidQuantities, recheck.Errors)
		}

		id, createdAt, err := tx.InsertShipment(ctx, sh)
		if err != nil {
			return fmt.Errorf("shipping: insert shipment: %w", err)
		}
		sh.ID = id
		sh.CreatedAt = createdAt
		sh.UpdatedAt = createdAt
		for _, item := range req.Items {
			it := Item{
				ShipmentID: id,
				ProductID:  item.ProductID,
				VariantID:  item.VariantID,
				Size:       item.Size,
				Color:      item.Color,
				Quantity:   item.Quantity,
			}
			itemID, err := tx.InsertItem(ctx, it)
			if err != nil {
				return fmt.Errorf("shipping: insert item: %w", err)
			}
			it.ID = itemID
			sh.Items = append(sh.Items, it)
			key := keyFor(item.ProductID, item.VariantID, item.Size, item.Color)
			shipped[key] += item.Quantity
		}
		return tx.SetInvoiceShippingStatus(ctx, req.InvoiceID, deriveInvoiceStatus(buildRows(ordered, shipped)))
	})
	if err != nil {
		if s.idempotency != nil && req.IdempotencyKey != "" && !errors.Is(err, shared.ErrIdempotencyConflict) {
			if derr := s.idempotency.Delete(ctx, req.IdempotencyKey); derr != nil {
				s.logger.Warn("idempotency key rollback failed", slog.String("key", req.IdempotencyKey), slog.Any("error", derr))
			}
		}
		return nil, err
	}

	s.invalidateInvoice(ctx, req.InvoiceID)
	s.logger.Info("shipment created",
		slog.Int64("shipment_id", sh.ID),
		slog.Int64("invoice_id", sh.InvoiceID),
		slog.String("number", sh.Number))
	return &sh, nil
}

// UpdateStatus moves a shipment through its lifecycle. Cancelling takes
// its quantities out of circulation, so the parent status is recomputed
// in the same transaction.
func (s *Service) UpdateStatus(ctx context.Context, id int64, target Status) (*Shipment, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sh, err := tx.GetShipmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sh.Status.CanTransition(target) {
			return fmt.Errorf("%w: %s -> %s", ErrBadTransition, sh.Status, target)
		}
		invoiceID = sh.InvoiceID

		var deliveredAt *time.Time
		if target == StatusDelivered {
			now := time.Now().UTC()
			deliveredAt = &now
		}
		if err := tx.SetShipmentStatus(ctx, id, target, deliveredAt); err != nil {
			return err
		}
		if target == StatusCancelled {
			return s.recomputeInvoiceStatus(ctx, tx, sh.InvoiceID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateInvoice(ctx, invoiceID)
	return s.repo.GetShipment(ctx, id)
}

// Delete removes a shipment and recomputes the parent's shipping_status
// in the same transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var invoiceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sh, err := tx.GetShipmentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		invoiceID = sh.InvoiceID
		if err := tx.DeleteShipment(ctx, id); err != nil {
			return err
		}
		return s.recomputeInvoiceStatus(ctx, tx, sh.InvoiceID)
	})
	if err != nil {
		return err
	}
	s.invalidateInvoice(ctx, invoiceID)
	s.logger.Info("shipment deleted", slog.Int64("shipment_id", id), slog.Int64("invoice_id", invoiceID))
	return nil
}

// GetShipment returns one shipment with items.
func (s *Service) GetShipment(ctx context.Context, id int64) (*Shipment, error) {
	return s.repo.GetShipment(ctx, id)
}

// ListShipments returns an invoice's shipments.
func (s *Service) ListShipments(ctx context.Context, invoiceID int64) ([]Shipment, error) {
	return s.repo.ListShipments(ctx, invoiceID)
}

func (s *Service) recomputeInvoiceStatus(ctx context.Context, tx TxRepository, invoiceID int64) error {
	ordered, err := tx.OrderedQuantities(ctx, invoiceID)
	if err != nil {
		return err
	}
	shipped, err := tx.ShippedQuantities(ctx, invoiceID)
	if err != nil {
		return err
	}
	return tx.SetInvoiceShippingStatus(ctx, invoiceID, deriveInvoiceStatus(buildRows(ordered, shipped)))
}

func (s *Service) invalidateInvoice(ctx context.Context, invoiceID int64) {
	if err := s.cache.Invalidate(ctx, cache.Tag{Entity: "invoice", ID: invoiceID}); err != nil {
		s.logger.Warn("cache invalidation failed", slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
	}
}

func buildRows(ordered, shipped map[LineKey]int64) []QuantityRow {
	rows := make([]QuantityRow, 0, len(ordered))
	for key, orderedQty := range ordered {
		shippedQty := shipped[key]
		rows = append(rows, QuantityRow{
			LineKey:   key,
			Ordered:   orderedQty,
			Shipped:   shippedQty,
			Remaining: orderedQty - shippedQty,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		if a.VariantID != b.VariantID {
			return a.VariantID < b.VariantID
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.Color < b.Color
	})
	return rows
}
