package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/auth"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrUnknownSource indicates an unrecognized source type tag.
	ErrUnknownSource = errors.New("ledger: unknown source type")
	// ErrZeroChange indicates a movement with no quantity delta.
	ErrZeroChange = errors.New("ledger: quantity change must be non-zero")
)

// Metrics counts recorded journal entries. Nil disables counting.
type Metrics interface {
	ObserveLedgerEntry()
}

// Service records inventory movements and serves journal reads.
type Service struct {
	repo    RepositoryPort
	audit   *shared.AuditLogger
	metrics Metrics
	logger  *slog.Logger
}

// NewService constructs the ledger service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, metrics Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, logger: logger}
}

// RecordChange appends a journal entry and moves the live counter in one
// transaction. The entry snapshots the counter before and after, so
// new_quantity always equals previous_quantity plus the change.
func (s *Service) RecordChange(ctx context.Context, input ChangeInput) (*Entry, error) {
	if !input.SourceType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, input.SourceType)
	}
	if input.QuantityChange == 0 {
		return nil, ErrZeroChange
	}

	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var variant *LockedVariant
		var err error
		if input.VariantID != nil {
			variant, err = tx.LockVariant(ctx, *input.VariantID)
		} else {
			variant, err = tx.LockDefaultVariant(ctx, input.ProductID)
		}
		if err != nil {
			return fmt.Errorf("ledger: lock variant: %w", err)
		}
		if variant.ProductID != input.ProductID {
			return fmt.Errorf("ledger: variant %d does not belong to product %d: %w",
				variant.ID, input.ProductID, shared.ErrNotFound)
		}

		entry = Entry{
			ProductID:        input.ProductID,
			VariantID:        variant.ID,
			QuantityChange:   input.QuantityChange,
			PreviousQuantity: variant.Quantity,
			NewQuantity:      variant.Quantity + input.QuantityChange,
			SourceType:       input.SourceType,
			SourceID:         input.SourceID,
			SourceReference:  input.SourceReference,
			Notes:            input.Notes,
		}
		id, createdAt, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return fmt.Errorf("ledger: insert entry: %w", err)
		}
		entry.ID = id
		entry.CreatedAt = createdAt

		if err := tx.SetVariantQuantity(ctx, variant.ID, entry.NewQuantity); err != nil {
			return fmt.Errorf("ledger: update counter: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveLedgerEntry()
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  auth.ActorFromContext(ctx),
			Action:   "ledger.record_change",
			Entity:   "inventory_ledger",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta: map[string]any{
				"variant_id":      entry.VariantID,
				"quantity_change": entry.QuantityChange,
				"source_type":     entry.SourceType,
			},
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
	return &entry, nil
}

// RecordChangeBestEffort records a movement for a business operation that
// must not fail on journal errors. Failures are logged and swallowed.
func (s *Service) RecordChangeBestEffort(ctx context.Context, input ChangeInput) {
	if _, err := s.RecordChange(ctx, input); err != nil {
		s.logger.Warn("inventory history recording failed",
			slog.Int64("product_id", input.ProductID),
			slog.String("source_type", string(input.SourceType)),
			slog.Int64("quantity_change", input.QuantityChange),
			slog.Any("error", err))
	}
}

// GetInventorySummary aggregates journal activity for a product, optionally
// narrowed to one variant. The current quantity comes from the latest
// entry's snapshot, falling back to the live counter; aggregation failures
// degrade to a zeroed summary instead of an error.
func (s *Service) GetInventorySummary(ctx context.Context, productID int64, variantID *int64) (*InventorySummary, error) {
	summary := &InventorySummary{ProductID: productID}

	variants, err := s.repo.VariantSummaries(ctx, productID, variantID)
	if err != nil {
		s.logger.Warn("inventory summary aggregation failed",
			slog.Int64("product_id", productID), slog.Any("error", err))
		return summary, nil
	}

	for i := range variants {
		v := &variants[i]
		if qty, ok, err := s.repo.LatestNewQuantity(ctx, v.VariantID); err == nil && ok {
			v.CurrentQuantity = qty
		}
		summary.CurrentQuantity += v.CurrentQuantity
		summary.TotalIn += v.TotalIn
		summary.TotalOut += v.TotalOut
		summary.EntryCount += v.EntryCount
		if v.LastChangeAt != nil && (summary.LastChangeAt == nil || v.LastChangeAt.After(*summary.LastChangeAt)) {
			t := *v.LastChangeAt
			summary.LastChangeAt = &t
		}
	}
	summary.Variants = variants
	return summary, nil
}

// ListEntries returns journal lines matching the filter, newest first.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, fmt.Errorf("ledger: invalid date range %s..%s",
			filter.From.Format(time.RFC3339), filter.To.Format(time.RFC3339))
	}
	return s.repo.ListEntries(ctx, filter)
}
