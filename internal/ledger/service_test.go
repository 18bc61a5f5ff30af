package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
	_ "github.com/meridian-erp/meridian-erp/internal/testing/guard"
)

type memoryLedgerRepo struct {
	variants map[int64]*LockedVariant
	entries  []Entry
	nextID   int64
	txErr    error
}

func newMemoryLedgerRepo(variants ...LockedVariant) *memoryLedgerRepo {
	repo := &memoryLedgerRepo{variants: map[int64]*LockedVariant{}}
	for i := range variants {
		v := variants[i]
		repo.variants[v.ID] = &v
	}
	return repo
}

func (m *memoryLedgerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return fn(ctx, m)
}

func (m *memoryLedgerRepo) LockVariant(_ context.Context, variantID int64) (*LockedVariant, error) {
	v, ok := m.variants[variantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (m *memoryLedgerRepo) LockDefaultVariant(_ context.Context, productID int64) (*LockedVariant, error) {
	var oldest *LockedVariant
	for _, v := range m.variants {
		if v.ProductID != productID {
			continue
		}
		if oldest == nil || v.ID < oldest.ID {
			oldest = v
		}
	}
	if oldest == nil {
		return nil, shared.ErrNotFound
	}
	copied := *oldest
	return &copied, nil
}

func (m *memoryLedgerRepo) InsertEntry(_ context.Context, entry Entry) (int64, time.Time, error) {
	m.nextID++
	entry.ID = m.nextID
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, entry)
	return entry.ID, entry.CreatedAt, nil
}

func (m *memoryLedgerRepo) SetVariantQuantity(_ context.Context, variantID, quantity int64) error {
	v, ok := m.variants[variantID]
	if !ok {
		return shared.ErrNotFound
	}
	v.Quantity = quantity
	return nil
}

func (m *memoryLedgerRepo) ListEntries(_ context.Context, filter EntryFilter) ([]Entry, int, error) {
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.ProductID != nil && e.ProductID != *filter.ProductID {
			continue
		}
		if filter.VariantID != nil && e.VariantID != *filter.VariantID {
			continue
		}
		if filter.SourceType != nil && e.SourceType != *filter.SourceType {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryLedgerRepo) LatestNewQuantity(_ context.Context, variantID int64) (int64, bool, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].VariantID == variantID {
			return m.entries[i].NewQuantity, true, nil
		}
	}
	return 0, false, nil
}

func (m *memoryLedgerRepo) VariantSummaries(_ context.Context, productID int64, variantID *int64) ([]VariantSummary, error) {
	var out []VariantSummary
	for _, v := range m.variants {
		if v.ProductID != productID {
			continue
		}
		if variantID != nil && v.ID != *variantID {
			continue
		}
		s := VariantSummary{VariantID: v.ID, SKU: v.SKU, CurrentQuantity: v.Quantity}
		for i := range m.entries {
			e := m.entries[i]
			if e.VariantID != v.ID {
				continue
			}
			s.EntryCount++
			if e.QuantityChange > 0 {
				s.TotalIn += e.QuantityChange
			} else {
				s.TotalOut += -e.QuantityChange
			}
			t := e.CreatedAt
			s.LastChangeAt = &t
		}
		out = append(out, s)
	}
	return out, nil
}

func newTestService(repo RepositoryPort) *Service {
	return NewService(repo, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRecordChangeSnapshotsCounter(t *testing.T) {
	repo := newMemoryLedgerRepo(LockedVariant{ID: 10, ProductID: 1, SKU: "TS-M", Quantity: 25})
	svc := newTestService(repo)
	variantID := int64(10)

	entry, err := svc.RecordChange(context.Background(), ChangeInput{
		ProductID: 1, VariantID: &variantID, QuantityChange: -5, SourceType: SourceClientInvoice,
	})
	require.NoError(t, err)
	require.Equal(t, int64(25), entry.PreviousQuantity)
	require.Equal(t, int64(20), entry.NewQuantity)
	require.Equal(t, int64(20), repo.variants[10].Quantity)

	entry, err = svc.RecordChange(context.Background(), ChangeInput{
		ProductID: 1, VariantID: &variantID, QuantityChange: 8, SourceType: SourceSupplierInvoice,
	})
	require.NoError(t, err)
	require.Equal(t, int64(20), entry.PreviousQuantity)
	require.Equal(t, int64(28), entry.NewQuantity)
	require.Equal(t, int64(28), repo.variants[10].Quantity)

	// Replaying the journal from the first snapshot lands on the counter.
	replayed := repo.entries[0].PreviousQuantity
	for _, e := range repo.entries {
		require.Equal(t, replayed, e.PreviousQuantity)
		replayed += e.QuantityChange
		require.Equal(t, replayed, e.NewQuantity)
	}
	require.Equal(t, repo.variants[10].Quantity, replayed)
}

func TestRecordChangeDefaultsToOldestVariant(t *testing.T) {
	repo := newMemoryLedgerRepo(
		LockedVariant{ID: 31, ProductID: 2, SKU: "HD-L", Quantity: 4},
		LockedVariant{ID: 12, ProductID: 2, SKU: "HD-S", Quantity: 9},
	)
	svc := newTestService(repo)

	entry, err := svc.RecordChange(context.Background(), ChangeInput{
		ProductID: 2, QuantityChange: 3, SourceType: SourceManual,
	})
	require.NoError(t, err)
	require.Equal(t, int64(12), entry.VariantID)
	require.Equal(t, int64(12), repo.variants[12].Quantity)
	require.Equal(t, int64(4), repo.variants[31].Quantity)
}

func TestRecordChangeRejectsBadInput(t *testing.T) {
	repo := newMemoryLedgerRepo(LockedVariant{ID: 10, ProductID: 1, SKU: "TS-M", Quantity: 25})
	svc := newTestService(repo)
	variantID := int64(10)

	_, err := svc.RecordChange(context.Background(), ChangeInput{
		ProductID: 1, VariantID: &variantID, QuantityChange: 1, SourceType: "whatever",
	})
	require.ErrorIs(t, err, ErrUnknownSource)

	_, err = svc.RecordChange(context.Background(), ChangeInput{
		ProductID: 1, VariantID: &variantID, QuantityChange: 0, SourceType: SourceManual,
	})
	require.ErrorIs(t, err, ErrZeroChange)

	otherProduct := int64(99)
	_, err = svc.RecordChange(context.Background(), ChangeInput{
		ProductID: otherProduct, VariantID: &variantID, QuantityChange: 1, SourceType: SourceManual,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.entries)
}

func TestRecordChangeBestEffortSwallowsFailure(t *testing.T) {
	repo := newMemoryLedgerRepo()
	repo.txErr = errors.New("connection refused")
	svc := newTestService(repo)
	variantID := int64(10)

	svc.RecordChangeBestEffort(context.Background(), ChangeInput{
		ProductID: 1, VariantID: &variantID, QuantityChange: -2, SourceType: SourceClientInvoice,
	})
	require.Empty(t, repo.entries)
}

func TestGetInventorySummaryAggregates(t *testing.T) {
	repo := newMemoryLedgerRepo(
		LockedVariant{ID: 10, ProductID: 1, SKU: "TS-M", Quantity: 25},
		LockedVariant{ID: 11, ProductID: 1, SKU: "TS-L", Quantity: 7},
	)
	svc := newTestService(repo)
	mID, lID := int64(10), int64(11)

	_, err := svc.RecordChange(context.Background(), ChangeInput{ProductID: 1, VariantID: &mID, QuantityChange: -5, SourceType: SourceClientInvoice})
	require.NoError(t, err)
	_, err = svc.RecordChange(context.Background(), ChangeInput{ProductID: 1, VariantID: &mID, QuantityChange: 10, SourceType: SourceSupplierInvoice})
	require.NoError(t, err)
	_, err = svc.RecordChange(context.Background(), ChangeInput{ProductID: 1, VariantID: &lID, QuantityChange: -3, SourceType: SourceReturn})
	require.NoError(t, err)

	summary, err := svc.GetInventorySummary(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, int64(34), summary.CurrentQuantity)
	require.Equal(t, int64(10), summary.TotalIn)
	require.Equal(t, int64(8), summary.TotalOut)
	require.Equal(t, int64(3), summary.EntryCount)
	require.NotNil(t, summary.LastChangeAt)
	require.Len(t, summary.Variants, 2)
}

func TestGetInventorySummaryDegradesToZero(t *testing.T) {
	repo := &failingSummaryRepo{}
	svc := newTestService(repo)

	summary, err := svc.GetInventorySummary(context.Background(), 42, nil)
	require.NoError(t, err)
	require.Equal(t, int64(42), summary.ProductID)
	require.Zero(t, summary.CurrentQuantity)
	require.Zero(t, summary.EntryCount)
	require.Empty(t, summary.Variants)
}

type failingSummaryRepo struct{ memoryLedgerRepo }

func (f *failingSummaryRepo) VariantSummaries(context.Context, int64, *int64) ([]VariantSummary, error) {
	return nil, errors.New("relation does not exist")
}
