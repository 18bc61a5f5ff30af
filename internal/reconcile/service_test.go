package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryStore struct {
	clients  map[int64]*ClientAccount
	invoices map[int64][]InvoiceAmount
	receipts map[int64][]ReceiptAmount
	failFor  map[int64]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clients:  map[int64]*ClientAccount{},
		invoices: map[int64][]InvoiceAmount{},
		receipts: map[int64][]ReceiptAmount{},
		failFor:  map[int64]error{},
	}
}

func (m *memoryStore) GetClient(_ context.Context, id int64) (*ClientAccount, error) {
	if err := m.failFor[id]; err != nil {
		return nil, err
	}
	c, ok := m.clients[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memoryStore) ListClientIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	for id := int64(1); id <= 1000; id++ {
		if _, ok := m.clients[id]; ok {
			ids = append(ids, id)
		} else if _, ok := m.failFor[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) ListInvoiceAmounts(_ context.Context, clientID int64) ([]InvoiceAmount, error) {
	return m.invoices[clientID], nil
}

func (m *memoryStore) ListReceiptAmounts(_ context.Context, clientID int64) ([]ReceiptAmount, error) {
	return m.receipts[clientID], nil
}

func (m *memoryStore) CorrectBalance(_ context.Context, clientID int64, calculated, tolerance float64) (bool, error) {
	c, ok := m.clients[clientID]
	if !ok {
		return false, shared.ErrNotFound
	}
	if math.Abs(c.Balance-calculated) <= tolerance {
		return false, nil
	}
	c.Balance = calculated
	return true, nil
}

func newTestService(store Store) *Service {
	return NewService(store, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func at(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func TestReconcileClientCorrectsDrift(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 500}
	store.invoices[1] = []InvoiceAmount{
		{Type: "regular", Currency: "USD", Total: 300, CreatedAt: at(1)},
		{Type: "regular", Currency: "USD", Total: 200, CreatedAt: at(2)},
		{Type: "return", Currency: "USD", Total: 50, CreatedAt: at(3)},
	}
	store.receipts[1] = []ReceiptAmount{{Amount: 150, PaidAt: at(4)}}

	result, err := newTestService(store).ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 300.0, result.CalculatedBalance)
	require.Equal(t, 500.0, result.DatabaseBalance)
	require.Equal(t, -200.0, result.Difference)
	require.False(t, result.IsReconciled)
	require.True(t, result.WasUpdated)
	require.Equal(t, 4, result.TransactionCount)
	require.Equal(t, at(4), *result.LastTransactionDate)
	require.Equal(t, 300.0, store.clients[1].Balance)
}

func TestReconcileClientWithinToleranceLeavesBalance(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 100.01}
	store.invoices[1] = []InvoiceAmount{{Type: "regular", Currency: "USD", Total: 100, CreatedAt: at(1)}}

	result, err := newTestService(store).ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, result.IsReconciled)
	require.False(t, result.WasUpdated)
	require.Equal(t, 100.01, store.clients[1].Balance)
}

func TestReconcileClientJustBeyondToleranceCorrects(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 100.011}
	store.invoices[1] = []InvoiceAmount{{Type: "regular", Currency: "USD", Total: 100, CreatedAt: at(1)}}

	result, err := newTestService(store).ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, result.IsReconciled)
	require.True(t, result.WasUpdated)
	require.Equal(t, 100.0, store.clients[1].Balance)
}

func TestReconcileClientSecondRunIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 500}
	store.invoices[1] = []InvoiceAmount{{Type: "regular", Currency: "USD", Total: 300, CreatedAt: at(1)}}

	svc := newTestService(store)
	first, err := svc.ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, first.WasUpdated)
	require.Equal(t, 300.0, store.clients[1].Balance)

	second, err := svc.ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, second.IsReconciled)
	require.False(t, second.WasUpdated)
	require.Equal(t, 300.0, store.clients[1].Balance)
}

func TestReconcileClientNegativeAmountsNormalized(t *testing.T) {
	// Returns and receipts stored with negative amounts still subtract.
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 0}
	store.invoices[1] = []InvoiceAmount{
		{Type: "regular", Currency: "USD", Total: 100, CreatedAt: at(1)},
		{Type: "return", Currency: "USD", Total: -30, CreatedAt: at(2)},
	}
	store.receipts[1] = []ReceiptAmount{{Amount: -20, PaidAt: at(3)}}

	result, err := newTestService(store).ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 50.0, result.CalculatedBalance)
}

func TestReconcileClientNoTransactions(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 75}

	result, err := newTestService(store).ReconcileClient(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.CalculatedBalance)
	require.True(t, result.WasUpdated)
	require.Zero(t, result.TransactionCount)
	require.Nil(t, result.LastTransactionDate)
	require.Equal(t, 0.0, store.clients[1].Balance)
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 100}
	store.invoices[1] = []InvoiceAmount{{Type: "regular", Currency: "USD", Total: 100, CreatedAt: at(1)}}
	store.failFor[2] = errors.New("connection reset")
	store.clients[3] = &ClientAccount{ID: 3, Name: "Globex", Balance: 10}
	store.invoices[3] = []InvoiceAmount{{Type: "regular", Currency: "USD", Total: 40, CreatedAt: at(2)}}

	summary, err := newTestService(store).ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, summary.TotalClients)
	require.Equal(t, 1, summary.ReconciledClients)
	require.Equal(t, 1, summary.UpdatedClients)
	require.Equal(t, 1, summary.ErrorClients)
	require.Equal(t, 30.0, summary.TotalDifference)
	require.Equal(t, 40.0, store.clients[3].Balance)
	require.Len(t, summary.Results, 3)
	require.NotEmpty(t, summary.Results[1].Errors)
}

func TestGetBreakdownGroupsByCurrency(t *testing.T) {
	store := newMemoryStore()
	store.clients[1] = &ClientAccount{ID: 1, Name: "Acme", Balance: 120}
	store.invoices[1] = []InvoiceAmount{
		{Type: "regular", Currency: "USD", Total: 100, CreatedAt: at(1)},
		{Type: "return", Currency: "USD", Total: 25, CreatedAt: at(2)},
		{Type: "regular", Currency: "EUR", Total: 60, CreatedAt: at(3)},
	}
	store.receipts[1] = []ReceiptAmount{{Amount: 15, PaidAt: at(4)}}

	b, err := newTestService(store).GetBreakdown(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Acme", b.ClientName)
	require.Equal(t, 120.0, b.DatabaseBalance)
	require.Equal(t, 120.0, b.CalculatedBalance)
	require.Len(t, b.Currencies, 2)
	require.Equal(t, "EUR", b.Currencies[0].Currency)
	require.Equal(t, 60.0, b.Currencies[0].NetInvoiced)
	require.Equal(t, 75.0, b.Currencies[1].NetInvoiced)
	require.Equal(t, 15.0, b.ReceiptsTotal)
	require.Equal(t, 1, b.ReceiptCount)
}
