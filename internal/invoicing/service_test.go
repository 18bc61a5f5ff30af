package invoicing

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryInvoicingRepo struct {
	balances map[int64]float64
	invoices map[int64]*Invoice
	receipts map[int64]*Receipt
	nextID   int64
}

func newMemoryInvoicingRepo(clientBalances map[int64]float64) *memoryInvoicingRepo {
	return &memoryInvoicingRepo{
		balances: clientBalances,
		invoices: map[int64]*Invoice{},
		receipts: map[int64]*Receipt{},
	}
}

func (m *memoryInvoicingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryInvoicingRepo) InsertInvoice(_ context.Context, inv Invoice) (int64, time.Time, error) {
	m.nextID++
	inv.ID = m.nextID
	inv.CreatedAt = time.Now()
	inv.ShippingStatus = ShippingUnshipped
	copied := inv
	copied.Lines = nil
	m.invoices[inv.ID] = &copied
	return inv.ID, inv.CreatedAt, nil
}

func (m *memoryInvoicingRepo) InsertLine(_ context.Context, line Line) (int64, error) {
	m.nextID++
	line.ID = m.nextID
	inv := m.invoices[line.InvoiceID]
	inv.Lines = append(inv.Lines, line)
	return line.ID, nil
}

func (m *memoryInvoicingRepo) InsertReceipt(_ context.Context, rc Receipt) (int64, time.Time, error) {
	m.nextID++
	rc.ID = m.nextID
	rc.CreatedAt = time.Now()
	m.receipts[rc.ID] = &rc
	return rc.ID, rc.CreatedAt, nil
}

func (m *memoryInvoicingRepo) AdjustClientBalance(_ context.Context, clientID int64, delta float64) error {
	if _, ok := m.balances[clientID]; !ok {
		return shared.ErrNotFound
	}
	m.balances[clientID] += delta
	return nil
}

func (m *memoryInvoicingRepo) DeleteInvoice(_ context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *memoryInvoicingRepo) DeleteReceipt(_ context.Context, id int64) error {
	if _, ok := m.receipts[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.receipts, id)
	return nil
}

func (m *memoryInvoicingRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return m.GetInvoice(ctx, id)
}

func (m *memoryInvoicingRepo) GetReceiptForUpdate(ctx context.Context, id int64) (*Receipt, error) {
	return m.GetReceipt(ctx, id)
}

func (m *memoryInvoicingRepo) GetInvoice(_ context.Context, id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *memoryInvoicingRepo) ListInvoices(_ context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if req.ClientID != nil && inv.ClientID != *req.ClientID {
			continue
		}
		if req.Type != nil && inv.Type != *req.Type {
			continue
		}
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (m *memoryInvoicingRepo) ListLines(_ context.Context, invoiceID int64) ([]Line, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return inv.Lines, nil
}

func (m *memoryInvoicingRepo) GetReceipt(_ context.Context, id int64) (*Receipt, error) {
	rc, ok := m.receipts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *rc
	return &copied, nil
}

func (m *memoryInvoicingRepo) ListReceipts(_ context.Context, clientID int64) ([]Receipt, error) {
	var out []Receipt
	for _, rc := range m.receipts {
		if rc.ClientID == clientID {
			out = append(out, *rc)
		}
	}
	return out, nil
}

type recordingHistory struct {
	inputs []ledger.ChangeInput
}

func (r *recordingHistory) RecordChangeBestEffort(_ context.Context, input ledger.ChangeInput) {
	r.inputs = append(r.inputs, input)
}

func newTestService(repo RepositoryPort, history HistoryRecorder) *Service {
	return NewService(repo, history, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateInvoiceMovesBalanceAndStock(t *testing.T) {
	repo := newMemoryInvoicingRepo(map[int64]float64{7: 100})
	history := &recordingHistory{}
	svc := newTestService(repo, history)
	variantID := int64(10)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		ClientID: 7, Number: "INV-001", Type: TypeRegular, Currency: "USD",
		Lines: []LineInput{
			{ProductID: 1, VariantID: &variantID, Quantity: 3, UnitPrice: 50},
			{ProductID: 2, Quantity: 1, UnitPrice: 20},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 170.0, inv.TotalPrice)
	require.Equal(t, 270.0, repo.balances[7])
	require.Equal(t, ShippingUnshipped, inv.ShippingStatus)

	require.Len(t, history.inputs, 2)
	require.Equal(t, int64(-3), history.inputs[0].QuantityChange)
	require.Equal(t, ledger.SourceClientInvoice, history.inputs[0].SourceType)
	require.Equal(t, inv.ID, *history.inputs[0].SourceID)
	require.Equal(t, "INV-001", *history.inputs[0].SourceReference)
}

func TestCreateReturnInvoiceLowersBalanceRaisesStock(t *testing.T) {
	repo := newMemoryInvoicingRepo(map[int64]float64{7: 100})
	history := &recordingHistory{}
	svc := newTestService(repo, history)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		ClientID: 7, Number: "RET-001", Type: TypeReturn, Currency: "USD",
		Lines: []LineInput{{ProductID: 1, Quantity: 2, UnitPrice: 25}},
	})
	require.NoError(t, err)
	require.Equal(t, 50.0, inv.TotalPrice)
	require.Equal(t, 50.0, repo.balances[7])

	require.Len(t, history.inputs, 1)
	require.Equal(t, int64(2), history.inputs[0].QuantityChange)
	require.Equal(t, ledger.SourceReturn, history.inputs[0].SourceType)
}

func TestCreateInvoiceUnknownClientRollsBack(t *testing.T) {
	repo := newMemoryInvoicingRepo(map[int64]float64{})
	history := &recordingHistory{}
	svc := newTestService(repo, history)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		ClientID: 99, Number: "INV-002", Type: TypeRegular, Currency: "USD",
		Lines: []LineInput{{ProductID: 1, Quantity: 1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, history.inputs)
}

func TestDeleteInvoiceRollsBackBalanceAndStock(t *testing.T) {
	repo := newMemoryInvoicingRepo(map[int64]float64{7: 0})
	history := &recordingHistory{}
	svc := newTestService(repo, history)

	inv, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		ClientID: 7, Number: "INV-003", Type: TypeRegular, Currency: "USD",
		Lines: []LineInput{{ProductID: 1, Quantity: 4, UnitPrice: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, 40.0, repo.balances[7])

	require.NoError(t, svc.DeleteInvoice(context.Background(), inv.ID))
	require.Equal(t, 0.0, repo.balances[7])
	require.Empty(t, repo.invoices)

	// One movement out on create, one compensating movement back on delete.
	require.Len(t, history.inputs, 2)
	require.Equal(t, int64(-4), history.inputs[0].QuantityChange)
	require.Equal(t, int64(4), history.inputs[1].QuantityChange)
	require.Equal(t, ledger.SourceAdjustment, history.inputs[1].SourceType)
}

func TestReceiptLifecycleMovesBalance(t *testing.T) {
	repo := newMemoryInvoicingRepo(map[int64]float64{7: 200})
	svc := newTestService(repo, &recordingHistory{})

	rc, err := svc.CreateReceipt(context.Background(), CreateReceiptRequest{
		ClientID: 7, Number: "RCP-001", Amount: 75,
	})
	require.NoError(t, err)
	require.Equal(t, 125.0, repo.balances[7])
	require.False(t, rc.PaidAt.IsZero())

	require.NoError(t, svc.DeleteReceipt(context.Background(), rc.ID))
	require.Equal(t, 200.0, repo.balances[7])
}
