package shipping

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/invoicing"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryShippingRepo struct {
	ordered       map[int64]map[LineKey]int64
	shipments     map[int64]*Shipment
	invoiceStatus map[int64]invoicing.ShippingStatus
	nextID        int64
}

func newMemoryShippingRepo() *memoryShippingRepo {
	return &memoryShippingRepo{
		ordered:       map[int64]map[LineKey]int64{},
		shipments:     map[int64]*Shipment{},
		invoiceStatus: map[int64]invoicing.ShippingStatus{},
	}
}

func (m *memoryShippingRepo) addInvoice(invoiceID int64, lines map[LineKey]int64) {
	m.ordered[invoiceID] = lines
	m.invoiceStatus[invoiceID] = invoicing.ShippingUnshipped
}

func (m *memoryShippingRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryShippingRepo) LockInvoice(_ context.Context, invoiceID int64) error {
	if _, ok := m.ordered[invoiceID]; !ok {
		return shared.ErrNotFound
	}
	return nil
}

func (m *memoryShippingRepo) OrderedQuantities(_ context.Context, invoiceID int64) (map[LineKey]int64, error) {
	out := map[LineKey]int64{}
	for k, v := range m.ordered[invoiceID] {
		out[k] = v
	}
	return out, nil
}

func (m *memoryShippingRepo) ShippedQuantities(_ context.Context, invoiceID int64) (map[LineKey]int64, error) {
	out := map[LineKey]int64{}
	for _, sh := range m.shipments {
		if sh.InvoiceID != invoiceID || !sh.Status.Counted() {
			continue
		}
		for _, item := range sh.Items {
			out[keyFor(item.ProductID, item.VariantID, item.Size, item.Color)] += item.Quantity
		}
	}
	return out, nil
}

func (m *memoryShippingRepo) InsertShipment(_ context.Context, sh Shipment) (int64, time.Time, error) {
	m.nextID++
	sh.ID = m.nextID
	sh.CreatedAt = time.Now()
	m.shipments[sh.ID] = &sh
	return sh.ID, sh.CreatedAt, nil
}

func (m *memoryShippingRepo) InsertItem(_ context.Context, item Item) (int64, error) {
	m.nextID++
	item.ID = m.nextID
	sh := m.shipments[item.ShipmentID]
	sh.Items = append(sh.Items, item)
	return item.ID, nil
}

func (m *memoryShippingRepo) GetShipmentForUpdate(ctx context.Context, id int64) (*Shipment, error) {
	return m.GetShipment(ctx, id)
}

func (m *memoryShippingRepo) SetShipmentStatus(_ context.Context, id int64, status Status, deliveredAt *time.Time) error {
	sh, ok := m.shipments[id]
	if !ok {
		return shared.ErrNotFound
	}
	sh.Status = status
	if deliveredAt != nil {
		sh.DeliveredAt = deliveredAt
	}
	return nil
}

func (m *memoryShippingRepo) DeleteShipment(_ context.Context, id int64) error {
	if _, ok := m.shipments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.shipments, id)
	return nil
}

func (m *memoryShippingRepo) SetInvoiceShippingStatus(_ context.Context, invoiceID int64, status invoicing.ShippingStatus) error {
	if _, ok := m.ordered[invoiceID]; !ok {
		return shared.ErrNotFound
	}
	m.invoiceStatus[invoiceID] = status
	return nil
}

func (m *memoryShippingRepo) GetShipment(_ context.Context, id int64) (*Shipment, error) {
	sh, ok := m.shipments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *sh
	return &copied, nil
}

func (m *memoryShippingRepo) ListShipments(_ context.Context, invoiceID int64) ([]Shipment, error) {
	var out []Shipment
	for _, sh := range m.shipments {
		if sh.InvoiceID == invoiceID {
			out = append(out, *sh)
		}
	}
	return out, nil
}

type stubInvoiceReader struct {
	known map[int64]bool
}

func (s *stubInvoiceReader) GetInvoice(_ context.Context, id int64) (*invoicing.Invoice, error) {
	if !s.known[id] {
		return nil, shared.ErrNotFound
	}
	return &invoicing.Invoice{ID: id}, nil
}

func newTestService(repo *memoryShippingRepo, invoiceIDs ...int64) *Service {
	known := map[int64]bool{}
	for _, id := range invoiceIDs {
		known[id] = true
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, &stubInvoiceReader{known: known}, nil, nil, logger)
}

func sizePtr(s string) *string { return &s }

func TestValidateQuantitiesCollectsAllViolations(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{
		{ProductID: 5, Size: "M"}: 10,
		{ProductID: 5, Size: "L"}: 4,
	})
	svc := newTestService(repo, 1)

	result, err := svc.ValidateQuantities(context.Background(), 1, []ItemInput{
		{ProductID: 5, Size: sizePtr("M"), Quantity: 12},
		{ProductID: 5, Size: sizePtr("XL"), Quantity: 1},
		{ProductID: 5, Size: sizePtr("L"), Quantity: 2},
	})
	require.NoError(t, err)
	require.False(t, result.IsValid)
	require.Len(t, result.Errors, 2)
}

func TestValidateQuantitiesAccountsForPriorShipments(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{{ProductID: 5, Size: "M"}: 10})
	svc := newTestService(repo, 1)

	_, err := svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-001",
		Items: []ItemInput{{ProductID: 5, Size: sizePtr("M"), Quantity: 6}},
	})
	require.NoError(t, err)

	result, err := svc.ValidateQuantities(context.Background(), 1, []ItemInput{
		{ProductID: 5, Size: sizePtr("M"), Quantity: 5},
	})
	require.NoError(t, err)
	require.False(t, result.IsValid)

	result, err = svc.ValidateQuantities(context.Background(), 1, []ItemInput{
		{ProductID: 5, Size: sizePtr("M"), Quantity: 4},
	})
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.Empty(t, result.Errors)
}

func TestCreateRecomputesInvoiceStatus(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{
		{ProductID: 5, Size: "M"}: 10,
		{ProductID: 6}:            2,
	})
	svc := newTestService(repo, 1)

	_, err := svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-001",
		Items: []ItemInput{{ProductID: 5, Size: sizePtr("M"), Quantity: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.ShippingPartial, repo.invoiceStatus[1])

	_, err = svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-002",
		Items: []ItemInput{{ProductID: 6, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.ShippingFull, repo.invoiceStatus[1])
}

func TestCreateRejectsOverShipment(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{{ProductID: 5}: 3})
	svc := newTestService(repo, 1)

	_, err := svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-001",
		Items: []ItemInput{{ProductID: 5, Quantity: 4}},
	})
	require.ErrorIs(t, err, ErrInvalidQuantities)
	require.Empty(t, repo.shipments)
	require.Equal(t, invoicing.ShippingUnshipped, repo.invoiceStatus[1])
}

func TestStatusLifecycle(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{{ProductID: 5}: 3})
	svc := newTestService(repo, 1)

	sh, err := svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-001",
		Items: []ItemInput{{ProductID: 5, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, sh.Status)

	sh, err = svc.UpdateStatus(context.Background(), sh.ID, StatusShipped)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, sh.Status)

	// Delivered is terminal.
	sh, err = svc.UpdateStatus(context.Background(), sh.ID, StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, sh.Status)
	require.NotNil(t, sh.DeliveredAt)

	_, err = svc.UpdateStatus(context.Background(), sh.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrBadTransition)

	_, err = svc.UpdateStatus(context.Background(), sh.ID, "teleported")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestCancelReleasesQuantitiesAndStatus(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{{ProductID: 5}: 3})
	svc := newTestService(repo, 1)

	sh, err := svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-001",
		Items: []ItemInput{{ProductID: 5, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.ShippingFull, repo.invoiceStatus[1])

	// Pending shipments cannot cancel, they must ship first.
	_, err = svc.UpdateStatus(context.Background(), sh.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrBadTransition)

	_, err = svc.UpdateStatus(context.Background(), sh.ID, StatusShipped)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), sh.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, invoicing.ShippingUnshipped, repo.invoiceStatus[1])

	rows, err := svc.GetShippedQuantities(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(0), rows[0].Shipped)
	require.Equal(t, int64(3), rows[0].Remaining)
}

func TestDeleteRecomputesStatus(t *testing.T) {
	repo := newMemoryShippingRepo()
	repo.addInvoice(1, map[LineKey]int64{{ProductID: 5}: 3})
	svc := newTestService(repo, 1)

	sh, err := svc.Create(context.Background(), CreateRequest{
		InvoiceID: 1, Number: "SHP-001",
		Items: []ItemInput{{ProductID: 5, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, invoicing.ShippingPartial, repo.invoiceStatus[1])

	require.NoError(t, svc.Delete(context.Background(), sh.ID))
	require.Empty(t, repo.shipments)
	require.Equal(t, invoicing.ShippingUnshipped, repo.invoiceStatus[1])
}
