package jobs

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/reconcile"
)

type driftedStore struct {
	balance float64
}

func (s *driftedStore) GetClient(_ context.Context, id int64) (*reconcile.ClientAccount, error) {
	return &reconcile.ClientAccount{ID: id, Name: "Acme", Balance: s.balance}, nil
}

func (s *driftedStore) ListClientIDs(context.Context) ([]int64, error) {
	return []int64{1}, nil
}

func (s *driftedStore) ListInvoiceAmounts(context.Context, int64) ([]reconcile.InvoiceAmount, error) {
	return []reconcile.InvoiceAmount{{Type: "regular", Currency: "USD", Total: 300, CreatedAt: time.Now()}}, nil
}

func (s *driftedStore) ListReceiptAmounts(context.Context, int64) ([]reconcile.ReceiptAmount, error) {
	return nil, nil
}

func (s *driftedStore) CorrectBalance(_ context.Context, _ int64, calculated, _ float64) (bool, error) {
	s.balance = calculated
	return true, nil
}

type recordingMailer struct {
	sent []SendEmailPayload
}

func (m *recordingMailer) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueDefault}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReconcileAllHandlerEnqueuesReportMail(t *testing.T) {
	store := &driftedStore{balance: 500}
	svc := reconcile.NewService(store, nil, nil, discardLogger())
	mailer := &recordingMailer{}
	handler := NewReconcileAllHandler(ReconcileAllConfig{
		Service:  svc,
		Mailer:   mailer,
		ReportTo: "finance@meridian.local",
		Logger:   discardLogger(),
	})

	task, err := NewReconcileAllTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))

	require.Equal(t, 300.0, store.balance)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "finance@meridian.local", mailer.sent[0].To)
	require.True(t, strings.Contains(mailer.sent[0].Body, "Corrected: 1"), mailer.sent[0].Body)
}

func TestReconcileAllHandlerSkipsMailWithoutRecipient(t *testing.T) {
	store := &driftedStore{balance: 300}
	svc := reconcile.NewService(store, nil, nil, discardLogger())
	mailer := &recordingMailer{}
	handler := NewReconcileAllHandler(ReconcileAllConfig{
		Service: svc,
		Mailer:  mailer,
		Logger:  discardLogger(),
	})

	task, err := NewReconcileAllTask(time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), task))
	require.Empty(t, mailer.sent)
}
