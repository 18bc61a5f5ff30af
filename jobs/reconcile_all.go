package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
	"github.com/meridian-erp/meridian-erp/internal/reconcile"
)

const (
	// TaskReconcileAll triggers the nightly balance reconciliation batch.
	TaskReconcileAll = "reconcile:all"
)

// ReconcileAllPayload carries scheduling metadata.
type ReconcileAllPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewReconcileAllTask constructs an Asynq task for the batch run.
func NewReconcileAllTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcileAllPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileAll, body, asynq.Queue(QueueDefault)), nil
}

// EmailEnqueuer submits transactional mail tasks. Satisfied by *Client.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// ReconcileAllConfig collects the batch handler's dependencies. Mailer and
// ReportTo are optional; when both are set a summary mail is enqueued after
// each run.
type ReconcileAllConfig struct {
	Service  *reconcile.Service
	Metrics  *jobmetrics.Metrics
	Mailer   EmailEnqueuer
	ReportTo string
	Logger   *slog.Logger
}

// NewReconcileAllHandler returns the reconcile:all task handler.
func NewReconcileAllHandler(cfg ReconcileAllConfig) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReconcileAllPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := cfg.Metrics.Track("reconcile_all")
		summary, err := cfg.Service.ReconcileAll(ctx)
		if err != nil {
			return tracker.End(err)
		}
		cfg.Metrics.AddReconciled(summary.ReconciledClients, summary.UpdatedClients, summary.ErrorClients)
		cfg.Logger.Info("scheduled reconciliation finished",
			slog.Time("scheduled_for", payload.ScheduledFor),
			slog.Int("total", summary.TotalClients),
			slog.Int("updated", summary.UpdatedClients),
			slog.Int("errors", summary.ErrorClients))
		if cfg.Mailer != nil && cfg.ReportTo != "" {
			mail := SendEmailPayload{
				To:      cfg.ReportTo,
				Subject: fmt.Sprintf("Balance reconciliation %s", summary.FinishedAt.Format("2006-01-02")),
				Body: fmt.Sprintf("Clients processed: %d\nAlready reconciled: %d\nCorrected: %d\nErrors: %d\nTotal drift: %.2f\n",
					summary.TotalClients, summary.ReconciledClients, summary.UpdatedClients,
					summary.ErrorClients, summary.TotalDifference),
			}
			// The run itself succeeded, a lost report mail is not a retry reason.
			if _, err := cfg.Mailer.EnqueueSendEmail(ctx, mail); err != nil {
				cfg.Logger.Warn("enqueue reconciliation report", slog.Any("error", err))
			}
		}
		return tracker.End(nil)
	}
}
