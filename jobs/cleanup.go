package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

const (
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"

	// IdempotencyRetention is how long processed keys are kept so retries
	// keep deduplicating before the row is pruned.
	IdempotencyRetention = 48 * time.Hour
)

// IdempotencyCleaner removes idempotency keys older than a retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupPayload carries the retention window for one run.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupHandler returns the idempotency:cleanup task handler.
func NewIdempotencyCleanupHandler(cleaner IdempotencyCleaner, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.OlderThan <= 0 {
			payload.OlderThan = IdempotencyRetention
		}
		tracker := metrics.Track("idempotency_cleanup")
		if err := cleaner.Cleanup(ctx, payload.OlderThan); err != nil {
			return tracker.End(err)
		}
		logger.Info("idempotency keys pruned", slog.Duration("older_than", payload.OlderThan))
		return tracker.End(nil)
	}
}
