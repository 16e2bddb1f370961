package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// KeyCleaner purges processed idempotency keys past their retention.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob drops stale idempotency keys so the table stays small
// and old keys become reusable.
type IdempotencyCleanupJob struct {
	store  KeyCleaner
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes one cleanup task.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("idempotency cleanup payload: %w", err)
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 48
	}

	retention := time.Duration(payload.RetentionHours) * time.Hour
	if err := j.store.Cleanup(ctx, retention); err != nil {
		return fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	j.logger.Info("idempotency cleanup finished", slog.Duration("retention", retention))
	return nil
}
