package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/farmanet-cl/farmanet/internal/inventory"
)

// ExpiryScanJob quarantines expired lot stock and warns about lots expiring
// soon, so FEFO picks never hand out medication past its date.
type ExpiryScanJob struct {
	inventory *inventory.Service
	logger    *slog.Logger
	now       func() time.Time
}

// NewExpiryScanJob constructs the job.
func NewExpiryScanJob(svc *inventory.Service, logger *slog.Logger) *ExpiryScanJob {
	return &ExpiryScanJob{inventory: svc, logger: logger, now: time.Now}
}

// Handle processes one expiry scan task.
func (j *ExpiryScanJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload ExpiryScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("expiry scan payload: %w", err)
	}
	if payload.WarnDays <= 0 {
		payload.WarnDays = 30
	}

	asOf := j.now()

	swept, err := j.inventory.SweepExpired(ctx, asOf)
	if err != nil {
		return fmt.Errorf("sweep expired lots: %w", err)
	}

	expiring, err := j.inventory.LotsExpiringWithin(ctx, asOf, payload.WarnDays)
	if err != nil {
		return fmt.Errorf("list expiring lots: %w", err)
	}
	for _, lot := range expiring {
		j.logger.Warn("lot expiring soon",
			slog.String("lot", lot.LotNumber),
			slog.Int("available", lot.Available),
			slog.Time("expiration", lot.Expiration))
	}

	j.logger.Info("expiry scan finished",
		slog.Int("quarantined_lots", len(swept)),
		slog.Int("expiring_lots", len(expiring)))
	return nil
}
