// Package jobs hosts the Asynq worker and background task definitions.
package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

// Queue names.
const (
	QueueDefault = "default"
)

// Task types.
const (
	TaskLotExpiryScan      = "lots:expiry_scan"
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ExpiryScanPayload parameterises the lot expiry sweep.
type ExpiryScanPayload struct {
	// WarnDays is the look-ahead window for near-expiry warnings.
	WarnDays int `json:"warn_days"`
}

// NewExpiryScanTask builds the nightly expiry sweep task.
func NewExpiryScanTask(warnDays int) (*asynq.Task, error) {
	if warnDays <= 0 {
		return nil, errors.New("jobs: warn days must be positive")
	}
	payload, err := json.Marshal(ExpiryScanPayload{WarnDays: warnDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLotExpiryScan, payload, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload parameterises the stale-key purge.
type IdempotencyCleanupPayload struct {
	// RetentionHours is how long processed keys stay before deletion.
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the periodic idempotency key purge.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	if retentionHours <= 0 {
		return nil, errors.New("jobs: retention hours must be positive")
	}
	payload, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, payload, asynq.Queue(QueueDefault)), nil
}
