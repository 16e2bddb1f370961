package fulfillment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists the delivery record a completed run produces.
type Recorder interface {
	Record(ctx context.Context, record DeliveryRecord) error
}

// PGRecorder writes delivery records to PostgreSQL.
type PGRecorder struct {
	pool *pgxpool.Pool
}

// NewPGRecorder constructs PGRecorder.
func NewPGRecorder(pool *pgxpool.Pool) *PGRecorder {
	return &PGRecorder{pool: pool}
}

// Record inserts one delivery row. The insert is its own unit of work,
// separate from the per-line stock decrements.
func (r *PGRecorder) Record(ctx context.Context, record DeliveryRecord) error {
	const insert = `
		INSERT INTO delivery (prescription_id, staff_id, delivered_at, status, pickup_person_rut, pickup_person_name)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, insert,
		record.PrescriptionID,
		record.StaffID,
		record.DeliveredAt,
		record.Status,
		record.PickupPersonRUT,
		record.PickupPersonName,
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
