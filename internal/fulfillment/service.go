package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/farmanet-cl/farmanet/internal/prescription"
)

// PrescriptionStore supplies authored prescriptions.
type PrescriptionStore interface {
	Get(ctx context.Context, id uuid.UUID) (prescription.Prescription, error)
}

// Service is the fulfillment orchestrator. It drives the per-prescription
// workflow against whichever inventory adapter it was built with.
type Service struct {
	prescriptions PrescriptionStore
	inventory     InventoryPort
	recorder      Recorder
	logger        *slog.Logger
	metrics       *Metrics
	now           func() time.Time
}

// NewService constructs the orchestrator. Recorder and metrics are optional;
// a nil recorder skips the delivery record (used by the legacy summary path
// in tests).
func NewService(prescriptions PrescriptionStore, port InventoryPort, recorder Recorder, logger *slog.Logger, metrics *Metrics) *Service {
	return &Service{
		prescriptions: prescriptions,
		inventory:     port,
		recorder:      recorder,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Deliver runs the full fulfillment workflow for a prescription: per line,
// parse the duration, compute the units owed, pick a lot (FEFO) and decrement
// its stock; then write one delivery record covering the whole run.
//
// Soft failures (no eligible lot, insufficient stock, lot vanished between
// pick and decrement) become no_stock line outcomes and the run continues.
// Hard failures (malformed duration, upstream/transport errors) abort the
// remaining lines and no delivery record is written. Decrements already
// applied by earlier lines are not rolled back; there is no compensation
// layer, and callers account for delivered units from the returned outcomes.
func (s *Service) Deliver(ctx context.Context, prescriptionID uuid.UUID, req DeliverRequest) (*DeliveryResult, error) {
	lines, err := s.run(ctx, prescriptionID)
	if err != nil {
		s.metrics.runFailed()
		return nil, err
	}

	if s.recorder != nil {
		record := DeliveryRecord{
			PrescriptionID:   prescriptionID,
			StaffID:          req.StaffID,
			DeliveredAt:      s.now(),
			Status:           RecordStatusDelivered,
			PickupPersonRUT:  req.PickupPersonRUT,
			PickupPersonName: req.PickupPersonName,
		}
		if err := s.recorder.Record(ctx, record); err != nil {
			// Stock is already decremented; surface the failure rather than
			// pretend the run completed.
			s.metrics.runFailed()
			s.logger.Error("delivery record write failed after decrements",
				slog.String("prescription", prescriptionID.String()),
				slog.Any("error", err))
			return nil, err
		}
	}

	s.metrics.runCompleted()
	s.logger.Info("fulfillment run completed",
		slog.String("prescription", prescriptionID.String()),
		slog.Int("lines", len(lines)))
	return &DeliveryResult{PrescriptionID: prescriptionID, Lines: lines}, nil
}

// Summary runs the same workflow for the legacy entry point, which carries no
// pickup metadata and therefore writes no delivery record.
func (s *Service) Summary(ctx context.Context, prescriptionID uuid.UUID) (*SummaryResult, error) {
	lines, err := s.run(ctx, prescriptionID)
	if err != nil {
		s.metrics.runFailed()
		return nil, err
	}
	s.metrics.runCompleted()

	result := &SummaryResult{PrescriptionID: prescriptionID}
	for _, line := range lines {
		result.Detail = append(result.Detail, SummaryLine{
			IngredientID:   line.IngredientID,
			LotNumber:      line.LotNumber,
			DeliveredUnits: line.DeliveredUnits,
		})
	}
	return result, nil
}

// run processes each prescription line sequentially, in authored order. Lines
// must not run concurrently: two lines can resolve to the same lot, and the
// FEFO pick for a later line depends on the decrements earlier lines applied.
func (s *Service) run(ctx context.Context, prescriptionID uuid.UUID) ([]LineOutcome, error) {
	p, err := s.prescriptions.Get(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}

	outcomes := make([]LineOutcome, 0, len(p.Lines))
	for i, line := range p.Lines {
		days, err := ParseDurationDays(line.Duration)
		if err != nil {
			return nil, fmt.Errorf("line %d ingredient %s: %w", i+1, line.IngredientID, err)
		}

		units := UnitsForDays(days)
		if units <= 0 {
			// Nothing owed: no_stock outcome without touching the inventory.
			outcomes = append(outcomes, s.noStock(LineOutcome{
				IngredientID:   line.IngredientID,
				RequestedUnits: units,
			}))
			continue
		}

		pick, err := s.inventory.FindLotForIngredient(ctx, line.IngredientID)
		if errors.Is(err, ErrNoEligibleLot) {
			outcomes = append(outcomes, s.noStock(LineOutcome{
				IngredientID:   line.IngredientID,
				RequestedUnits: units,
			}))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d ingredient %s: %w", i+1, line.IngredientID, err)
		}

		err = s.inventory.DeliverFromLot(ctx, pick.LotNumber, units)
		switch {
		case err == nil:
			outcome := LineOutcome{
				IngredientID:   line.IngredientID,
				IngredientName: pick.IngredientName,
				MedicationName: pick.MedicationName,
				LotNumber:      pick.LotNumber,
				RequestedUnits: units,
				DeliveredUnits: units,
				Status:         StatusDelivered,
			}
			s.metrics.line(StatusDelivered)
			outcomes = append(outcomes, outcome)
		case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrLotNotFound):
			// The lot ran dry (or vanished) between pick and decrement,
			// likely to a concurrent run. Soft failure for this line.
			s.logger.Warn("lot unavailable at decrement",
				slog.String("lot", pick.LotNumber),
				slog.String("ingredient", line.IngredientID.String()),
				slog.Int("units", units))
			outcomes = append(outcomes, s.noStock(LineOutcome{
				IngredientID:   line.IngredientID,
				IngredientName: pick.IngredientName,
				MedicationName: pick.MedicationName,
				RequestedUnits: units,
			}))
		default:
			return nil, fmt.Errorf("line %d lot %s: %w", i+1, pick.LotNumber, err)
		}
	}

	return outcomes, nil
}

func (s *Service) noStock(outcome LineOutcome) LineOutcome {
	outcome.DeliveredUnits = 0
	outcome.Status = StatusNoStock
	s.metrics.line(StatusNoStock)
	return outcome
}
