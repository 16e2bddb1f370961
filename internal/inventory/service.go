package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store abstracts persistence so the service runs against PostgreSQL in
// production and the in-memory store in tests.
type Store interface {
	NextExpiringLot(ctx context.Context, ingredientID uuid.UUID) (LotPick, error)
	DeliverFromLot(ctx context.Context, lotNumber string, quantity int) (MedicationLot, error)
	AddDefect(ctx context.Context, lotNumber string, kind DefectKind, quantity int) (MedicationLot, error)
	InsertLot(ctx context.Context, lot MedicationLot) (MedicationLot, error)
	MedicationByBarcode(ctx context.Context, barcode uuid.UUID) (Medication, error)
	ListMedications(ctx context.Context) ([]Medication, error)
	LotsByMedication(ctx context.Context, medicationID uuid.UUID) ([]MedicationLot, error)
	ListIngredients(ctx context.Context) ([]ActiveIngredient, error)
	IngredientDetail(ctx context.Context, ingredientID uuid.UUID) (IngredientDetail, error)
	SweepExpired(ctx context.Context, asOf time.Time) ([]MedicationLot, error)
	LotsExpiringWithin(ctx context.Context, asOf time.Time, days int) ([]MedicationLot, error)
}

// DetailCache caches ingredient detail lookups.
type DetailCache interface {
	Get(ctx context.Context, ingredientID uuid.UUID) (IngredientDetail, bool)
	Set(ctx context.Context, detail IngredientDetail)
	InvalidateAll(ctx context.Context)
}

// Service coordinates inventory operations: FEFO lot selection, the guarded
// stock decrement, defect reporting and lot intake.
type Service struct {
	store  Store
	cache  DetailCache
	logger *slog.Logger
}

// NewService builds Service. The cache is optional.
func NewService(store Store, cache DetailCache, logger *slog.Logger) *Service {
	return &Service{store: store, cache: cache, logger: logger}
}

// NextExpiringLot returns the FEFO pick for an ingredient: among lots with
// positive available stock across all medications carrying the ingredient, the
// one expiring first. Ties break on lot number ascending. Returns
// ErrNoEligibleLot when no lot qualifies.
func (s *Service) NextExpiringLot(ctx context.Context, ingredientID uuid.UUID) (LotPick, error) {
	return s.store.NextExpiringLot(ctx, ingredientID)
}

// Deliver decrements a lot's available quantity by the requested units. The
// check-and-write is a single atomic unit in the store; a request exceeding
// the available quantity fails with ErrInsufficientStock and changes nothing.
func (s *Service) Deliver(ctx context.Context, lotNumber string, quantity int) (MedicationLot, error) {
	if quantity <= 0 {
		return MedicationLot{}, ErrInvalidQuantity
	}
	lot, err := s.store.DeliverFromLot(ctx, lotNumber, quantity)
	if err != nil {
		return MedicationLot{}, err
	}
	if s.cache != nil {
		// Stock totals changed for every ingredient this medication carries.
		s.cache.InvalidateAll(ctx)
	}
	s.logger.Info("lot delivered",
		slog.String("lot", lotNumber),
		slog.Int("units", quantity),
		slog.Int("remaining", lot.Available))
	return lot, nil
}

// ReportDefect increments one of the lot's defect counters. It shares the
// ledger's guarded-update discipline but is independent of fulfillment.
func (s *Service) ReportDefect(ctx context.Context, lotNumber string, kind DefectKind, quantity int) (MedicationLot, error) {
	if quantity <= 0 {
		return MedicationLot{}, ErrInvalidQuantity
	}
	if _, err := ParseDefectKind(string(kind)); err != nil {
		return MedicationLot{}, err
	}
	return s.store.AddDefect(ctx, lotNumber, kind, quantity)
}

// CreateLot registers an incoming lot for the medication identified by
// barcode. When the intake reports no defects every defect counter starts at
// zero regardless of what the request carried.
func (s *Service) CreateLot(ctx context.Context, input CreateLotInput) (MedicationLot, error) {
	if input.Quantity < 0 {
		return MedicationLot{}, ErrInvalidQuantity
	}
	med, err := s.store.MedicationByBarcode(ctx, input.Barcode)
	if err != nil {
		return MedicationLot{}, err
	}
	lot := MedicationLot{
		LotNumber:    input.LotNumber,
		MedicationID: med.ID,
		Expiration:   input.Expiration,
		Available:    input.Quantity,
	}
	if input.HasDefects {
		lot.Defective = input.Defective
		lot.Expired = input.Expired
		lot.PoorCondition = input.PoorCondition
		lot.BrokenPackage = input.BrokenPackage
	}
	created, err := s.store.InsertLot(ctx, lot)
	if err != nil {
		return MedicationLot{}, err
	}
	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
	return created, nil
}

// MedicationByBarcode resolves a medication from its package barcode, the
// lookup the pharmacy desk scanner drives.
func (s *Service) MedicationByBarcode(ctx context.Context, barcode uuid.UUID) (Medication, error) {
	return s.store.MedicationByBarcode(ctx, barcode)
}

// ListMedications returns the medication catalogue.
func (s *Service) ListMedications(ctx context.Context) ([]Medication, error) {
	return s.store.ListMedications(ctx)
}

// LotsByMedication returns every lot of a medication.
func (s *Service) LotsByMedication(ctx context.Context, medicationID uuid.UUID) ([]MedicationLot, error) {
	return s.store.LotsByMedication(ctx, medicationID)
}

// ListIngredients returns all active ingredients.
func (s *Service) ListIngredients(ctx context.Context) ([]ActiveIngredient, error) {
	return s.store.ListIngredients(ctx)
}

// IngredientDetail aggregates per-medication stock for an ingredient, served
// from cache when possible.
func (s *Service) IngredientDetail(ctx context.Context, ingredientID uuid.UUID) (IngredientDetail, error) {
	if s.cache != nil {
		if detail, ok := s.cache.Get(ctx, ingredientID); ok {
			return detail, nil
		}
	}
	detail, err := s.store.IngredientDetail(ctx, ingredientID)
	if err != nil {
		return IngredientDetail{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, detail)
	}
	return detail, nil
}

// SweepExpired moves remaining available stock of lots past their expiration
// into the expired defect counter. Run by the nightly worker.
func (s *Service) SweepExpired(ctx context.Context, asOf time.Time) ([]MedicationLot, error) {
	swept, err := s.store.SweepExpired(ctx, asOf)
	if err != nil {
		return nil, err
	}
	for _, lot := range swept {
		s.logger.Warn("expired lot quarantined",
			slog.String("lot", lot.LotNumber),
			slog.Int("units", lot.Expired),
			slog.Time("expired_at", lot.Expiration))
	}
	if len(swept) > 0 && s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
	return swept, nil
}

// LotsExpiringWithin lists lots with stock whose expiration falls inside the
// warning window.
func (s *Service) LotsExpiringWithin(ctx context.Context, asOf time.Time, days int) ([]MedicationLot, error) {
	if days <= 0 {
		return nil, errors.New("inventory: warning window must be positive")
	}
	return s.store.LotsExpiringWithin(ctx, asOf, days)
}
