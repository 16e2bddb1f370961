package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development. All
// operations serialise on one mutex, so the deliver check-and-write is atomic
// exactly like the SQL conditional update.
type MemoryStore struct {
	mu          sync.Mutex
	ingredients map[uuid.UUID]ActiveIngredient
	medications map[uuid.UUID]Medication
	// ingredient id -> medication ids carrying it
	carriers map[uuid.UUID][]uuid.UUID
	lots     map[string]*MedicationLot
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ingredients: make(map[uuid.UUID]ActiveIngredient),
		medications: make(map[uuid.UUID]Medication),
		carriers:    make(map[uuid.UUID][]uuid.UUID),
		lots:        make(map[string]*MedicationLot),
	}
}

// SeedIngredient registers an active ingredient.
func (m *MemoryStore) SeedIngredient(ing ActiveIngredient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingredients[ing.ID] = ing
}

// SeedMedication registers a medication and links it to its ingredients.
func (m *MemoryStore) SeedMedication(med Medication, ingredientIDs ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.medications[med.ID] = med
	for _, id := range ingredientIDs {
		m.carriers[id] = append(m.carriers[id], med.ID)
	}
}

// SeedLot registers a lot directly, bypassing intake validation.
func (m *MemoryStore) SeedLot(lot MedicationLot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := lot
	m.lots[lot.LotNumber] = &copied
}

// NextExpiringLot implements the FEFO pick with the documented tie-break.
func (m *MemoryStore) NextExpiringLot(_ context.Context, ingredientID uuid.UUID) (LotPick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ing, ok := m.ingredients[ingredientID]
	if !ok {
		return LotPick{}, ErrNoEligibleLot
	}

	carrying := make(map[uuid.UUID]bool)
	for _, medID := range m.carriers[ingredientID] {
		carrying[medID] = true
	}

	var candidates []*MedicationLot
	for _, lot := range m.lots {
		if lot.Available > 0 && carrying[lot.MedicationID] {
			candidates = append(candidates, lot)
		}
	}
	if len(candidates) == 0 {
		return LotPick{}, ErrNoEligibleLot
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Expiration.Equal(candidates[j].Expiration) {
			return candidates[i].Expiration.Before(candidates[j].Expiration)
		}
		return strings.Compare(candidates[i].LotNumber, candidates[j].LotNumber) < 0
	})

	best := candidates[0]
	med := m.medications[best.MedicationID]
	return LotPick{
		LotNumber:      best.LotNumber,
		MedicationName: med.Name,
		IngredientName: ing.Name,
		Strength:       med.Strength,
		Route:          med.Route,
	}, nil
}

// DeliverFromLot performs the guarded decrement under the store mutex.
func (m *MemoryStore) DeliverFromLot(_ context.Context, lotNumber string, quantity int) (MedicationLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot, ok := m.lots[lotNumber]
	if !ok {
		return MedicationLot{}, ErrLotNotFound
	}
	if lot.Available < quantity {
		return MedicationLot{}, ErrInsufficientStock
	}
	lot.Available -= quantity
	return *lot, nil
}

// AddDefect increments a defect counter.
func (m *MemoryStore) AddDefect(_ context.Context, lotNumber string, kind DefectKind, quantity int) (MedicationLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lot, ok := m.lots[lotNumber]
	if !ok {
		return MedicationLot{}, ErrLotNotFound
	}
	switch kind {
	case DefectDefective:
		lot.Defective += quantity
	case DefectExpired:
		lot.Expired += quantity
	case DefectPoorCondition:
		lot.PoorCondition += quantity
	case DefectBrokenPackage:
		lot.BrokenPackage += quantity
	default:
		return MedicationLot{}, ErrInvalidDefectKind
	}
	return *lot, nil
}

// InsertLot registers a new lot.
func (m *MemoryStore) InsertLot(_ context.Context, lot MedicationLot) (MedicationLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lots[lot.LotNumber]; exists {
		return MedicationLot{}, ErrDuplicateLot
	}
	copied := lot
	m.lots[lot.LotNumber] = &copied
	return copied, nil
}

// MedicationByBarcode resolves a medication from its barcode.
func (m *MemoryStore) MedicationByBarcode(_ context.Context, barcode uuid.UUID) (Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, med := range m.medications {
		if med.Barcode == barcode {
			return med, nil
		}
	}
	return Medication{}, ErrMedicationNotFound
}

// ListMedications returns the catalogue sorted by name.
func (m *MemoryStore) ListMedications(_ context.Context) ([]Medication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meds := make([]Medication, 0, len(m.medications))
	for _, med := range m.medications {
		meds = append(meds, med)
	}
	sort.Slice(meds, func(i, j int) bool { return meds[i].Name < meds[j].Name })
	return meds, nil
}

// LotsByMedication returns every lot of a medication, soonest expiration first.
func (m *MemoryStore) LotsByMedication(_ context.Context, medicationID uuid.UUID) ([]MedicationLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lots []MedicationLot
	for _, lot := range m.lots {
		if lot.MedicationID == medicationID {
			lots = append(lots, *lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].Expiration.Equal(lots[j].Expiration) {
			return lots[i].Expiration.Before(lots[j].Expiration)
		}
		return lots[i].LotNumber < lots[j].LotNumber
	})
	return lots, nil
}

// ListIngredients returns all ingredients sorted by name.
func (m *MemoryStore) ListIngredients(_ context.Context) ([]ActiveIngredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ingredients := make([]ActiveIngredient, 0, len(m.ingredients))
	for _, ing := range m.ingredients {
		ingredients = append(ingredients, ing)
	}
	sort.Slice(ingredients, func(i, j int) bool { return ingredients[i].Name < ingredients[j].Name })
	return ingredients, nil
}

// IngredientDetail aggregates per-medication stock.
func (m *MemoryStore) IngredientDetail(_ context.Context, ingredientID uuid.UUID) (IngredientDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ing, ok := m.ingredients[ingredientID]
	if !ok {
		return IngredientDetail{}, ErrIngredientNotFound
	}

	detail := IngredientDetail{ID: ing.ID, Name: ing.Name, Category: ing.Category}
	for _, medID := range m.carriers[ingredientID] {
		med := m.medications[medID]
		ms := MedicationStock{MedicationID: med.ID, Name: med.Name, Strength: med.Strength, Route: med.Route}
		for _, lot := range m.lots {
			if lot.MedicationID == medID {
				ms.TotalUnits += lot.Available
			}
		}
		detail.TotalUnits += ms.TotalUnits
		detail.Medications = append(detail.Medications, ms)
	}
	sort.Slice(detail.Medications, func(i, j int) bool { return detail.Medications[i].Name < detail.Medications[j].Name })
	detail.MedicationCount = len(detail.Medications)
	return detail, nil
}

// SweepExpired moves available stock of expired lots into the expired counter.
func (m *MemoryStore) SweepExpired(_ context.Context, asOf time.Time) ([]MedicationLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var swept []MedicationLot
	for _, lot := range m.lots {
		if lot.Expiration.Before(asOf) && lot.Available > 0 {
			lot.Expired += lot.Available
			lot.Available = 0
			swept = append(swept, *lot)
		}
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].LotNumber < swept[j].LotNumber })
	return swept, nil
}

// LotsExpiringWithin lists lots with stock expiring inside the window.
func (m *MemoryStore) LotsExpiringWithin(_ context.Context, asOf time.Time, days int) ([]MedicationLot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := asOf.AddDate(0, 0, days)
	var lots []MedicationLot
	for _, lot := range m.lots {
		if lot.Available > 0 && !lot.Expiration.Before(asOf) && lot.Expiration.Before(cutoff) {
			lots = append(lots, *lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if !lots[i].Expiration.Equal(lots[j].Expiration) {
			return lots[i].Expiration.Before(lots[j].Expiration)
		}
		return lots[i].LotNumber < lots[j].LotNumber
	})
	return lots, nil
}
