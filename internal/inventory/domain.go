package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActiveIngredient is the pharmacological substance a prescription line
// refers to. Reference data, never mutated here.
type ActiveIngredient struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	Category string    `json:"category" db:"category"`
}

// Medication is a packaged product carrying one or more active ingredients.
type Medication struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Barcode  uuid.UUID `json:"barcode" db:"barcode"`
	Name     string    `json:"name" db:"name"`
	Strength string    `json:"strength" db:"strength"`
	Route    string    `json:"route" db:"route"`
}

// MedicationLot is a physical batch of a medication. AvailableQuantity is the
// only field the fulfillment core mutates; the defect counters are adjusted by
// the defect-reporting operation.
type MedicationLot struct {
	LotNumber     string    `json:"lot_number" db:"lot_number"`
	MedicationID  uuid.UUID `json:"medication_id" db:"medication_id"`
	Expiration    time.Time `json:"expiration_date" db:"expiration_date"`
	Available     int       `json:"available_quantity" db:"available_quantity"`
	Defective     int       `json:"defective_quantity" db:"defective_quantity"`
	Expired       int       `json:"expired_quantity" db:"expired_quantity"`
	PoorCondition int       `json:"poor_condition_quantity" db:"poor_condition_quantity"`
	BrokenPackage int       `json:"broken_package_quantity" db:"broken_package_quantity"`
}

// DefectKind enumerates the defect counters a lot carries.
type DefectKind string

const (
	DefectDefective     DefectKind = "defective"
	DefectExpired       DefectKind = "expired"
	DefectPoorCondition DefectKind = "poor_condition"
	DefectBrokenPackage DefectKind = "broken_package"
)

// ParseDefectKind validates a wire-level defect kind.
func ParseDefectKind(s string) (DefectKind, error) {
	switch DefectKind(s) {
	case DefectDefective, DefectExpired, DefectPoorCondition, DefectBrokenPackage:
		return DefectKind(s), nil
	default:
		return "", ErrInvalidDefectKind
	}
}

// LotPick is the FEFO selector result: the next-expiring lot with stock for an
// ingredient, with the display fields the pharmacy desk needs.
type LotPick struct {
	LotNumber      string `json:"lot_number"`
	MedicationName string `json:"medication_name"`
	IngredientName string `json:"ingredient_name"`
	Strength       string `json:"strength"`
	Route          string `json:"route"`
}

// MedicationStock summarises available units of one medication.
type MedicationStock struct {
	MedicationID uuid.UUID `json:"medication_id"`
	Name         string    `json:"name"`
	Strength     string    `json:"strength"`
	Route        string    `json:"route"`
	TotalUnits   int       `json:"total_units"`
}

// IngredientDetail aggregates stock across every medication carrying the
// ingredient.
type IngredientDetail struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	TotalUnits      int               `json:"total_units"`
	MedicationCount int               `json:"medication_count"`
	Medications     []MedicationStock `json:"medications"`
}

// CreateLotInput describes a lot intake request, keyed by medication barcode.
type CreateLotInput struct {
	Barcode       uuid.UUID
	LotNumber     string
	Expiration    time.Time
	Quantity      int
	HasDefects    bool
	Defective     int
	Expired       int
	PoorCondition int
	BrokenPackage int
}

// Domain errors.
var (
	ErrLotNotFound        = errors.New("inventory: lot not found")
	ErrMedicationNotFound = errors.New("inventory: medication not found")
	ErrIngredientNotFound = errors.New("inventory: active ingredient not found")
	ErrNoEligibleLot      = errors.New("inventory: no eligible lot for ingredient")
	ErrInsufficientStock  = errors.New("inventory: insufficient stock for delivery")
	ErrInvalidQuantity    = errors.New("inventory: quantity must be positive")
	ErrInvalidDefectKind  = errors.New("inventory: unrecognised defect kind")
	ErrDuplicateLot       = errors.New("inventory: lot number already exists")
)
