// Package fulfillment converts a prescription into actual stock decrements
// and a delivery record: the duration-to-units conversion, the FEFO lot pick
// through the inventory port, the guarded decrement and the per-line outcome
// aggregation.
package fulfillment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LineStatus classifies the outcome of one prescription line.
type LineStatus string

const (
	// StatusDelivered means stock was decremented for the full requested units.
	StatusDelivered LineStatus = "delivered"
	// StatusNoStock means no eligible lot existed or the pick ran out before
	// the decrement. Nothing was delivered for the line; the run continued.
	StatusNoStock LineStatus = "no_stock"
)

// RecordStatusDelivered is the overall status persisted on a completed run.
// Kept in Spanish: it is the value downstream pharmacy systems expect.
const RecordStatusDelivered = "entregado"

// LineOutcome is the per-line result of a fulfillment run. Produced fresh per
// run and never persisted individually.
type LineOutcome struct {
	IngredientID   uuid.UUID  `json:"ingredient_id"`
	IngredientName string     `json:"ingredient_name,omitempty"`
	MedicationName string     `json:"medication_name,omitempty"`
	LotNumber      string     `json:"lot_number,omitempty"`
	RequestedUnits int        `json:"requested_units"`
	DeliveredUnits int        `json:"delivered_units"`
	Status         LineStatus `json:"status"`
}

// DeliveryRecord summarises a whole completed run: who picked the medication
// up, who handed it over and when. Written once, after all lines are
// processed, and only when no hard failure aborted the run.
type DeliveryRecord struct {
	PrescriptionID   uuid.UUID `json:"prescription_id" db:"prescription_id"`
	StaffID          uuid.UUID `json:"staff_id" db:"staff_id"`
	DeliveredAt      time.Time `json:"delivered_at" db:"delivered_at"`
	Status           string    `json:"status" db:"status"`
	PickupPersonRUT  string    `json:"pickup_person_rut" db:"pickup_person_rut"`
	PickupPersonName string    `json:"pickup_person_name" db:"pickup_person_name"`
}

// DeliverRequest is the fulfillment entry point payload.
type DeliverRequest struct {
	StaffID          uuid.UUID `json:"staff_id" validate:"required"`
	PickupPersonRUT  string    `json:"pickup_person_rut" validate:"required,max=20"`
	PickupPersonName string    `json:"pickup_person_name" validate:"required,max=100"`
}

// DeliveryResult is the aggregated outcome of a run.
type DeliveryResult struct {
	PrescriptionID uuid.UUID     `json:"prescription_id"`
	Lines          []LineOutcome `json:"lines"`
}

// SummaryLine is the legacy per-line shape.
type SummaryLine struct {
	IngredientID   uuid.UUID `json:"ingredient_id"`
	LotNumber      string    `json:"lot_number,omitempty"`
	DeliveredUnits int       `json:"delivered_units"`
}

// SummaryResult is the legacy response shape: prescription id plus a flat
// detail list.
type SummaryResult struct {
	PrescriptionID uuid.UUID     `json:"prescription_id"`
	Detail         []SummaryLine `json:"detail"`
}

// Errors surfaced by the orchestrator and its adapters.
var (
	// ErrMalformedDuration is a data-integrity problem in the prescription,
	// not a stock problem: it aborts the whole run.
	ErrMalformedDuration = errors.New("fulfillment: duration has no day count")
	// ErrNoEligibleLot and ErrInsufficientStock are soft: the orchestrator
	// absorbs them into a no_stock line outcome.
	ErrNoEligibleLot     = errors.New("fulfillment: no eligible lot")
	ErrInsufficientStock = errors.New("fulfillment: insufficient stock")
	ErrLotNotFound       = errors.New("fulfillment: lot not found")
	// ErrUpstream means the inventory collaborator was unreachable or replied
	// outside its contract. Hard failure: the run aborts, no record is written.
	ErrUpstream = errors.New("fulfillment: inventory upstream failure")
)
