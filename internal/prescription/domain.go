// Package prescription reads authored prescriptions. The fulfillment core
// only consumes them; authoring lives in a separate system.
package prescription

import (
	"errors"

	"github.com/google/uuid"
)

// Line is one (ingredient, duration, frequency) entry within a prescription.
// Duration and frequency are free text as authored ("5 días", "cada 8 horas").
type Line struct {
	IngredientID uuid.UUID `json:"ingredient_id" db:"ingredient_id"`
	Duration     string    `json:"duration" db:"duration"`
	Frequency    string    `json:"frequency" db:"frequency"`
}

// Prescription is the ordered set of lines a clinician authored.
type Prescription struct {
	ID    uuid.UUID `json:"id"`
	Lines []Line    `json:"lines"`
}

// Errors.
var (
	ErrNotFound = errors.New("prescription: not found")
	ErrNoLines  = errors.New("prescription: no ingredient lines")
)
