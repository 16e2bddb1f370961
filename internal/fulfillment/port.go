package fulfillment

import (
	"context"

	"github.com/google/uuid"
)

// LotPick describes the lot the inventory selected for an ingredient.
type LotPick struct {
	LotNumber      string `json:"lot_number"`
	MedicationName string `json:"medication_name"`
	IngredientName string `json:"ingredient_name"`
	Strength       string `json:"strength"`
	Route          string `json:"route"`
}

// InventoryPort is the capability interface the orchestrator depends on. The
// local adapter calls the in-process inventory service; the remote adapter
// speaks HTTP to a separate inventory deployment. Both translate their
// failures into this package's sentinels:
//
//   - FindLotForIngredient returns ErrNoEligibleLot when no lot with stock
//     exists, ErrUpstream for transport or contract violations.
//   - DeliverFromLot returns ErrInsufficientStock when the guarded decrement
//     rejects the request, ErrLotNotFound when the lot vanished after the
//     pick, ErrUpstream for transport or contract violations.
type InventoryPort interface {
	FindLotForIngredient(ctx context.Context, ingredientID uuid.UUID) (LotPick, error)
	DeliverFromLot(ctx context.Context, lotNumber string, units int) error
}
