package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/farmanet-cl/farmanet/internal/inventory"
)

// LocalInventory adapts the in-process inventory service to the InventoryPort
// interface, for the deployment where orchestrator and inventory share a
// process.
type LocalInventory struct {
	service *inventory.Service
}

// NewLocalInventory creates the local adapter.
func NewLocalInventory(service *inventory.Service) *LocalInventory {
	return &LocalInventory{service: service}
}

// FindLotForIngredient runs the FEFO pick directly.
func (a *LocalInventory) FindLotForIngredient(ctx context.Context, ingredientID uuid.UUID) (LotPick, error) {
	if a.service == nil {
		return LotPick{}, fmt.Errorf("%w: inventory service not initialised", ErrUpstream)
	}
	pick, err := a.service.NextExpiringLot(ctx, ingredientID)
	if err != nil {
		if errors.Is(err, inventory.ErrNoEligibleLot) {
			return LotPick{}, ErrNoEligibleLot
		}
		return LotPick{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return LotPick{
		LotNumber:      pick.LotNumber,
		MedicationName: pick.MedicationName,
		IngredientName: pick.IngredientName,
		Strength:       pick.Strength,
		Route:          pick.Route,
	}, nil
}

// DeliverFromLot performs the guarded decrement directly.
func (a *LocalInventory) DeliverFromLot(ctx context.Context, lotNumber string, units int) error {
	if a.service == nil {
		return fmt.Errorf("%w: inventory service not initialised", ErrUpstream)
	}
	_, err := a.service.Deliver(ctx, lotNumber, units)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, inventory.ErrInsufficientStock):
		return ErrInsufficientStock
	case errors.Is(err, inventory.ErrLotNotFound):
		return ErrLotNotFound
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
