package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RemoteInventory adapts a separate inventory service reachable over HTTP to
// the InventoryPort interface. Timeouts and transport errors surface as
// ErrUpstream, which aborts the fulfillment run.
type RemoteInventory struct {
	baseURL string
	client  *http.Client
}

// NewRemoteInventory creates the remote adapter.
func NewRemoteInventory(baseURL string, timeout time.Duration) *RemoteInventory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteInventory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FindLotForIngredient calls GET /ingredients/{id}/next_expiring_lot.
func (a *RemoteInventory) FindLotForIngredient(ctx context.Context, ingredientID uuid.UUID) (LotPick, error) {
	url := fmt.Sprintf("%s/ingredients/%s/next_expiring_lot", a.baseURL, ingredientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return LotPick{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return LotPick{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return LotPick{}, ErrNoEligibleLot
	default:
		return LotPick{}, fmt.Errorf("%w: next_expiring_lot returned %d", ErrUpstream, resp.StatusCode)
	}

	var pick LotPick
	if err := json.NewDecoder(resp.Body).Decode(&pick); err != nil {
		return LotPick{}, fmt.Errorf("%w: decode lot pick: %v", ErrUpstream, err)
	}
	if pick.LotNumber == "" {
		return LotPick{}, fmt.Errorf("%w: lot pick missing lot_number", ErrUpstream)
	}
	return pick, nil
}

// DeliverFromLot calls POST /lots/{lot}/deliver.
func (a *RemoteInventory) DeliverFromLot(ctx context.Context, lotNumber string, units int) error {
	url := fmt.Sprintf("%s/lots/%s/deliver", a.baseURL, lotNumber)

	payload, err := json.Marshal(map[string]int{"quantity": units})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrLotNotFound
	case http.StatusBadRequest:
		// The guarded decrement rejected the request.
		return ErrInsufficientStock
	default:
		return fmt.Errorf("%w: deliver returned %d", ErrUpstream, resp.StatusCode)
	}
}
