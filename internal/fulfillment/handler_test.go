package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmanet-cl/farmanet/internal/prescription"
	"github.com/farmanet-cl/farmanet/internal/shared"
)

// memoryGuard is an in-process IdempotencyGuard for handler tests. Keys are
// scoped per module, matching the store's (key, module) namespace.
type memoryGuard struct {
	keys    map[[2]string]bool
	deleted [][2]string
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{keys: map[[2]string]bool{}}
}

func (g *memoryGuard) CheckAndInsert(_ context.Context, key, module string) error {
	scoped := [2]string{key, module}
	if g.keys[scoped] {
		return shared.ErrIdempotencyConflict
	}
	g.keys[scoped] = true
	return nil
}

func (g *memoryGuard) Delete(_ context.Context, key, module string) error {
	scoped := [2]string{key, module}
	delete(g.keys, scoped)
	g.deleted = append(g.deleted, scoped)
	return nil
}

func newHandlerFixture(t *testing.T) (*fixture, *memoryGuard, *httptest.Server) {
	t.Helper()
	f := newFixture(t)
	guard := newMemoryGuard()

	router := chi.NewRouter()
	NewHandler(testLogger(), f.service, guard).MountRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return f, guard, server
}

func postDelivery(t *testing.T, server *httptest.Server, prescriptionID, idemKey string) *http.Response {
	t.Helper()
	body, err := json.Marshal(deliverReq())
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost,
		fmt.Sprintf("%s/deliveries/prescriptions/%s", server.URL, prescriptionID),
		bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_Deliver(t *testing.T) {
	f, _, server := newHandlerFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 5, time.Now().AddDate(0, 6, 0))
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"})

	resp := postDelivery(t, server, f.rx.String(), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result DeliveryResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Lines, 1)
	assert.Equal(t, StatusDelivered, result.Lines[0].Status)
	assert.Equal(t, 2, result.Lines[0].DeliveredUnits)
}

func TestHandler_Deliver_MalformedID(t *testing.T) {
	_, _, server := newHandlerFixture(t)

	resp := postDelivery(t, server, "not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Deliver_UnknownPrescription(t *testing.T) {
	_, _, server := newHandlerFixture(t)

	resp := postDelivery(t, server, uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_Deliver_MissingPickupFields(t *testing.T) {
	f, _, server := newHandlerFixture(t)
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"})

	resp, err := http.Post(
		fmt.Sprintf("%s/deliveries/prescriptions/%s", server.URL, f.rx),
		"application/json",
		bytes.NewReader([]byte(`{"pickup_person_rut":"12.345.678-5"}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Deliver_MalformedDuration(t *testing.T) {
	f, _, server := newHandlerFixture(t)
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "sin número"})

	resp := postDelivery(t, server, f.rx.String(), "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_Deliver_IdempotencyConflict(t *testing.T) {
	f, _, server := newHandlerFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 10, time.Now().AddDate(0, 6, 0))
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"})

	first := postDelivery(t, server, f.rx.String(), "key-1")
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postDelivery(t, server, f.rx.String(), "key-1")
	assert.Equal(t, http.StatusConflict, second.StatusCode)
	assert.Equal(t, 8, f.lot(t, "PARA-A").Available, "replay must not decrement again")
}

func TestHandler_Deliver_HardFailureReleasesKey(t *testing.T) {
	f, guard, server := newHandlerFixture(t)
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "sin número"})

	resp := postDelivery(t, server, f.rx.String(), "key-2")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, guard.deleted, [2]string{"key-2", "fulfillment"},
		"failed runs free the key for retry, scoped to the module")
	assert.False(t, guard.keys[[2]string{"key-2", "fulfillment"}])
}

func TestHandler_Summary(t *testing.T) {
	f, _, server := newHandlerFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 5, time.Now().AddDate(0, 6, 0))
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "5 días"})

	resp, err := http.Post(
		fmt.Sprintf("%s/deliveries/prescriptions/%s/summary", server.URL, f.rx),
		"application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result SummaryResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.Len(t, result.Detail, 1)
	assert.Equal(t, 3, result.Detail[0].DeliveredUnits)
	assert.Empty(t, f.recorder.records)
}
