package inventory

import (
	"bytes"
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
)

func newTestServer(t *testing.T) (*seededStore, *httptest.Server) {
	t.Helper()
	s := newSeededStore(t)

	router := chi.NewRouter()
	NewHandler(testLogger(), s.service).MountRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return s, server
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_Deliver(t *testing.T) {
	s, server := newTestServer(t)
	s.seedLot("LOT-A", 10, time.Now().AddDate(0, 6, 0))

	resp := postJSON(t, server.URL+"/lots/LOT-A/deliver", map[string]int{"quantity": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lot MedicationLot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lot))
	assert.Equal(t, 6, lot.Available)
}

func TestHandler_Deliver_Insufficient(t *testing.T) {
	s, server := newTestServer(t)
	s.seedLot("LOT-A", 3, time.Now().AddDate(0, 6, 0))

	resp := postJSON(t, server.URL+"/lots/LOT-A/deliver", map[string]int{"quantity": 4})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 3, s.lot(t, "LOT-A").Available)
}

func TestHandler_Deliver_BadRequests(t *testing.T) {
	s, server := newTestServer(t)
	s.seedLot("LOT-A", 3, time.Now().AddDate(0, 6, 0))

	resp := postJSON(t, server.URL+"/lots/LOT-A/deliver", map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, server.URL+"/lots/LOT-A/deliver", map[string]int{"quantity": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, server.URL+"/lots/GONE/deliver", map[string]int{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_ReportDefect(t *testing.T) {
	s, server := newTestServer(t)
	s.seedLot("LOT-A", 10, time.Now().AddDate(0, 6, 0))

	resp := postJSON(t, server.URL+"/lots/LOT-A/defects",
		map[string]any{"kind": "broken_package", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lot MedicationLot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lot))
	assert.Equal(t, 2, lot.BrokenPackage)

	resp = postJSON(t, server.URL+"/lots/LOT-A/defects",
		map[string]any{"kind": "melted", "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_CreateLot(t *testing.T) {
	s, server := newTestServer(t)

	payload := map[string]any{
		"barcode":         s.medication.Barcode,
		"lot_number":      "LOT-NEW",
		"expiration_date": time.Now().AddDate(1, 0, 0).Format(time.RFC3339),
		"quantity":        50,
	}
	resp := postJSON(t, server.URL+"/lots", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same lot number again conflicts.
	resp = postJSON(t, server.URL+"/lots", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	payload["lot_number"] = "LOT-OTHER"
	payload["barcode"] = uuid.New()
	resp = postJSON(t, server.URL+"/lots", payload)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_NextExpiringLot(t *testing.T) {
	s, server := newTestServer(t)
	now := time.Now()
	s.seedLot("LOT-LATE", 10, now.AddDate(1, 0, 0))
	s.seedLot("LOT-SOON", 10, now.AddDate(0, 1, 0))

	resp := getJSON(t, fmt.Sprintf("%s/ingredients/%s/next_expiring_lot", server.URL, s.ingredient))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pick LotPick
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pick))
	assert.Equal(t, "LOT-SOON", pick.LotNumber)

	resp = getJSON(t, fmt.Sprintf("%s/ingredients/%s/next_expiring_lot", server.URL, uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, server.URL+"/ingredients/not-a-uuid/next_expiring_lot")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_MedicationByBarcode(t *testing.T) {
	s, server := newTestServer(t)

	resp := getJSON(t, fmt.Sprintf("%s/medications/barcode/%s", server.URL, s.medication.Barcode))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var med Medication
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&med))
	assert.Equal(t, s.medication.ID, med.ID)
	assert.Equal(t, "Paracetamol Lab Chile", med.Name)

	resp = getJSON(t, fmt.Sprintf("%s/medications/barcode/%s", server.URL, uuid.New()))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = getJSON(t, server.URL+"/medications/barcode/scan-me")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_IngredientDetail(t *testing.T) {
	s, server := newTestServer(t)
	s.seedLot("LOT-A", 25, time.Now().AddDate(0, 6, 0))

	resp := getJSON(t, fmt.Sprintf("%s/ingredients/%s", server.URL, s.ingredient))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail IngredientDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, 25, detail.TotalUnits)
	assert.Equal(t, "Paracetamol", detail.Name)
}

func TestHandler_ListLots(t *testing.T) {
	s, server := newTestServer(t)

	resp := getJSON(t, fmt.Sprintf("%s/medications/%s/lots", server.URL, s.medication.ID))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "no lots yet")

	s.seedLot("LOT-A", 5, time.Now().AddDate(0, 6, 0))
	resp = getJSON(t, fmt.Sprintf("%s/medications/%s/lots", server.URL, s.medication.ID))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var lots []MedicationLot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lots))
	assert.Len(t, lots, 1)
}
