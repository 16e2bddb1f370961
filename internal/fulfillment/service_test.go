package fulfillment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmanet-cl/farmanet/internal/inventory"
	"github.com/farmanet-cl/farmanet/internal/prescription"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePrescriptions serves prescriptions from a map.
type fakePrescriptions struct {
	byID map[uuid.UUID]prescription.Prescription
}

func (f *fakePrescriptions) Get(_ context.Context, id uuid.UUID) (prescription.Prescription, error) {
	p, ok := f.byID[id]
	if !ok {
		return prescription.Prescription{}, prescription.ErrNotFound
	}
	return p, nil
}

// captureRecorder keeps every record it is asked to write.
type captureRecorder struct {
	mu      sync.Mutex
	records []DeliveryRecord
	fail    error
}

func (c *captureRecorder) Record(_ context.Context, record DeliveryRecord) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, record)
	return nil
}

// failingPort returns a fixed error from every call.
type failingPort struct {
	findErr    error
	deliverErr error
}

func (f *failingPort) FindLotForIngredient(context.Context, uuid.UUID) (LotPick, error) {
	return LotPick{LotNumber: "X-1"}, f.findErr
}

func (f *failingPort) DeliverFromLot(context.Context, string, int) error {
	return f.deliverErr
}

// fixture wires a seeded in-memory inventory behind the local adapter.
type fixture struct {
	store         *inventory.MemoryStore
	inventory     *inventory.Service
	prescriptions *fakePrescriptions
	recorder      *captureRecorder
	service       *Service

	paracetamol uuid.UUID
	amoxicilina uuid.UUID
	rx          uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inventory.NewMemoryStore()
	logger := testLogger()
	inv := inventory.NewService(store, nil, logger)

	f := &fixture{
		store:         store,
		inventory:     inv,
		prescriptions: &fakePrescriptions{byID: map[uuid.UUID]prescription.Prescription{}},
		recorder:      &captureRecorder{},
		paracetamol:   uuid.New(),
		amoxicilina:   uuid.New(),
		rx:            uuid.New(),
	}
	f.service = NewService(f.prescriptions, NewLocalInventory(inv), f.recorder, logger, nil)

	store.SeedIngredient(inventory.ActiveIngredient{ID: f.paracetamol, Name: "Paracetamol"})
	store.SeedIngredient(inventory.ActiveIngredient{ID: f.amoxicilina, Name: "Amoxicilina"})
	return f
}

func (f *fixture) seedLot(t *testing.T, ingredient uuid.UUID, lotNumber string, available int, expiration time.Time) {
	t.Helper()
	med := inventory.Medication{ID: uuid.New(), Barcode: uuid.New(), Name: "med-" + lotNumber}
	f.store.SeedMedication(med, ingredient)
	f.store.SeedLot(inventory.MedicationLot{
		LotNumber:    lotNumber,
		MedicationID: med.ID,
		Expiration:   expiration,
		Available:    available,
	})
}

func (f *fixture) setPrescription(lines ...prescription.Line) {
	f.prescriptions.byID[f.rx] = prescription.Prescription{ID: f.rx, Lines: lines}
}

func (f *fixture) lot(t *testing.T, lotNumber string) inventory.MedicationLot {
	t.Helper()
	ctx := context.Background()
	meds, err := f.store.ListMedications(ctx)
	require.NoError(t, err)
	for _, med := range meds {
		lots, err := f.store.LotsByMedication(ctx, med.ID)
		require.NoError(t, err)
		for _, lot := range lots {
			if lot.LotNumber == lotNumber {
				return lot
			}
		}
	}
	t.Fatalf("lot %s not seeded", lotNumber)
	return inventory.MedicationLot{}
}

func deliverReq() DeliverRequest {
	return DeliverRequest{
		StaffID:          uuid.New(),
		PickupPersonRUT:  "12.345.678-5",
		PickupPersonName: "María Soto",
	}
}

func TestDeliver_DecrementsAndRecords(t *testing.T) {
	f := newFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 5, time.Now().AddDate(0, 6, 0))
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"})

	result, err := f.service.Deliver(context.Background(), f.rx, deliverReq())
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, StatusDelivered, line.Status)
	assert.Equal(t, 2, line.RequestedUnits, "4 days at one unit per two days")
	assert.Equal(t, 2, line.DeliveredUnits)
	assert.Equal(t, "PARA-A", line.LotNumber)

	assert.Equal(t, 3, f.lot(t, "PARA-A").Available, "5 minus 2")

	require.Len(t, f.recorder.records, 1)
	record := f.recorder.records[0]
	assert.Equal(t, f.rx, record.PrescriptionID)
	assert.Equal(t, RecordStatusDelivered, record.Status)
	assert.Equal(t, "María Soto", record.PickupPersonName)
}

func TestDeliver_NoLotMeansNoStock(t *testing.T) {
	f := newFixture(t)
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "1 día"})

	result, err := f.service.Deliver(context.Background(), f.rx, deliverReq())
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)

	line := result.Lines[0]
	assert.Equal(t, StatusNoStock, line.Status)
	assert.Equal(t, 1, line.RequestedUnits)
	assert.Equal(t, 0, line.DeliveredUnits)
	assert.Empty(t, line.LotNumber)

	assert.Len(t, f.recorder.records, 1, "no_stock lines still complete the run")
}

func TestDeliver_InsufficientStockIsSoft(t *testing.T) {
	f := newFixture(t)
	// 10 days owes 5 units; only 3 available.
	f.seedLot(t, f.paracetamol, "PARA-A", 3, time.Now().AddDate(0, 6, 0))
	f.seedLot(t, f.amoxicilina, "AMOX-A", 10, time.Now().AddDate(0, 6, 0))
	f.setPrescription(
		prescription.Line{IngredientID: f.paracetamol, Duration: "10 días"},
		prescription.Line{IngredientID: f.amoxicilina, Duration: "6 días"},
	)

	result, err := f.service.Deliver(context.Background(), f.rx, deliverReq())
	require.NoError(t, err)
	require.Len(t, result.Lines, 2)

	assert.Equal(t, StatusNoStock, result.Lines[0].Status)
	assert.Equal(t, 3, f.lot(t, "PARA-A").Available, "rejected decrement changes nothing")

	assert.Equal(t, StatusDelivered, result.Lines[1].Status)
	assert.Equal(t, 3, result.Lines[1].DeliveredUnits)
	assert.Equal(t, 7, f.lot(t, "AMOX-A").Available)
}

func TestDeliver_MalformedDurationAborts(t *testing.T) {
	f := newFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 5, time.Now().AddDate(0, 6, 0))
	f.seedLot(t, f.amoxicilina, "AMOX-A", 5, time.Now().AddDate(0, 6, 0))
	f.setPrescription(
		prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"},
		prescription.Line{IngredientID: f.amoxicilina, Duration: "sin número"},
	)

	_, err := f.service.Deliver(context.Background(), f.rx, deliverReq())
	require.ErrorIs(t, err, ErrMalformedDuration)

	assert.Empty(t, f.recorder.records, "aborted runs write no record")
	assert.Equal(t, 3, f.lot(t, "PARA-A").Available,
		"decrements applied before the abort stay applied")
	assert.Equal(t, 5, f.lot(t, "AMOX-A").Available)
}

func TestDeliver_UnknownPrescription(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Deliver(context.Background(), uuid.New(), deliverReq())
	require.ErrorIs(t, err, prescription.ErrNotFound)
	assert.Empty(t, f.recorder.records)
}

func TestDeliver_UpstreamFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "3 días"})
	broken := NewService(f.prescriptions, &failingPort{findErr: ErrUpstream}, f.recorder, testLogger(), nil)

	_, err := broken.Deliver(context.Background(), f.rx, deliverReq())
	require.ErrorIs(t, err, ErrUpstream)
	assert.Empty(t, f.recorder.records)
}

func TestDeliver_LotVanishedBetweenPickAndDecrement(t *testing.T) {
	f := newFixture(t)
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "3 días"})
	port := &failingPort{deliverErr: ErrLotNotFound}
	racy := NewService(f.prescriptions, port, f.recorder, testLogger(), nil)

	result, err := racy.Deliver(context.Background(), f.rx, deliverReq())
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, StatusNoStock, result.Lines[0].Status)
}

func TestDeliver_RecordWriteFailureFailsRun(t *testing.T) {
	f := newFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 5, time.Now().AddDate(0, 6, 0))
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"})
	f.recorder.fail = errors.New("delivery insert: connection reset")

	_, err := f.service.Deliver(context.Background(), f.rx, deliverReq())
	require.Error(t, err)
	assert.Equal(t, 3, f.lot(t, "PARA-A").Available,
		"stock stays decremented; there is no compensation")
}

func TestSummary_NoRecordWritten(t *testing.T) {
	f := newFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 5, time.Now().AddDate(0, 6, 0))
	f.setPrescription(
		prescription.Line{IngredientID: f.paracetamol, Duration: "5 días"},
		prescription.Line{IngredientID: f.amoxicilina, Duration: "2 días"},
	)

	result, err := f.service.Summary(context.Background(), f.rx)
	require.NoError(t, err)
	require.Len(t, result.Detail, 2)

	assert.Equal(t, "PARA-A", result.Detail[0].LotNumber)
	assert.Equal(t, 3, result.Detail[0].DeliveredUnits)
	assert.Equal(t, 0, result.Detail[1].DeliveredUnits)

	assert.Empty(t, f.recorder.records, "legacy entry point carries no pickup metadata")
	assert.Equal(t, 2, f.lot(t, "PARA-A").Available, "summary still decrements stock")
}

func TestDeliver_FEFOPicksEarliestExpiration(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.seedLot(t, f.paracetamol, "PARA-LATE", 100, now.AddDate(1, 0, 0))
	f.seedLot(t, f.paracetamol, "PARA-SOON", 100, now.AddDate(0, 1, 0))
	f.setPrescription(prescription.Line{IngredientID: f.paracetamol, Duration: "6 días"})

	result, err := f.service.Deliver(context.Background(), f.rx, deliverReq())
	require.NoError(t, err)
	assert.Equal(t, "PARA-SOON", result.Lines[0].LotNumber)
	assert.Equal(t, 97, f.lot(t, "PARA-SOON").Available)
	assert.Equal(t, 100, f.lot(t, "PARA-LATE").Available)
}

func TestDeliver_ConcurrentRunsNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.seedLot(t, f.paracetamol, "PARA-A", 3, time.Now().AddDate(0, 6, 0))

	// Two prescriptions each owing 2 units against 3 available: exactly one
	// decrement can win.
	rxA, rxB := uuid.New(), uuid.New()
	line := prescription.Line{IngredientID: f.paracetamol, Duration: "4 días"}
	f.prescriptions.byID[rxA] = prescription.Prescription{ID: rxA, Lines: []prescription.Line{line}}
	f.prescriptions.byID[rxB] = prescription.Prescription{ID: rxB, Lines: []prescription.Line{line}}

	results := make([]*DeliveryResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, rx := range []uuid.UUID{rxA, rxB} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = f.service.Deliver(context.Background(), rx, deliverReq())
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	delivered := 0
	for _, result := range results {
		require.Len(t, result.Lines, 1)
		if result.Lines[0].Status == StatusDelivered {
			delivered++
		}
	}
	assert.Equal(t, 1, delivered, "only one run can take 2 of the 3 units")
	assert.Equal(t, 1, f.lot(t, "PARA-A").Available)
	assert.GreaterOrEqual(t, f.lot(t, "PARA-A").Available, 0)
}
