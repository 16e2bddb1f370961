package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmanet-cl/farmanet/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lotColumns = `lot_number, medication_id, expiration_date, available_quantity,
	defective_quantity, expired_quantity, poor_condition_quantity, broken_package_quantity`

func scanLot(row pgx.Row) (MedicationLot, error) {
	var lot MedicationLot
	err := row.Scan(
		&lot.LotNumber,
		&lot.MedicationID,
		&lot.Expiration,
		&lot.Available,
		&lot.Defective,
		&lot.Expired,
		&lot.PoorCondition,
		&lot.BrokenPackage,
	)
	return lot, err
}

// NextExpiringLot runs the FEFO query: the earliest-expiring lot with positive
// available stock among all medications carrying the ingredient. Tie-break is
// lot number ascending so the pick is deterministic.
func (r *Repository) NextExpiringLot(ctx context.Context, ingredientID uuid.UUID) (LotPick, error) {
	const query = `
		SELECT l.lot_number, m.name, i.name, m.strength, m.route
		FROM medication_lot l
		JOIN medication m ON m.id = l.medication_id
		JOIN medication_ingredient mi ON mi.medication_id = m.id
		JOIN active_ingredient i ON i.id = mi.ingredient_id
		WHERE mi.ingredient_id = $1 AND l.available_quantity > 0
		ORDER BY l.expiration_date ASC, l.lot_number ASC
		LIMIT 1`

	var pick LotPick
	err := r.pool.QueryRow(ctx, query, ingredientID).Scan(
		&pick.LotNumber,
		&pick.MedicationName,
		&pick.IngredientName,
		&pick.Strength,
		&pick.Route,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LotPick{}, ErrNoEligibleLot
		}
		return LotPick{}, fmt.Errorf("next expiring lot: %w", err)
	}
	return pick, nil
}

// DeliverFromLot performs the guarded decrement as a single conditional
// UPDATE, so concurrent deliveries can never drive the quantity negative. The
// update and the classification probe share one transaction so the probe sees
// the same lot the guard rejected.
//
// Read committed matters here: when two deliveries race on the same lot, the
// loser's UPDATE waits for the winner's row lock and then re-evaluates its
// WHERE against the committed row. At repeatable read the loser would instead
// abort with a serialization failure and surface as a generic error rather
// than ErrInsufficientStock.
func (r *Repository) DeliverFromLot(ctx context.Context, lotNumber string, quantity int) (MedicationLot, error) {
	const update = `
		UPDATE medication_lot
		SET available_quantity = available_quantity - $2
		WHERE lot_number = $1 AND available_quantity >= $2
		RETURNING ` + lotColumns

	var lot MedicationLot
	err := db.WithReadCommitted(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		lot, err = scanLot(tx.QueryRow(ctx, update, lotNumber, quantity))
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("deliver from lot: %w", err)
		}

		// The guard rejected the update: distinguish a missing lot from
		// insufficient stock.
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM medication_lot WHERE lot_number = $1)`, lotNumber).Scan(&exists); err != nil {
			return fmt.Errorf("deliver from lot: %w", err)
		}
		if !exists {
			return ErrLotNotFound
		}
		return ErrInsufficientStock
	})
	if err != nil {
		return MedicationLot{}, err
	}
	return lot, nil
}

// AddDefect increments one defect counter with the same single-statement
// guarded-update pattern as DeliverFromLot.
func (r *Repository) AddDefect(ctx context.Context, lotNumber string, kind DefectKind, quantity int) (MedicationLot, error) {
	var column string
	switch kind {
	case DefectDefective:
		column = "defective_quantity"
	case DefectExpired:
		column = "expired_quantity"
	case DefectPoorCondition:
		column = "poor_condition_quantity"
	case DefectBrokenPackage:
		column = "broken_package_quantity"
	default:
		return MedicationLot{}, ErrInvalidDefectKind
	}

	update := fmt.Sprintf(`
		UPDATE medication_lot
		SET %s = %s + $2
		WHERE lot_number = $1
		RETURNING `+lotColumns, column, column)

	lot, err := scanLot(r.pool.QueryRow(ctx, update, lotNumber, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MedicationLot{}, ErrLotNotFound
		}
		return MedicationLot{}, fmt.Errorf("add defect: %w", err)
	}
	return lot, nil
}

// InsertLot registers a new lot.
func (r *Repository) InsertLot(ctx context.Context, lot MedicationLot) (MedicationLot, error) {
	const insert = `
		INSERT INTO medication_lot (` + lotColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + lotColumns

	created, err := scanLot(r.pool.QueryRow(ctx, insert,
		lot.LotNumber,
		lot.MedicationID,
		lot.Expiration,
		lot.Available,
		lot.Defective,
		lot.Expired,
		lot.PoorCondition,
		lot.BrokenPackage,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return MedicationLot{}, ErrDuplicateLot
		}
		return MedicationLot{}, fmt.Errorf("insert lot: %w", err)
	}
	return created, nil
}

// MedicationByBarcode resolves a medication from its barcode.
func (r *Repository) MedicationByBarcode(ctx context.Context, barcode uuid.UUID) (Medication, error) {
	const query = `SELECT id, barcode, name, strength, route FROM medication WHERE barcode = $1`

	var med Medication
	err := r.pool.QueryRow(ctx, query, barcode).Scan(&med.ID, &med.Barcode, &med.Name, &med.Strength, &med.Route)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Medication{}, ErrMedicationNotFound
		}
		return Medication{}, fmt.Errorf("medication by barcode: %w", err)
	}
	return med, nil
}

// ListMedications returns the full medication catalogue.
func (r *Repository) ListMedications(ctx context.Context) ([]Medication, error) {
	const query = `SELECT id, barcode, name, strength, route FROM medication ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		var med Medication
		if err := rows.Scan(&med.ID, &med.Barcode, &med.Name, &med.Strength, &med.Route); err != nil {
			return nil, fmt.Errorf("list medications: %w", err)
		}
		meds = append(meds, med)
	}
	return meds, rows.Err()
}

// LotsByMedication returns every lot of a medication, soonest expiration first.
func (r *Repository) LotsByMedication(ctx context.Context, medicationID uuid.UUID) ([]MedicationLot, error) {
	const query = `SELECT ` + lotColumns + ` FROM medication_lot WHERE medication_id = $1 ORDER BY expiration_date ASC, lot_number ASC`

	rows, err := r.pool.Query(ctx, query, medicationID)
	if err != nil {
		return nil, fmt.Errorf("lots by medication: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

// ListIngredients returns all active ingredients.
func (r *Repository) ListIngredients(ctx context.Context) ([]ActiveIngredient, error) {
	const query = `SELECT id, name, category FROM active_ingredient ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	defer rows.Close()

	var ingredients []ActiveIngredient
	for rows.Next() {
		var ing ActiveIngredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Category); err != nil {
			return nil, fmt.Errorf("list ingredients: %w", err)
		}
		ingredients = append(ingredients, ing)
	}
	return ingredients, rows.Err()
}

// IngredientDetail aggregates available stock per medication carrying the
// ingredient.
func (r *Repository) IngredientDetail(ctx context.Context, ingredientID uuid.UUID) (IngredientDetail, error) {
	const header = `SELECT id, name, category FROM active_ingredient WHERE id = $1`

	var detail IngredientDetail
	err := r.pool.QueryRow(ctx, header, ingredientID).Scan(&detail.ID, &detail.Name, &detail.Category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return IngredientDetail{}, ErrIngredientNotFound
		}
		return IngredientDetail{}, fmt.Errorf("ingredient detail: %w", err)
	}

	const stock = `
		SELECT m.id, m.name, m.strength, m.route, COALESCE(SUM(l.available_quantity), 0)
		FROM medication m
		JOIN medication_ingredient mi ON mi.medication_id = m.id
		LEFT JOIN medication_lot l ON l.medication_id = m.id
		WHERE mi.ingredient_id = $1
		GROUP BY m.id, m.name, m.strength, m.route
		ORDER BY m.name ASC`

	rows, err := r.pool.Query(ctx, stock, ingredientID)
	if err != nil {
		return IngredientDetail{}, fmt.Errorf("ingredient detail: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ms MedicationStock
		if err := rows.Scan(&ms.MedicationID, &ms.Name, &ms.Strength, &ms.Route, &ms.TotalUnits); err != nil {
			return IngredientDetail{}, fmt.Errorf("ingredient detail: %w", err)
		}
		detail.TotalUnits += ms.TotalUnits
		detail.Medications = append(detail.Medications, ms)
	}
	if err := rows.Err(); err != nil {
		return IngredientDetail{}, err
	}
	detail.MedicationCount = len(detail.Medications)
	return detail, nil
}

// SweepExpired shifts any remaining available stock of expired lots into the
// expired counter, atomically per lot.
func (r *Repository) SweepExpired(ctx context.Context, asOf time.Time) ([]MedicationLot, error) {
	const update = `
		UPDATE medication_lot
		SET expired_quantity = expired_quantity + available_quantity,
		    available_quantity = 0
		WHERE expiration_date < $1 AND available_quantity > 0
		RETURNING ` + lotColumns

	rows, err := r.pool.Query(ctx, update, asOf)
	if err != nil {
		return nil, fmt.Errorf("sweep expired: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

// LotsExpiringWithin lists lots with stock expiring inside the warning window.
func (r *Repository) LotsExpiringWithin(ctx context.Context, asOf time.Time, days int) ([]MedicationLot, error) {
	const query = `
		SELECT ` + lotColumns + `
		FROM medication_lot
		WHERE available_quantity > 0
		  AND expiration_date >= $1
		  AND expiration_date < $2
		ORDER BY expiration_date ASC, lot_number ASC`

	rows, err := r.pool.Query(ctx, query, asOf, asOf.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("lots expiring within: %w", err)
	}
	defer rows.Close()

	return collectLots(rows)
}

func collectLots(rows pgx.Rows) ([]MedicationLot, error) {
	var lots []MedicationLot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}
