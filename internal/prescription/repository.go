package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads prescriptions from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns a prescription with its ingredient lines in authored order.
// Returns ErrNotFound for an unknown id and ErrNoLines when the prescription
// exists but carries no ingredient lines.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Prescription, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM prescription WHERE id = $1)`, id).Scan(&exists); err != nil {
		return Prescription{}, fmt.Errorf("prescription lookup: %w", err)
	}
	if !exists {
		return Prescription{}, ErrNotFound
	}

	const query = `
		SELECT ingredient_id, duration, frequency
		FROM prescription_ingredient
		WHERE prescription_id = $1
		ORDER BY line_order ASC`

	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return Prescription{}, fmt.Errorf("prescription lines: %w", err)
	}
	defer rows.Close()

	p := Prescription{ID: id}
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.IngredientID, &line.Duration, &line.Frequency); err != nil {
			return Prescription{}, fmt.Errorf("prescription lines: %w", err)
		}
		p.Lines = append(p.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return Prescription{}, fmt.Errorf("prescription lines: %w", err)
	}
	if len(p.Lines) == 0 {
		return Prescription{}, ErrNoLines
	}
	return p, nil
}
