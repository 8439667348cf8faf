package presales

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements PresalesRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new presale.
func (r *PGRepo) Create(ctx context.Context, presale Presale) error {
	const query = `
INSERT INTO presales (id, name, created_at)
VALUES ($1, $2, $3)`
	_, err := r.DB.ExecContext(ctx, query, presale.ID, presale.Name, presale.CreatedAt)
	return err
}

// GetByID fetches a presale by ID.
func (r *PGRepo) GetByID(ctx context.Context, presaleID string) (Presale, error) {
	const query = `
SELECT id, name, created_at
FROM presales
WHERE id = $1`
	var presale Presale
	err := r.DB.QueryRowContext(ctx, query, presaleID).Scan(
		&presale.ID,
		&presale.Name,
		&presale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Presale{}, ErrNotFound
		}
		return Presale{}, err
	}
	return presale, nil
}

// List returns presales newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Presale, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, name, created_at
FROM presales
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Presale
	for rows.Next() {
		var presale Presale
		if err := rows.Scan(&presale.ID, &presale.Name, &presale.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, presale)
	}
	return out, rows.Err()
}

// Rename updates the presale name.
func (r *PGRepo) Rename(ctx context.Context, presaleID, name string) error {
	const query = `
UPDATE presales
SET name = $1
WHERE id = $2`
	res, err := r.DB.ExecContext(ctx, query, name, presaleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a presale; files, jobs, and results cascade in the schema.
func (r *PGRepo) Delete(ctx context.Context, presaleID string) error {
	const query = `
DELETE FROM presales
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, presaleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ PresalesRepo = (*PGRepo)(nil)
