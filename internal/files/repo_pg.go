package files

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements FilesRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts file metadata.
func (r *PGRepo) Create(ctx context.Context, file File) error {
	const query = `
INSERT INTO files (id, presale_id, filename, content_type, size_bytes, storage_key, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(
		ctx,
		query,
		file.ID,
		file.PresaleID,
		file.FileName,
		file.ContentType,
		file.SizeBytes,
		file.StorageKey,
		file.CreatedAt,
	)
	return err
}

// GetByID fetches a file by ID.
func (r *PGRepo) GetByID(ctx context.Context, fileID string) (File, error) {
	const query = `
SELECT id, presale_id, filename, content_type, size_bytes, storage_key, created_at
FROM files
WHERE id = $1`
	var file File
	err := r.DB.QueryRowContext(ctx, query, fileID).Scan(
		&file.ID,
		&file.PresaleID,
		&file.FileName,
		&file.ContentType,
		&file.SizeBytes,
		&file.StorageKey,
		&file.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return File{}, ErrNotFound
		}
		return File{}, err
	}
	return file, nil
}

// ListByPresale returns a presale's files, oldest first.
func (r *PGRepo) ListByPresale(ctx context.Context, presaleID string) ([]File, error) {
	const query = `
SELECT id, presale_id, filename, content_type, size_bytes, storage_key, created_at
FROM files
WHERE presale_id = $1
ORDER BY created_at`

	rows, err := r.DB.QueryContext(ctx, query, presaleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		var file File
		if err := rows.Scan(
			&file.ID,
			&file.PresaleID,
			&file.FileName,
			&file.ContentType,
			&file.SizeBytes,
			&file.StorageKey,
			&file.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, file)
	}
	return out, rows.Err()
}

// Delete removes file metadata.
func (r *PGRepo) Delete(ctx context.Context, fileID string) error {
	const query = `
DELETE FROM files
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, fileID)
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

var _ FilesRepo = (*PGRepo)(nil)
