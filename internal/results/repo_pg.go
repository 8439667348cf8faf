package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presale-backend/internal/jobs"
)

// PGRepo implements ResultsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// AppendVersion locks the job row, then allocates MAX(version)+1 and
// inserts, all in one transaction. Concurrent appends for the same job
// queue behind the lock, so versions stay gap-free; the UNIQUE
// (job_id, version) constraint is the backstop.
func (r *PGRepo) AppendVersion(ctx context.Context, jobID, llmModel string, payload jobs.AnalysisResult, rawOutput string) (Result, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal result payload: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	const lockQuery = `
SELECT id
FROM jobs
WHERE id = $1
FOR UPDATE`
	var lockedID string
	if err := tx.QueryRowContext(ctx, lockQuery, jobID).Scan(&lockedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, jobs.ErrNotFound
		}
		return Result{}, err
	}

	var version int
	const nextQuery = `
SELECT COALESCE(MAX(version), 0) + 1
FROM results
WHERE job_id = $1`
	if err := tx.QueryRowContext(ctx, nextQuery, jobID).Scan(&version); err != nil {
		return Result{}, err
	}

	res := Result{
		ID:           uuid.NewString(),
		JobID:        jobID,
		Version:      version,
		LLMModel:     llmModel,
		Payload:      payload,
		RawLLMOutput: rawOutput,
		CreatedAt:    time.Now().UTC(),
	}

	const insertQuery = `
INSERT INTO results (id, job_id, version, llm_model, result, raw_llm_output, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(
		ctx,
		insertQuery,
		res.ID,
		res.JobID,
		res.Version,
		res.LLMModel,
		raw,
		nullableText(res.RawLLMOutput),
		res.CreatedAt,
	); err != nil {
		return Result{}, err
	}

	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Get returns one version, or the latest when version <= 0.
func (r *PGRepo) Get(ctx context.Context, jobID string, version int) (Result, error) {
	const base = `
SELECT id, job_id, version, llm_model, result, raw_llm_output, created_at
FROM results
WHERE job_id = $1`

	var row *sql.Row
	if version <= 0 {
		row = r.DB.QueryRowContext(ctx, base+`
ORDER BY version DESC
LIMIT 1`, jobID)
	} else {
		row = r.DB.QueryRowContext(ctx, base+` AND version = $2`, jobID, version)
	}

	res, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if version <= 0 {
				return Result{}, ErrResultNotReady
			}
			return Result{}, ErrNotFound
		}
		return Result{}, err
	}
	return res, nil
}

// ListVersions returns stored versions ascending.
func (r *PGRepo) ListVersions(ctx context.Context, jobID string) ([]VersionInfo, error) {
	const query = `
SELECT version, created_at
FROM results
WHERE job_id = $1
ORDER BY version`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var info VersionInfo
		if err := rows.Scan(&info.Version, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func scanResult(row *sql.Row) (Result, error) {
	var res Result
	var payload []byte
	var rawOutput sql.NullString
	if err := row.Scan(
		&res.ID,
		&res.JobID,
		&res.Version,
		&res.LLMModel,
		&payload,
		&rawOutput,
		&res.CreatedAt,
	); err != nil {
		return Result{}, err
	}
	if err := json.Unmarshal(payload, &res.Payload); err != nil {
		return Result{}, fmt.Errorf("unmarshal result payload: %w", err)
	}
	if rawOutput.Valid {
		res.RawLLMOutput = rawOutput.String
	}
	return res, nil
}

func nullableText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ ResultsRepo = (*PGRepo)(nil)
