package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements JobsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const jobColumns = `id, presale_id, prompt, params, status, progress, message, error_code, attempts, created_at, updated_at`

// Create inserts a new job in queued status.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO jobs (id, presale_id, prompt, params, status, progress, message, error_code, attempts, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	params, err := job.Params.marshal()
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		job.ID,
		job.PresaleID,
		job.Prompt,
		params,
		job.Status,
		job.Progress,
		job.Message,
		job.ErrorCode,
		job.Attempts,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1`
	row := r.DB.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, err
	}
	return job, nil
}

// ListByPresale lists a presale's jobs newest-first.
func (r *PGRepo) ListByPresale(ctx context.Context, presaleID string, limit, offset int) ([]Job, error) {
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
SELECT ` + jobColumns + `
FROM jobs
WHERE presale_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, presaleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// List returns jobs across all presales, newest first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Job, error) {
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
SELECT ` + jobColumns + `
FROM jobs
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ClaimNext picks the oldest queued job and flips it to running inside one
// statement. SKIP LOCKED keeps concurrent workers from fighting over the
// same row.
func (r *PGRepo) ClaimNext(ctx context.Context) (Job, error) {
	const query = `
UPDATE jobs
SET status = 'running', progress = GREATEST(progress, 10), message = 'extracting_text', updated_at = now()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns
	row := r.DB.QueryRowContext(ctx, query)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, ErrNoQueuedJobs
		}
		return Job{}, err
	}
	return job, nil
}

// UpdateProgress raises progress on a non-terminal job. GREATEST keeps the
// value monotonic even if a stale writer reports a lower stage.
func (r *PGRepo) UpdateProgress(ctx context.Context, jobID string, progress int, message string) error {
	const query = `
UPDATE jobs
SET progress = GREATEST(progress, $1), message = $2, updated_at = now()
WHERE id = $3 AND status NOT IN ('done', 'error')`
	res, err := r.DB.ExecContext(ctx, query, progress, message, jobID)
	if err != nil {
		return err
	}
	return checkExists(ctx, r.DB, jobID, res)
}

// MarkDone finalizes a job as successful.
func (r *PGRepo) MarkDone(ctx context.Context, jobID string) error {
	const query = `
UPDATE jobs
SET status = 'done', progress = 100, message = 'ok', error_code = '', updated_at = now()
WHERE id = $1 AND status NOT IN ('done', 'error')`
	res, err := r.DB.ExecContext(ctx, query, jobID)
	if err != nil {
		return err
	}
	return checkExists(ctx, r.DB, jobID, res)
}

// MarkError finalizes a job as failed.
func (r *PGRepo) MarkError(ctx context.Context, jobID string, errorCode, message string) error {
	const query = `
UPDATE jobs
SET status = 'error', error_code = $1, message = $2, updated_at = now()
WHERE id = $3 AND status NOT IN ('done', 'error')`
	res, err := r.DB.ExecContext(ctx, query, errorCode, message, jobID)
	if err != nil {
		return err
	}
	return checkExists(ctx, r.DB, jobID, res)
}

// SetAttempts records the consumed attempt count.
func (r *PGRepo) SetAttempts(ctx context.Context, jobID string, attempts int) error {
	const query = `
UPDATE jobs
SET attempts = $1, updated_at = now()
WHERE id = $2`
	_, err := r.DB.ExecContext(ctx, query, attempts, jobID)
	return err
}

// AppendAttempt stores one LLM attempt record.
func (r *PGRepo) AppendAttempt(ctx context.Context, attempt Attempt) error {
	const query = `
INSERT INTO llm_attempts (id, job_id, attempt, raw_output, error_kind, error_message, violations, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var violations any
	if len(attempt.Violations) > 0 {
		raw, err := json.Marshal(attempt.Violations)
		if err != nil {
			return err
		}
		violations = raw
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		attempt.ID,
		attempt.JobID,
		attempt.Index,
		attempt.RawOutput,
		attempt.ErrorKind,
		attempt.ErrorMessage,
		violations,
		attempt.CreatedAt,
	)
	return err
}

// ListAttempts returns a job's attempts, most recent first.
func (r *PGRepo) ListAttempts(ctx context.Context, jobID string) ([]Attempt, error) {
	const query = `
SELECT id, job_id, attempt, raw_output, error_kind, error_message, violations, created_at
FROM llm_attempts
WHERE job_id = $1
ORDER BY attempt DESC`

	rows, err := r.DB.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var rawOutput sql.NullString
		var violations []byte
		if err := rows.Scan(
			&a.ID,
			&a.JobID,
			&a.Index,
			&rawOutput,
			&a.ErrorKind,
			&a.ErrorMessage,
			&violations,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if rawOutput.Valid {
			a.RawOutput = rawOutput.String
		}
		if len(violations) > 0 {
			if err := json.Unmarshal(violations, &a.Violations); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var params []byte
	var createdAt, updatedAt time.Time
	if err := row.Scan(
		&job.ID,
		&job.PresaleID,
		&job.Prompt,
		&params,
		&job.Status,
		&job.Progress,
		&job.Message,
		&job.ErrorCode,
		&job.Attempts,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Job{}, err
	}
	parsed, err := unmarshalParams(params)
	if err != nil {
		return Job{}, err
	}
	job.Params = parsed
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return job, nil
}

// checkExists distinguishes "job missing" from "job already terminal" when
// a guarded UPDATE touches zero rows.
func checkExists(ctx context.Context, db *sql.DB, jobID string, res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	err = db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, jobID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

var _ JobsRepo = (*PGRepo)(nil)
