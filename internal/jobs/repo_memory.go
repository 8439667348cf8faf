package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of JobsRepo.
type MemoryRepo struct {
	mu       sync.RWMutex
	jobs     map[string]Job
	attempts map[string][]Attempt // jobId -> attempts, insertion order
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs:     make(map[string]Job),
		attempts: make(map[string][]Attempt),
	}
}

// Create stores a new job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

// GetByID returns a job by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// ListByPresale returns jobs for a presale, newest first.
func (r *MemoryRepo) ListByPresale(ctx context.Context, presaleID string, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	var out []Job
	for _, job := range r.jobs {
		if job.PresaleID == presaleID {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Job{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// List returns all jobs, newest first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Job{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// ClaimNext moves the oldest queued job to running.
func (r *MemoryRepo) ClaimNext(ctx context.Context) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *Job
	for id := range r.jobs {
		job := r.jobs[id]
		if job.Status != StatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			copied := job
			oldest = &copied
		}
	}
	if oldest == nil {
		return Job{}, ErrNoQueuedJobs
	}

	oldest.Status = StatusRunning
	if oldest.Progress < ProgressExtracting {
		oldest.Progress = ProgressExtracting
	}
	oldest.Message = "extracting_text"
	oldest.UpdatedAt = time.Now().UTC()
	r.jobs[oldest.ID] = *oldest
	return *oldest, nil
}

// UpdateProgress raises progress on a running job; decreases are ignored.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, jobID string, progress int, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return nil
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return nil
}

// MarkDone finalizes a job as successful.
func (r *MemoryRepo) MarkDone(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return nil
	}
	job.Status = StatusDone
	job.Progress = ProgressDone
	job.Message = "ok"
	job.ErrorCode = ""
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return nil
}

// MarkError finalizes a job as failed.
func (r *MemoryRepo) MarkError(ctx context.Context, jobID string, errorCode, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Terminal() {
		return nil
	}
	job.Status = StatusError
	job.ErrorCode = errorCode
	job.Message = message
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return nil
}

// SetAttempts records the consumed attempt count.
func (r *MemoryRepo) SetAttempts(ctx context.Context, jobID string, attempts int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Attempts = attempts
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return nil
}

// AppendAttempt stores one LLM attempt record.
func (r *MemoryRepo) AppendAttempt(ctx context.Context, attempt Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[attempt.JobID] = append(r.attempts[attempt.JobID], attempt)
	return nil
}

// ListAttempts returns attempts most recent first.
func (r *MemoryRepo) ListAttempts(ctx context.Context, jobID string) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.attempts[jobID]
	out := make([]Attempt, len(stored))
	for i := range stored {
		out[len(stored)-1-i] = stored[i]
	}
	return out, nil
}

var _ JobsRepo = (*MemoryRepo)(nil)
