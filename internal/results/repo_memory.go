package results

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"presale-backend/internal/jobs"
)

// MemoryRepo is an in-memory implementation of ResultsRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string][]Result // jobId -> versions ascending
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string][]Result)}
}

// AppendVersion stores the next version for a job.
func (r *MemoryRepo) AppendVersion(ctx context.Context, jobID, llmModel string, payload jobs.AnalysisResult, rawOutput string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.data[jobID]
	res := Result{
		ID:           uuid.NewString(),
		JobID:        jobID,
		Version:      len(stored) + 1,
		LLMModel:     llmModel,
		Payload:      payload,
		RawLLMOutput: rawOutput,
		CreatedAt:    time.Now().UTC(),
	}
	r.data[jobID] = append(stored, res)
	return res, nil
}

// Get returns one version, or the latest when version <= 0.
func (r *MemoryRepo) Get(ctx context.Context, jobID string, version int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.data[jobID]
	if len(stored) == 0 {
		return Result{}, ErrResultNotReady
	}
	if version <= 0 {
		return stored[len(stored)-1], nil
	}
	if version > len(stored) {
		return Result{}, ErrNotFound
	}
	return stored[version-1], nil
}

// ListVersions returns stored versions ascending.
func (r *MemoryRepo) ListVersions(ctx context.Context, jobID string) ([]VersionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.data[jobID]
	out := make([]VersionInfo, 0, len(stored))
	for _, res := range stored {
		out = append(out, VersionInfo{Version: res.Version, CreatedAt: res.CreatedAt})
	}
	return out, nil
}

var _ ResultsRepo = (*MemoryRepo)(nil)
