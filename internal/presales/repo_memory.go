package presales

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of PresalesRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Presale
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Presale)}
}

// Create stores a new presale.
func (r *MemoryRepo) Create(ctx context.Context, presale Presale) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[presale.ID] = presale
	return nil
}

// GetByID returns a presale by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, presaleID string) (Presale, error) {
	if err := ctx.Err(); err != nil {
		return Presale{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	presale, ok := r.data[presaleID]
	if !ok {
		return Presale{}, ErrNotFound
	}
	return presale, nil
}

// List returns presales newest-first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Presale, error) {
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
	out := make([]Presale, 0, len(r.data))
	for _, presale := range r.data {
		out = append(out, presale)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= len(out) {
		return []Presale{}, nil
	}
	end := len(out)
	if offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// Rename updates the presale name.
func (r *MemoryRepo) Rename(ctx context.Context, presaleID, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	presale, ok := r.data[presaleID]
	if !ok {
		return ErrNotFound
	}
	presale.Name = name
	r.data[presaleID] = presale
	return nil
}

// Delete removes a presale.
func (r *MemoryRepo) Delete(ctx context.Context, presaleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[presaleID]; !ok {
		return ErrNotFound
	}
	delete(r.data, presaleID)
	return nil
}

var _ PresalesRepo = (*MemoryRepo)(nil)
