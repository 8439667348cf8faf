package files

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of FilesRepo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]File
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]File)}
}

// Create stores file metadata.
func (r *MemoryRepo) Create(ctx context.Context, file File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[file.ID] = file
	return nil
}

// GetByID returns a file by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, fileID string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	file, ok := r.data[fileID]
	if !ok {
		return File{}, ErrNotFound
	}
	return file, nil
}

// ListByPresale returns a presale's files, oldest first.
func (r *MemoryRepo) ListByPresale(ctx context.Context, presaleID string) ([]File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []File
	for _, file := range r.data {
		if file.PresaleID == presaleID {
			out = append(out, file)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes file metadata.
func (r *MemoryRepo) Delete(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[fileID]; !ok {
		return ErrNotFound
	}
	delete(r.data, fileID)
	return nil
}

var _ FilesRepo = (*MemoryRepo)(nil)
