package presales

import "context"

// PresalesRepo defines persistence operations for presales.
type PresalesRepo interface {
	Create(ctx context.Context, presale Presale) error
	GetByID(ctx context.Context, presaleID string) (Presale, error)
	List(ctx context.Context, limit, offset int) ([]Presale, error)
	Rename(ctx context.Context, presaleID, name string) error
	Delete(ctx context.Context, presaleID string) error
}
