package files

import "context"

// FilesRepo defines persistence operations for file metadata.
type FilesRepo interface {
	Create(ctx context.Context, file File) error
	GetByID(ctx context.Context, fileID string) (File, error)
	ListByPresale(ctx context.Context, presaleID string) ([]File, error)
	Delete(ctx context.Context, fileID string) error
}
