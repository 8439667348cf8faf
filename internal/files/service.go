package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"presale-backend/internal/shared/storage/object"
)

// ErrUnsupportedFileType indicates an upload that is not pdf, docx, or txt.
var ErrUnsupportedFileType = errors.New("unsupported file type")

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// Service coordinates file metadata with the object store.
type Service struct {
	Repo  FilesRepo
	Store object.ObjectStore
}

// NewService constructs a Service.
func NewService(repo FilesRepo, store object.ObjectStore) *Service {
	return &Service{Repo: repo, Store: store}
}

// Upload stores the file bytes and records metadata. Only pdf, docx, and
// txt uploads are accepted; everything else fails with
// ErrUnsupportedFileType before touching the object store.
func (s *Service) Upload(ctx context.Context, presaleID, fileName string, r io.Reader) (File, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	declaredType, ok := allowedExtensions[ext]
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	storageKey, sizeBytes, _, err := s.Store.Save(ctx, presaleID, fileName, r)
	if err != nil {
		return File{}, fmt.Errorf("store file: %w", err)
	}

	file := File{
		ID:          uuid.NewString(),
		PresaleID:   presaleID,
		FileName:    fileName,
		ContentType: declaredType,
		SizeBytes:   sizeBytes,
		StorageKey:  storageKey,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, file); err != nil {
		// Metadata write failed; drop the orphaned blob.
		_ = s.Store.Delete(ctx, storageKey)
		return File{}, err
	}
	return file, nil
}

// List returns a presale's files.
func (s *Service) List(ctx context.Context, presaleID string) ([]File, error) {
	return s.Repo.ListByPresale(ctx, presaleID)
}

// Delete removes a file's metadata and bytes.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	file, err := s.Repo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, fileID); err != nil {
		return err
	}
	return s.Store.Delete(ctx, file.StorageKey)
}

// ReadAll fetches a stored file's bytes.
func (s *Service) ReadAll(ctx context.Context, file File) ([]byte, error) {
	rc, err := s.Store.Open(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open stored file %s: %w", file.StorageKey, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
