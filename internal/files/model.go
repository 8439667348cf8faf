package files

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested file does not exist.
var ErrNotFound = errors.New("file not found")

// File is metadata for an uploaded document; bytes live in the object
// store under StorageKey.
type File struct {
	ID          string
	PresaleID   string
	FileName    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	CreatedAt   time.Time
}
