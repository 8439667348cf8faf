package presales

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested presale does not exist.
var ErrNotFound = errors.New("presale not found")

// Presale is a sales engagement that documents and analysis jobs hang off.
type Presale struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
