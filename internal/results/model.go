package results

import (
	"errors"
	"time"

	"presale-backend/internal/jobs"
)

// ErrNotFound indicates the requested result version does not exist.
var ErrNotFound = errors.New("result not found")

// ErrResultNotReady indicates the job exists but has produced no result
// version yet.
var ErrResultNotReady = errors.New("result not ready")

// ErrInvalidEdit indicates a row patch that violates the PERT ordering or
// points outside the breakdown.
var ErrInvalidEdit = errors.New("invalid row edit")

// Result is one immutable version of a job's work breakdown. Versions are
// strictly increasing and gap-free per job, starting at 1.
type Result struct {
	ID           string
	JobID        string
	Version      int
	LLMModel     string
	Payload      jobs.AnalysisResult
	RawLLMOutput string
	CreatedAt    time.Time
}

// VersionInfo is a listing entry for a stored version.
type VersionInfo struct {
	Version   int
	CreatedAt time.Time
}
