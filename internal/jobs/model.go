package jobs

import (
	"encoding/json"
	"time"
)

// Job statuses. A job moves queued -> running -> done|error; done and
// error are terminal.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// Progress checkpoints reported while a job runs.
const (
	ProgressExtracting = 10
	ProgressCallingLLM = 30
	ProgressSaving     = 90
	ProgressDone       = 100
)

// Terminal error codes stored on failed jobs.
const (
	ErrCodeEmptyDocument    = "empty_or_scanned_document"
	ErrCodeCorruptDocument  = "corrupt_document"
	ErrCodeLLMTimeout       = "llm_timeout"
	ErrCodeLLMTransport     = "llm_transport"
	ErrCodeLLMInvalidJSON   = "llm_invalid_json"
	ErrCodeSchemaValidation = "llm_schema_validation_failed"
	ErrCodeInternal         = "internal_error"
)

// MessageScannedPDF is the terminal message for documents with no text layer.
const MessageScannedPDF = "scanned pdf not supported in MVP"

// Params carries per-job overrides supplied at submission.
type Params struct {
	Roles        []string `json:"roles,omitempty"`
	RoundToHours float64  `json:"roundToHours,omitempty"`
	Alternative  bool     `json:"alternative,omitempty"`
}

// Job is a single analysis run over a presale's uploaded documents.
type Job struct {
	ID        string
	PresaleID string
	Prompt    string
	Params    Params
	Status    string
	Progress  int
	Message   string
	ErrorCode string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job has reached a final status.
func (j Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

// Attempt error kinds, mirrored into llm_attempts.error_kind.
const (
	AttemptErrTimeout     = "timeout"
	AttemptErrTransport   = "transport"
	AttemptErrInvalidJSON = "invalid_json"
	AttemptErrSchema      = "schema_validation"
)

// Attempt records one round-trip to the model, successful or not.
// Index is 1-based and unique per job.
type Attempt struct {
	ID           string
	JobID        string
	Index        int
	RawOutput    string
	ErrorKind    string
	ErrorMessage string
	Violations   []string
	CreatedAt    time.Time
}

func (p Params) marshal() ([]byte, error) {
	return json.Marshal(p)
}

func unmarshalParams(raw []byte) (Params, error) {
	var p Params
	if len(raw) == 0 {
		return p, nil
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}
