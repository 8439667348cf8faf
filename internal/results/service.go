package results

import (
	"context"
	"errors"
	"fmt"

	"presale-backend/internal/estimate"
	"presale-backend/internal/jobs"
)

// RowEdit replaces the PERT triple of one task, addressed by epic and task
// index within the breakdown.
type RowEdit struct {
	Epic        int     `json:"epic"`
	Task        int     `json:"task"`
	Optimistic  float64 `json:"optimistic"`
	MostLikely  float64 `json:"most_likely"`
	Pessimistic float64 `json:"pessimistic"`
}

// Service exposes result reads, row patching, and export payloads on top
// of the repo.
type Service struct {
	Repo           ResultsRepo
	Jobs           jobs.JobsRepo
	RoundIncrement float64
}

// NewService constructs a Service. roundIncrement is the fallback rounding
// step for jobs that do not override it.
func NewService(repo ResultsRepo, jobsRepo jobs.JobsRepo, roundIncrement float64) *Service {
	if roundIncrement <= 0 {
		roundIncrement = estimate.DefaultIncrement
	}
	return &Service{Repo: repo, Jobs: jobsRepo, RoundIncrement: roundIncrement}
}

// Get returns one result version for a job. Version <= 0 selects the
// latest. Distinguishes a missing job (jobs.ErrNotFound) from a job that
// has not produced a result yet (ErrResultNotReady).
func (s *Service) Get(ctx context.Context, jobID string, version int) (Result, error) {
	if _, err := s.Jobs.GetByID(ctx, jobID); err != nil {
		return Result{}, err
	}
	return s.Repo.Get(ctx, jobID, version)
}

// ListVersions returns the job's stored versions ascending.
func (s *Service) ListVersions(ctx context.Context, jobID string) ([]VersionInfo, error) {
	if _, err := s.Jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.Repo.ListVersions(ctx, jobID)
}

// PatchRows applies row edits to the latest version and stores the outcome
// as a new version. Only the edited tasks' expected values change; totals
// are recomputed over the whole breakdown.
func (s *Service) PatchRows(ctx context.Context, jobID string, edits []RowEdit) (Result, error) {
	if len(edits) == 0 {
		return Result{}, fmt.Errorf("%w: no edits supplied", ErrInvalidEdit)
	}

	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return Result{}, err
	}

	latest, err := s.Repo.Get(ctx, jobID, 0)
	if err != nil {
		return Result{}, err
	}

	increment := job.Params.RoundToHours
	if increment <= 0 {
		increment = s.RoundIncrement
	}

	payload := clonePayload(latest.Payload)
	for _, edit := range edits {
		if edit.Epic < 0 || edit.Epic >= len(payload.Epics) {
			return Result{}, fmt.Errorf("%w: epic index %d out of range", ErrInvalidEdit, edit.Epic)
		}
		epic := &payload.Epics[edit.Epic]
		if edit.Task < 0 || edit.Task >= len(epic.Tasks) {
			return Result{}, fmt.Errorf("%w: task index %d out of range in epic %d", ErrInvalidEdit, edit.Task, edit.Epic)
		}
		if edit.Optimistic < 0 || edit.Optimistic > edit.MostLikely || edit.MostLikely > edit.Pessimistic {
			return Result{}, fmt.Errorf(
				"%w: expected 0 <= optimistic <= most_likely <= pessimistic, got %g/%g/%g",
				ErrInvalidEdit, edit.Optimistic, edit.MostLikely, edit.Pessimistic,
			)
		}

		expected, err := estimate.Expected(edit.Optimistic, edit.MostLikely, edit.Pessimistic, increment)
		if err != nil {
			return Result{}, err
		}
		epic.Tasks[edit.Task].Hours = jobs.PERTHours{
			Optimistic:  edit.Optimistic,
			MostLikely:  edit.MostLikely,
			Pessimistic: edit.Pessimistic,
			Expected:    expected,
		}
	}

	recomputeTotals(&payload)

	return s.Repo.AppendVersion(ctx, jobID, latest.LLMModel, payload, "")
}

// ExportPayload is the downloadable representation of a result version:
// the stored breakdown spread flat next to the version metadata.
type ExportPayload struct {
	Version  int    `json:"version"`
	LLMModel string `json:"llm_model"`
	jobs.AnalysisResult
}

// Export builds the JSON export for a result version, plus the suggested
// download file name.
func (s *Service) Export(ctx context.Context, jobID string, version int) (ExportPayload, string, error) {
	res, err := s.Get(ctx, jobID, version)
	if err != nil {
		return ExportPayload{}, "", err
	}

	payload := ExportPayload{
		Version:        res.Version,
		LLMModel:       res.LLMModel,
		AnalysisResult: res.Payload,
	}
	fileName := fmt.Sprintf("presale_%s_v%d.json", res.JobID, res.Version)
	return payload, fileName, nil
}

// IsNotFound reports whether err maps to a 404 for the result surface.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, jobs.ErrNotFound)
}

func clonePayload(payload jobs.AnalysisResult) jobs.AnalysisResult {
	out := payload
	out.Epics = make([]jobs.Epic, len(payload.Epics))
	for i, epic := range payload.Epics {
		copied := epic
		copied.Tasks = append([]jobs.Task(nil), epic.Tasks...)
		out.Epics[i] = copied
	}
	out.Assumptions = append([]string(nil), payload.Assumptions...)
	out.Risks = append([]string(nil), payload.Risks...)
	return out
}

func recomputeTotals(payload *jobs.AnalysisResult) {
	byRole := make(map[string]float64)
	var total float64
	for _, epic := range payload.Epics {
		for _, task := range epic.Tasks {
			total += task.Hours.Expected
			byRole[task.Role] += task.Hours.Expected
		}
	}
	for role, hours := range byRole {
		byRole[role] = estimate.RoundHours(hours)
	}
	payload.Totals = jobs.Totals{
		ExpectedHours: estimate.RoundHours(total),
		ByRole:        byRole,
	}
}
