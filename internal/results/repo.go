package results

import (
	"context"

	"presale-backend/internal/jobs"
)

// ResultsRepo defines persistence for versioned job results.
type ResultsRepo interface {
	// AppendVersion stores payload as the next version for the job and
	// returns the stored row. Version numbers are allocated inside the
	// call, so concurrent appends never collide or leave gaps.
	AppendVersion(ctx context.Context, jobID, llmModel string, payload jobs.AnalysisResult, rawOutput string) (Result, error)

	// Get returns one version of a job's result. Version <= 0 selects the
	// highest stored version. Returns ErrResultNotReady when the job has
	// no versions at all, ErrNotFound when the specific version is absent.
	Get(ctx context.Context, jobID string, version int) (Result, error)

	// ListVersions returns stored versions in ascending order.
	ListVersions(ctx context.Context, jobID string) ([]VersionInfo, error)
}
