package results

import (
	"context"

	"presale-backend/internal/jobs"
)

// Sink adapts a ResultsRepo to the narrow append surface the pipeline
// processor needs.
type Sink struct {
	Repo ResultsRepo
}

// AppendVersion stores the payload and returns the allocated version.
func (s Sink) AppendVersion(ctx context.Context, jobID, llmModel string, payload jobs.AnalysisResult, rawOutput string) (int, error) {
	res, err := s.Repo.AppendVersion(ctx, jobID, llmModel, payload, rawOutput)
	if err != nil {
		return 0, err
	}
	return res.Version, nil
}

var _ jobs.ResultSink = Sink{}
