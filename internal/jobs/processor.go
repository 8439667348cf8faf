package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"presale-backend/internal/estimate"
	"presale-backend/internal/extract"
	"presale-backend/internal/files"
	"presale-backend/internal/llm"
	"presale-backend/internal/shared/telemetry"
)

// DefaultMaxAttempts bounds the generate/repair loop per job.
const DefaultMaxAttempts = 3

// ResultSink stores accepted breakdowns. Implemented by the results
// package; declared here so the processor does not depend on it.
type ResultSink interface {
	AppendVersion(ctx context.Context, jobID, llmModel string, payload AnalysisResult, rawOutput string) (version int, err error)
}

// Processor runs the analysis pipeline for one claimed job: extract text
// from the presale's files, drive the LLM generate/repair loop, compute
// estimates, and store the result.
type Processor struct {
	Jobs           JobsRepo
	Files          *files.Service
	Results        ResultSink
	LLM            llm.Client
	MaxAttempts    int
	RoundIncrement float64
}

// NewProcessor constructs a Processor with defaults applied.
func NewProcessor(jobsRepo JobsRepo, filesSvc *files.Service, sink ResultSink, client llm.Client, maxAttempts int, roundIncrement float64) *Processor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if roundIncrement <= 0 {
		roundIncrement = estimate.DefaultIncrement
	}
	return &Processor{
		Jobs:           jobsRepo,
		Files:          filesSvc,
		Results:        sink,
		LLM:            client,
		MaxAttempts:    maxAttempts,
		RoundIncrement: roundIncrement,
	}
}

// Process executes a claimed job to a terminal status. ctx carries the job
// deadline; terminal writes run on a background context so a timed-out job
// never stays running.
func (p *Processor) Process(ctx context.Context, job Job) {
	text, ok := p.extractText(ctx, job)
	if !ok {
		return
	}

	p.reportProgress(ctx, job.ID, ProgressCallingLLM, "calling_llm")

	result, attempts, ok := p.generate(ctx, job, text)
	_ = p.Jobs.SetAttempts(context.Background(), job.ID, attempts)
	if !ok {
		return
	}

	increment := job.Params.RoundToHours
	if increment <= 0 {
		increment = p.RoundIncrement
	}
	if err := ComputeEstimates(&result.breakdown, increment); err != nil {
		p.fail(job.ID, ErrCodeInternal, fmt.Sprintf("estimate computation failed: %v", err))
		return
	}

	p.reportProgress(ctx, job.ID, ProgressSaving, "saving_result")

	version, err := p.Results.AppendVersion(context.Background(), job.ID, p.LLM.Model(), result.breakdown, result.raw)
	if err != nil {
		p.fail(job.ID, ErrCodeInternal, fmt.Sprintf("failed to store result: %v", err))
		return
	}

	if err := p.Jobs.MarkDone(context.Background(), job.ID); err != nil {
		telemetry.Error("mark done failed", map[string]any{"jobId": job.ID, "err": err.Error()})
		return
	}
	telemetry.Info("job done", map[string]any{
		"jobId":    job.ID,
		"version":  version,
		"attempts": attempts,
	})
}

// extractText pulls and joins text from every uploaded file. Returns false
// after writing a terminal error.
func (p *Processor) extractText(ctx context.Context, job Job) (string, bool) {
	stored, err := p.Files.List(ctx, job.PresaleID)
	if err != nil {
		p.fail(job.ID, ErrCodeInternal, fmt.Sprintf("failed to list files: %v", err))
		return "", false
	}
	if len(stored) == 0 {
		p.fail(job.ID, ErrCodeInternal, "no files uploaded for presale")
		return "", false
	}

	names := make([]string, 0, len(stored))
	texts := make([]string, 0, len(stored))
	for _, file := range stored {
		data, err := p.Files.ReadAll(ctx, file)
		if err != nil {
			p.fail(job.ID, ErrCodeInternal, fmt.Sprintf("failed to read %s: %v", file.FileName, err))
			return "", false
		}

		res, err := extract.Extract(ctx, data, file.ContentType, file.FileName)
		if err != nil {
			var corrupt *extract.CorruptError
			switch {
			case errors.As(err, &corrupt):
				p.fail(job.ID, ErrCodeCorruptDocument, fmt.Sprintf("%s: %v", file.FileName, err))
			case errors.Is(err, ctx.Err()) && ctx.Err() != nil:
				p.failTimeout(job.ID, ctx)
			default:
				p.fail(job.ID, ErrCodeInternal, fmt.Sprintf("extraction failed for %s: %v", file.FileName, err))
			}
			return "", false
		}
		if res.Empty {
			continue
		}
		names = append(names, file.FileName)
		texts = append(texts, res.Text)
	}

	if len(texts) == 0 {
		p.fail(job.ID, ErrCodeEmptyDocument, MessageScannedPDF)
		return "", false
	}
	return JoinFileSections(names, texts), true
}

type acceptedOutput struct {
	breakdown AnalysisResult
	raw       string
}

// generate drives the bounded LLM loop. Attempts are strictly sequential;
// timeouts and transport failures retry the same prompt, while invalid
// JSON and schema violations switch to a repair prompt built from the
// prior output. Returns the attempt count consumed either way.
func (p *Processor) generate(ctx context.Context, job Job, text string) (acceptedOutput, int, bool) {
	systemPrompt := SystemPrompt(job.Params.Roles)
	userPrompt := UserPrompt(text, job.Prompt)

	var lastCode, lastMessage string
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			p.failTimeout(job.ID, ctx)
			return acceptedOutput{}, attempt - 1, false
		}

		raw, err := p.LLM.Generate(ctx, systemPrompt, userPrompt)
		if err != nil {
			kind, code := classifyLLMError(err)
			p.recordAttempt(job.ID, attempt, raw, kind, err.Error(), nil)
			lastCode, lastMessage = code, err.Error()
			telemetry.Info("llm attempt failed", map[string]any{
				"jobId":   job.ID,
				"attempt": attempt,
				"kind":    kind,
			})
			if ctx.Err() != nil {
				p.failTimeout(job.ID, ctx)
				return acceptedOutput{}, attempt, false
			}
			continue
		}

		result, parseErr := ParseBreakdown(raw)
		if parseErr == nil {
			if violations := CheckRoles(result, job.Params.Roles); len(violations) > 0 {
				parseErr = &SchemaViolationsError{Violations: violations}
			}
		}
		if parseErr == nil {
			p.recordAttempt(job.ID, attempt, raw, "", "", nil)
			return acceptedOutput{breakdown: result, raw: raw}, attempt, true
		}

		var invalid *InvalidJSONError
		var schemaErr *SchemaViolationsError
		switch {
		case errors.As(parseErr, &invalid):
			p.recordAttempt(job.ID, attempt, raw, AttemptErrInvalidJSON, parseErr.Error(), nil)
			userPrompt = RepairPrompt(nil, raw)
			lastCode, lastMessage = ErrCodeLLMInvalidJSON, parseErr.Error()
		case errors.As(parseErr, &schemaErr):
			p.recordAttempt(job.ID, attempt, raw, AttemptErrSchema, parseErr.Error(), schemaErr.Violations)
			userPrompt = RepairPrompt(schemaErr.Violations, raw)
			lastCode, lastMessage = ErrCodeSchemaValidation, parseErr.Error()
		default:
			p.recordAttempt(job.ID, attempt, raw, AttemptErrInvalidJSON, parseErr.Error(), nil)
			lastCode, lastMessage = ErrCodeLLMInvalidJSON, parseErr.Error()
		}
		telemetry.Info("llm output rejected", map[string]any{
			"jobId":   job.ID,
			"attempt": attempt,
			"code":    lastCode,
		})
	}

	if lastCode == "" {
		lastCode, lastMessage = ErrCodeInternal, "llm produced no usable output"
	}
	p.fail(job.ID, lastCode, lastMessage)
	return acceptedOutput{}, p.MaxAttempts, false
}

// reportProgress advances the job's stage. A failed write is logged and
// the pipeline keeps going; progress is advisory, the terminal status is
// what matters.
func (p *Processor) reportProgress(ctx context.Context, jobID string, progress int, message string) {
	if err := p.Jobs.UpdateProgress(ctx, jobID, progress, message); err != nil {
		telemetry.Error("update progress failed", map[string]any{
			"jobId":   jobID,
			"message": message,
			"err":     err.Error(),
		})
	}
}

func (p *Processor) recordAttempt(jobID string, index int, rawOutput, kind, message string, violations []string) {
	err := p.Jobs.AppendAttempt(context.Background(), Attempt{
		ID:           uuid.NewString(),
		JobID:        jobID,
		Index:        index,
		RawOutput:    rawOutput,
		ErrorKind:    kind,
		ErrorMessage: message,
		Violations:   violations,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		telemetry.Error("append attempt failed", map[string]any{"jobId": jobID, "attempt": index, "err": err.Error()})
	}
}

func (p *Processor) fail(jobID, code, message string) {
	if err := p.Jobs.MarkError(context.Background(), jobID, code, message); err != nil {
		telemetry.Error("mark error failed", map[string]any{"jobId": jobID, "code": code, "err": err.Error()})
		return
	}
	telemetry.Info("job failed", map[string]any{"jobId": jobID, "code": code})
}

func (p *Processor) failTimeout(jobID string, ctx context.Context) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		p.fail(jobID, ErrCodeLLMTimeout, "job timeout exceeded")
		return
	}
	p.fail(jobID, ErrCodeInternal, "job canceled")
}

func classifyLLMError(err error) (kind, code string) {
	var timeout *llm.TimeoutError
	if errors.As(err, &timeout) {
		return AttemptErrTimeout, ErrCodeLLMTimeout
	}
	return AttemptErrTransport, ErrCodeLLMTransport
}
