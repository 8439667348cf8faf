package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"presale-backend/internal/files"
	"presale-backend/internal/llm"
	localstore "presale-backend/internal/shared/storage/object/local"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []fakeResponse
	prompts   []string
	calls     int
}

type fakeResponse struct {
	text string
	err  error
}

func (f *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, userPrompt)
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		return "", &llm.TransportError{Err: context.Canceled}
	}
	return f.responses[idx].text, f.responses[idx].err
}

func (f *fakeLLM) Model() string { return "fake-model" }

type fakeSink struct {
	mu       sync.Mutex
	payloads []AnalysisResult
	raws     []string
}

func (s *fakeSink) AppendVersion(ctx context.Context, jobID, llmModel string, payload AnalysisResult, rawOutput string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	s.raws = append(s.raws, rawOutput)
	return len(s.payloads), nil
}

type pipelineFixture struct {
	jobs      *MemoryRepo
	filesSvc  *files.Service
	sink      *fakeSink
	llmClient *fakeLLM
	processor *Processor
}

func newPipelineFixture(t *testing.T, client *fakeLLM) *pipelineFixture {
	t.Helper()
	jobsRepo := NewMemoryRepo()
	filesSvc := files.NewService(files.NewMemoryRepo(), localstore.New(t.TempDir()))
	sink := &fakeSink{}
	return &pipelineFixture{
		jobs:      jobsRepo,
		filesSvc:  filesSvc,
		sink:      sink,
		llmClient: client,
		processor: NewProcessor(jobsRepo, filesSvc, sink, client, 3, 0.5),
	}
}

func (f *pipelineFixture) uploadText(t *testing.T, content string) {
	t.Helper()
	_, err := f.filesSvc.Upload(context.Background(), "presale-1", "brief.txt", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func (f *pipelineFixture) runJob(t *testing.T) Job {
	t.Helper()
	now := time.Now().UTC()
	err := f.jobs.Create(context.Background(), Job{
		ID:        "job-1",
		PresaleID: "presale-1",
		Status:    StatusQueued,
		Message:   "queued",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := f.jobs.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	f.processor.Process(context.Background(), claimed)

	job, err := f.jobs.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job
}

func TestProcessorEmptyDocumentSkipsLLM(t *testing.T) {
	client := &fakeLLM{}
	fx := newPipelineFixture(t, client)
	fx.uploadText(t, "   \n\t ")

	job := fx.runJob(t)

	if job.Status != StatusError {
		t.Fatalf("expected error status, got %s", job.Status)
	}
	if job.ErrorCode != ErrCodeEmptyDocument {
		t.Fatalf("expected %s, got %s", ErrCodeEmptyDocument, job.ErrorCode)
	}
	if job.Message != MessageScannedPDF {
		t.Fatalf("expected message %q, got %q", MessageScannedPDF, job.Message)
	}
	if client.calls != 0 {
		t.Fatalf("LLM must not be called for empty documents, got %d calls", client.calls)
	}
}

func TestProcessorViolationThenRepairSucceeds(t *testing.T) {
	badOutput := `{"epics":[{"title":"E","tasks":[{"title":"T","role":"Wizard","pert_hours":{"optimistic":1,"most_likely":2,"pessimistic":4}}]}]}`
	client := &fakeLLM{responses: []fakeResponse{
		{text: badOutput},
		{text: validOutput},
	}}
	fx := newPipelineFixture(t, client)
	fx.uploadText(t, "build a customer portal")

	job := fx.runJob(t)

	if job.Status != StatusDone {
		t.Fatalf("expected done, got %s (%s: %s)", job.Status, job.ErrorCode, job.Message)
	}
	if job.Progress != ProgressDone || job.Message != "ok" {
		t.Fatalf("unexpected terminal fields: %d/%s", job.Progress, job.Message)
	}
	if job.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", job.Attempts)
	}

	// Second prompt is a repair prompt referencing the rejected output.
	if len(client.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(client.prompts))
	}
	if !strings.Contains(client.prompts[1], "rejected") || !strings.Contains(client.prompts[1], "Wizard") {
		t.Fatalf("second prompt is not a repair prompt: %q", client.prompts[1][:120])
	}

	// Stored result has recomputed estimates.
	if len(fx.sink.payloads) != 1 {
		t.Fatalf("expected one stored result, got %d", len(fx.sink.payloads))
	}
	stored := fx.sink.payloads[0]
	if stored.Epics[0].Tasks[0].Hours.Expected != 2.0 {
		t.Fatalf("expected hours not computed: %+v", stored.Epics[0].Tasks[0].Hours)
	}
	if stored.Totals.ExpectedHours != 6.5 {
		t.Fatalf("totals = %g, want 6.5", stored.Totals.ExpectedHours)
	}
	if fx.sink.raws[0] == "" {
		t.Fatal("raw llm output not retained")
	}

	// Attempt log: most recent first, failure recorded with violations.
	attempts, err := fx.jobs.ListAttempts(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempt records, got %d", len(attempts))
	}
	if attempts[0].Index != 2 || attempts[0].ErrorKind != "" {
		t.Fatalf("latest attempt should be the success: %+v", attempts[0])
	}
	if attempts[1].ErrorKind != AttemptErrSchema || len(attempts[1].Violations) == 0 {
		t.Fatalf("first attempt should record schema violations: %+v", attempts[1])
	}
}

func TestProcessorExhaustsTimeoutsAndFails(t *testing.T) {
	timeoutErr := &llm.TimeoutError{Err: context.DeadlineExceeded}
	client := &fakeLLM{responses: []fakeResponse{
		{err: timeoutErr},
		{err: timeoutErr},
		{err: timeoutErr},
	}}
	fx := newPipelineFixture(t, client)
	fx.uploadText(t, "build a customer portal")

	job := fx.runJob(t)

	if job.Status != StatusError {
		t.Fatalf("expected error, got %s", job.Status)
	}
	if job.ErrorCode != ErrCodeLLMTimeout {
		t.Fatalf("expected %s, got %s", ErrCodeLLMTimeout, job.ErrorCode)
	}
	if job.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", job.Attempts)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 LLM calls, got %d", client.calls)
	}
	// Timeouts retry with the original prompt, not a repair prompt.
	if client.prompts[0] != client.prompts[1] || client.prompts[1] != client.prompts[2] {
		t.Fatal("timeout retries must reuse the same prompt")
	}
	if len(fx.sink.payloads) != 0 {
		t.Fatal("no result should be stored for a failed job")
	}
}

func TestProcessorInvalidJSONExhaustsAttempts(t *testing.T) {
	client := &fakeLLM{responses: []fakeResponse{
		{text: "sorry, I cannot help with that"},
		{text: "still no json"},
		{text: "nope"},
	}}
	fx := newPipelineFixture(t, client)
	fx.uploadText(t, "build a customer portal")

	job := fx.runJob(t)

	if job.Status != StatusError {
		t.Fatalf("expected error, got %s", job.Status)
	}
	if job.ErrorCode != ErrCodeLLMInvalidJSON {
		t.Fatalf("expected %s, got %s", ErrCodeLLMInvalidJSON, job.ErrorCode)
	}
	if job.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", job.Attempts)
	}
}

func TestProcessorCorruptDocument(t *testing.T) {
	client := &fakeLLM{}
	fx := newPipelineFixture(t, client)
	_, err := fx.filesSvc.Upload(context.Background(), "presale-1", "broken.docx", strings.NewReader("not a zip"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	job := fx.runJob(t)

	if job.ErrorCode != ErrCodeCorruptDocument {
		t.Fatalf("expected %s, got %s", ErrCodeCorruptDocument, job.ErrorCode)
	}
	if client.calls != 0 {
		t.Fatal("LLM must not be called for corrupt documents")
	}
}

// failingProgressRepo drops every progress write, as a dying database
// would.
type failingProgressRepo struct {
	*MemoryRepo
}

func (r *failingProgressRepo) UpdateProgress(ctx context.Context, jobID string, progress int, message string) error {
	return errors.New("connection reset by peer")
}

func TestProcessorSurvivesProgressWriteFailures(t *testing.T) {
	client := &fakeLLM{responses: []fakeResponse{{text: validOutput}}}
	jobsRepo := &failingProgressRepo{MemoryRepo: NewMemoryRepo()}
	filesSvc := files.NewService(files.NewMemoryRepo(), localstore.New(t.TempDir()))
	sink := &fakeSink{}
	processor := NewProcessor(jobsRepo, filesSvc, sink, client, 3, 0.5)

	if _, err := filesSvc.Upload(context.Background(), "presale-1", "brief.txt", strings.NewReader("build a portal")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	now := time.Now().UTC()
	err := jobsRepo.Create(context.Background(), Job{
		ID:        "job-1",
		PresaleID: "presale-1",
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := jobsRepo.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}

	processor.Process(context.Background(), claimed)

	job, err := jobsRepo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != StatusDone {
		t.Fatalf("expected done despite progress failures, got %s (%s)", job.Status, job.Message)
	}
	if len(sink.payloads) != 1 {
		t.Fatalf("expected one stored result, got %d", len(sink.payloads))
	}
}

func TestProcessorNarrowedRolesRejectOutsider(t *testing.T) {
	// Valid against the schema, but the job narrows roles to QA only.
	client := &fakeLLM{responses: []fakeResponse{
		{text: validOutput},
		{text: validOutput},
		{text: validOutput},
	}}
	fx := newPipelineFixture(t, client)
	fx.uploadText(t, "build a customer portal")

	now := time.Now().UTC()
	err := fx.jobs.Create(context.Background(), Job{
		ID:        "job-1",
		PresaleID: "presale-1",
		Params:    Params{Roles: []string{"QA"}},
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	claimed, err := fx.jobs.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	fx.processor.Process(context.Background(), claimed)

	job, err := fx.jobs.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.ErrorCode != ErrCodeSchemaValidation {
		t.Fatalf("expected %s, got %s", ErrCodeSchemaValidation, job.ErrorCode)
	}
}
