package results_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"presale-backend/internal/bootstrap"
	"presale-backend/internal/jobs"
	"presale-backend/internal/shared/config"
)

func buildResultFixture(t *testing.T) (*bootstrap.App, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		OllamaURL:       "http://localhost:11434",
		OllamaModel:     "llama3",
		RoundToHours:    0.5,
		Env:             "dev",
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}

	now := time.Now().UTC()
	jobID := "11111111-1111-1111-1111-111111111111"
	err = app.JobsRepo.Create(context.Background(), jobs.Job{
		ID:        jobID,
		PresaleID: "presale-1",
		Status:    jobs.StatusDone,
		Progress:  100,
		Message:   "ok",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	payload := jobs.AnalysisResult{
		Epics: []jobs.Epic{{
			Title: "Core",
			Tasks: []jobs.Task{{
				Title: "API",
				Role:  "Backend",
				Hours: jobs.PERTHours{Optimistic: 1, MostLikely: 2, Pessimistic: 4, Expected: 2},
			}},
		}},
		Totals: jobs.Totals{ExpectedHours: 2},
	}
	if _, err := app.ResultsRepo.AppendVersion(context.Background(), jobID, "llama3", payload, "raw output"); err != nil {
		t.Fatalf("append version: %v", err)
	}

	return app, jobID
}

func TestResultGetLatest(t *testing.T) {
	app, jobID := buildResultFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/result", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	// Payload fields sit flat next to the version metadata.
	var parsed struct {
		Version  int    `json:"version"`
		LLMModel string `json:"llm_model"`
		Epics    []struct {
			Title string `json:"title"`
		} `json:"epics"`
		Totals struct {
			ExpectedHours float64 `json:"expected_hours"`
		} `json:"totals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Version != 1 || parsed.LLMModel != "llama3" || parsed.Totals.ExpectedHours != 2 {
		t.Fatalf("unexpected response: %+v", parsed)
	}
	if len(parsed.Epics) != 1 || parsed.Epics[0].Title != "Core" {
		t.Fatalf("epics not at top level: %+v", parsed.Epics)
	}
}

func TestResultNotReadyConflict(t *testing.T) {
	app, _ := buildResultFixture(t)

	// A done job without a result: simulate by creating a fresh job.
	err := app.JobsRepo.Create(context.Background(), jobs.Job{
		ID:        "22222222-2222-2222-2222-222222222222",
		PresaleID: "presale-1",
		Status:    jobs.StatusRunning,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/22222222-2222-2222-2222-222222222222/result", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestResultVersionsAndPatch(t *testing.T) {
	app, jobID := buildResultFixture(t)

	body := `{"edits":[{"epic":0,"task":0,"optimistic":2,"most_likely":4,"pessimistic":8}]}`
	reqPatch := httptest.NewRequest(http.MethodPatch, "/api/v1/jobs/"+jobID+"/result/rows", strings.NewReader(body))
	reqPatch.Header.Set("Content-Type", "application/json")
	respPatch := httptest.NewRecorder()
	app.Router.ServeHTTP(respPatch, reqPatch)

	if respPatch.Code != http.StatusOK {
		t.Fatalf("patch: expected 200, got %d (%s)", respPatch.Code, respPatch.Body.String())
	}
	var patched struct {
		Version int `json:"version"`
	}
	if err := json.NewDecoder(respPatch.Body).Decode(&patched); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	if patched.Version != 2 {
		t.Fatalf("expected version 2, got %d", patched.Version)
	}

	reqVersions := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/result/versions", nil)
	respVersions := httptest.NewRecorder()
	app.Router.ServeHTTP(respVersions, reqVersions)
	if respVersions.Code != http.StatusOK {
		t.Fatalf("versions: expected 200, got %d", respVersions.Code)
	}
	var versions []struct {
		Version int `json:"version"`
	}
	if err := json.NewDecoder(respVersions.Body).Decode(&versions); err != nil {
		t.Fatalf("decode versions: %v", err)
	}
	if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
		t.Fatalf("unexpected versions: %+v", versions)
	}

	// Old version still retrievable.
	reqOld := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/result?version=1", nil)
	respOld := httptest.NewRecorder()
	app.Router.ServeHTTP(respOld, reqOld)
	if respOld.Code != http.StatusOK {
		t.Fatalf("old version: expected 200, got %d", respOld.Code)
	}
}

func TestResultPatchRejectsBadOrdering(t *testing.T) {
	app, jobID := buildResultFixture(t)

	body := `{"edits":[{"epic":0,"task":0,"optimistic":9,"most_likely":4,"pessimistic":8}]}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/jobs/"+jobID+"/result/rows", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestResultExportJSON(t *testing.T) {
	app, jobID := buildResultFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/export/json", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	disposition := resp.Header().Get("Content-Disposition")
	want := "attachment; filename=presale_" + jobID + "_v1.json"
	if disposition != want {
		t.Fatalf("unexpected disposition %q, want %q", disposition, want)
	}
	var payload struct {
		Version  int               `json:"version"`
		LLMModel string            `json:"llm_model"`
		Epics    []json.RawMessage `json:"epics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if payload.Version != 1 || payload.LLMModel != "llama3" || len(payload.Epics) != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestResultUnknownJob(t *testing.T) {
	app, _ := buildResultFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/unknown/result", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
