package jobs_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"presale-backend/internal/bootstrap"
	"presale-backend/internal/shared/config"
)

func buildTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:3000"},
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		OllamaURL:       "http://localhost:11434",
		OllamaModel:     "llama3",
		LLMMaxAttempts:  3,
		RoundToHours:    0.5,
		Env:             "dev",
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func createPresale(t *testing.T, app *bootstrap.App) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales", strings.NewReader(`{"name":"ACME portal"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("create presale: expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
	var created struct {
		PresaleID string `json:"presaleId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode presale: %v", err)
	}
	return created.PresaleID
}

func uploadFile(t *testing.T, app *bootstrap.App, presaleID, name, content string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales/"+presaleID+"/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d (%s)", resp.Code, resp.Body.String())
	}
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var parsed struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return parsed.Error.Code
}

func TestSubmitRequiresUploadedFiles(t *testing.T) {
	app := buildTestApp(t)
	presaleID := createPresale(t, app)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales/"+presaleID+"/jobs", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if code := decodeErrorCode(t, resp.Body); code != "no_files_uploaded" {
		t.Fatalf("expected no_files_uploaded, got %s", code)
	}
}

func TestSubmitAndPollJob(t *testing.T) {
	app := buildTestApp(t)
	presaleID := createPresale(t, app)
	uploadFile(t, app, presaleID, "brief.txt", "build a customer portal")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales/"+presaleID+"/jobs",
		strings.NewReader(`{"roles":["Backend","QA"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", resp.Code, resp.Body.String())
	}
	var submitted struct {
		JobID    string `json:"jobId"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submitted.Status != "queued" || submitted.Progress != 0 {
		t.Fatalf("new job should be queued at 0, got %s/%d", submitted.Status, submitted.Progress)
	}

	// Poll the job.
	reqGet := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+submitted.JobID, nil)
	respGet := httptest.NewRecorder()
	app.Router.ServeHTTP(respGet, reqGet)
	if respGet.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", respGet.Code)
	}

	// List per presale.
	reqList := httptest.NewRequest(http.MethodGet, "/api/v1/presales/"+presaleID+"/jobs", nil)
	respList := httptest.NewRecorder()
	app.Router.ServeHTTP(respList, reqList)
	if respList.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", respList.Code)
	}
	var listed []struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(respList.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].JobID != submitted.JobID {
		t.Fatalf("unexpected list: %+v", listed)
	}

	// Global listing picks the job up too.
	reqAll := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	respAll := httptest.NewRecorder()
	app.Router.ServeHTTP(respAll, reqAll)
	if respAll.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", respAll.Code)
	}
	var all []struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(respAll.Body).Decode(&all); err != nil {
		t.Fatalf("decode global list: %v", err)
	}
	if len(all) != 1 || all[0].JobID != submitted.JobID {
		t.Fatalf("unexpected global list: %+v", all)
	}
}

func TestSubmitRejectsUnknownRole(t *testing.T) {
	app := buildTestApp(t)
	presaleID := createPresale(t, app)
	uploadFile(t, app, presaleID, "brief.txt", "content")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales/"+presaleID+"/jobs",
		strings.NewReader(`{"roles":["Wizard"]}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAlternativeQueuesNewJob(t *testing.T) {
	app := buildTestApp(t)
	presaleID := createPresale(t, app)
	uploadFile(t, app, presaleID, "brief.txt", "content")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales/"+presaleID+"/jobs", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d", resp.Code)
	}
	var first struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&first); err != nil {
		t.Fatalf("decode submit: %v", err)
	}

	reqAlt := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+first.JobID+"/alternative", nil)
	respAlt := httptest.NewRecorder()
	app.Router.ServeHTTP(respAlt, reqAlt)
	if respAlt.Code != http.StatusAccepted {
		t.Fatalf("alternative: expected 202, got %d", respAlt.Code)
	}
	var alt struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(respAlt.Body).Decode(&alt); err != nil {
		t.Fatalf("decode alternative: %v", err)
	}
	if alt.JobID == first.JobID {
		t.Fatal("alternative must create a new job")
	}
	if alt.Status != "queued" {
		t.Fatalf("alternative should be queued, got %s", alt.Status)
	}
}

func TestJobNotFound(t *testing.T) {
	app := buildTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/00000000-0000-0000-0000-000000000000", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAttemptsEndpointEmpty(t *testing.T) {
	app := buildTestApp(t)
	presaleID := createPresale(t, app)
	uploadFile(t, app, presaleID, "brief.txt", "content")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/presales/"+presaleID+"/jobs", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	var submitted struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode submit: %v", err)
	}

	reqAttempts := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+submitted.JobID+"/attempts", nil)
	respAttempts := httptest.NewRecorder()
	app.Router.ServeHTTP(respAttempts, reqAttempts)
	if respAttempts.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", respAttempts.Code)
	}
	var attempts []any
	if err := json.NewDecoder(respAttempts.Body).Decode(&attempts); err != nil {
		t.Fatalf("decode attempts: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("expected no attempts, got %d", len(attempts))
	}
}
