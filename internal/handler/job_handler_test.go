package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"notes-pipeline/internal/logging"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/service"
	"strings"
	"testing"
)

type mockArtifactRepository struct {
	artifacts map[string]*models.Artifact
}

func (m *mockArtifactRepository) SaveArtifact(ctx context.Context, a *models.Artifact) error {
	m.artifacts[a.ID] = a
	return nil
}

func (m *mockArtifactRepository) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	a, ok := m.artifacts[id]
	if !ok {
		return nil, repository.ErrArtifactNotFound
	}
	return a, nil
}

func (m *mockArtifactRepository) ListArtifactsByJob(ctx context.Context, jobID string) ([]*models.Artifact, error) {
	var out []*models.Artifact
	for _, a := range m.artifacts {
		if a.JobID == jobID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockArtifactRepository) DeleteArtifactsByJob(ctx context.Context, jobIDs ...string) (int64, error) {
	return 0, nil
}

type handlerFixture struct {
	jobs      *repository.MemoryRepository
	payloads  *repository.MemoryPayloadRepository
	artifacts *mockArtifactRepository
	handler   *JobHandler
}

func newHandlerFixture(perMinute, burst int, maxUpload int64) *handlerFixture {
	f := &handlerFixture{
		jobs:      repository.NewMemoryRepository(),
		payloads:  repository.NewMemoryPayloadRepository(),
		artifacts: &mockArtifactRepository{artifacts: make(map[string]*models.Artifact)},
	}
	m := metrics.NewMetrics()
	svc := service.NewJobService(f.jobs, f.payloads, service.NewRateLimiter(perMinute, burst), m, models.Options{}, logging.Discard())
	f.handler = NewJobHandler(svc, f.artifacts, m, maxUpload, logging.Discard())
	return f
}

func multipartRequest(t *testing.T, fileName, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	part.Write(data)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestJobHandler_CreateJob_Upload(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	req := multipartRequest(t, "notes.txt", "text/plain", []byte("hello world"), map[string]string{
		"length": "short",
		"style":  "outline",
	})
	rec := httptest.NewRecorder()

	f.handler.CreateJob(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var job models.Job
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if job.Status != models.StatusQueued || job.Progress != 0 {
		t.Errorf("expected queued/0, got %s/%d", job.Status, job.Progress)
	}
	if job.FileName != "notes.txt" || job.FileSize != 11 {
		t.Errorf("unexpected job file info: %s %d", job.FileName, job.FileSize)
	}

	payload, ok := f.payloads.Take(job.ID)
	if !ok {
		t.Fatal("expected payload to be stored")
	}
	if payload.Options.Length != models.LengthShort || payload.Options.Style != models.StyleOutline {
		t.Errorf("expected form options to be applied, got %+v", payload.Options)
	}
}

func TestJobHandler_CreateJob_MissingFile(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("style", "notes")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/jobs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	f.handler.CreateJob(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestJobHandler_CreateJob_Topic(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"subject":"History","topic":"The French Revolution","grade":"10"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	f.handler.CreateJob(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var job models.Job
	json.NewDecoder(rec.Body).Decode(&job)
	if job.MimeType != models.MimeTopic {
		t.Errorf("expected topic mime type, got %s", job.MimeType)
	}
}

func TestJobHandler_CreateJob_BadRequests(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)

	bodies := []string{
		`not json`,
		`{"subject":"History"}`,
		`{"topic":"x","length":"epic"}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
		rec := httptest.NewRecorder()
		f.handler.CreateJob(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestJobHandler_CreateJob_TooLarge(t *testing.T) {
	f := newHandlerFixture(10, 5, 64)
	body := `{"topic":"` + strings.Repeat("a", 1024) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()

	f.handler.CreateJob(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestJobHandler_CreateJob_RateLimited(t *testing.T) {
	f := newHandlerFixture(1, 1, 1<<20)

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"topic":"Cells","client_id":"c1"}`))
		rec := httptest.NewRecorder()
		f.handler.CreateJob(rec, req)
		codes[i] = rec.Code
	}

	if codes[0] != http.StatusCreated {
		t.Errorf("expected first request 201, got %d", codes[0])
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("expected second request 429, got %d", codes[1])
	}
}

func TestJobHandler_CreateJob_MethodNotAllowed(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	rec := httptest.NewRecorder()

	f.handler.CreateJob(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestJobHandler_GetJob(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	job := f.jobs.Create("a.txt", 1, "text/plain")

	rec := httptest.NewRecorder()
	f.handler.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got models.Job
	json.NewDecoder(rec.Body).Decode(&got)
	if got.ID != job.ID {
		t.Errorf("expected job %s, got %s", job.ID, got.ID)
	}

	rec = httptest.NewRecorder()
	f.handler.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestJobHandler_ListJobs(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	f.jobs.Create("a.txt", 1, "text/plain")
	f.jobs.Create("b.txt", 1, "text/plain")

	rec := httptest.NewRecorder()
	f.handler.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	var all []models.Job
	json.NewDecoder(rec.Body).Decode(&all)
	if len(all) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(all))
	}

	rec = httptest.NewRecorder()
	f.handler.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=complete", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}

	rec = httptest.NewRecorder()
	f.handler.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=PENDING", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestJobHandler_ExportJobs(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	f.jobs.Create("a.txt", 1, "text/plain")

	rec := httptest.NewRecorder()
	f.handler.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/export.xlsx", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("expected xlsx content type, got %s", ct)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("expected a zip payload")
	}
}

func TestJobHandler_GetArtifact(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	f.artifacts.SaveArtifact(context.Background(), &models.Artifact{ID: "art-1", JobID: "job-1", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})

	rec := httptest.NewRecorder()
	f.handler.GetArtifact(rec, httptest.NewRequest(http.MethodGet, "/artifacts/art-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("expected image/png, got %s", rec.Header().Get("Content-Type"))
	}
	if rec.Body.Len() != 4 {
		t.Errorf("expected 4 bytes, got %d", rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	f.handler.GetArtifact(rec, httptest.NewRequest(http.MethodGet, "/artifacts/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestJobHandler_GetMetrics(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"topic":"Cells"}`))
	f.handler.CreateJob(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	f.handler.GetMetrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var snapshot map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&snapshot); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snapshot["enqueued_jobs"] != 1 {
		t.Errorf("expected enqueued_jobs 1, got %d", snapshot["enqueued_jobs"])
	}
}

func TestJobHandler_ListJobArtifacts(t *testing.T) {
	f := newHandlerFixture(10, 5, 1<<20)
	job := f.jobs.Create("a.txt", 1, "text/plain")
	other := f.jobs.Create("b.txt", 1, "text/plain")
	f.artifacts.SaveArtifact(context.Background(), &models.Artifact{ID: "art-1", JobID: job.ID, ContentType: "image/png", Renderer: "local", Data: []byte("png")})
	f.artifacts.SaveArtifact(context.Background(), &models.Artifact{ID: "art-2", JobID: other.ID, ContentType: "text/plain", Renderer: "raw"})

	rec := httptest.NewRecorder()
	f.handler.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID+"/artifacts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []models.Artifact
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 1 || got[0].ID != "art-1" || got[0].Renderer != "local" {
		t.Errorf("expected only art-1, got %+v", got)
	}

	rec = httptest.NewRecorder()
	empty := f.jobs.Create("c.txt", 1, "text/plain")
	f.handler.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/"+empty.ID+"/artifacts", nil))
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}

	rec = httptest.NewRecorder()
	f.handler.GetJob(rec, httptest.NewRequest(http.MethodGet, "/jobs/missing/artifacts", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
