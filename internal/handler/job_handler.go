package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"notes-pipeline/internal/export"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/service"
	"strings"
)

// multipartMemory is how much of a multipart form is held in memory before spilling to disk
const multipartMemory = 8 << 20

// JobHandler handles HTTP requests for jobs
type JobHandler struct {
	jobService     *service.JobService
	artifacts      repository.ArtifactRepository
	metrics        *metrics.Metrics
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(
	jobService *service.JobService,
	artifacts repository.ArtifactRepository,
	metrics *metrics.Metrics,
	maxUploadBytes int64,
	logger *slog.Logger,
) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobService:     jobService,
		artifacts:      artifacts,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// CreateJob handles POST /jobs. It accepts either a multipart upload with a
// "file" part or a JSON topic body.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	var (
		job *models.Job
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		job, err = h.createFromUpload(r)
	} else {
		job, err = h.createFromTopic(r)
	}
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, job)
}

func (h *JobHandler) createFromUpload(r *http.Request) (*models.Job, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: malformed multipart form", service.ErrInvalidRequest)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("%w: file is required", service.ErrInvalidRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return h.jobService.Enqueue(r.Context(), &service.EnqueueRequest{
		ClientID: r.FormValue("client_id"),
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		Options: models.Options{
			Length: models.Length(r.FormValue("length")),
			Style:  models.Style(r.FormValue("style")),
		},
	})
}

func (h *JobHandler) createFromTopic(r *http.Request) (*models.Job, error) {
	var req models.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: invalid request body", service.ErrInvalidRequest)
	}
	return h.jobService.EnqueueTopic(r.Context(), &req)
}

func (h *JobHandler) writeCreateError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, service.ErrRateLimitExceeded):
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	case errors.Is(err, service.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("job.create_failed", "error", err)
		http.Error(w, "job creation failed", http.StatusInternalServerError)
	}
}

// GetJob handles GET /jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if path == "" || path == r.URL.Path {
		http.Error(w, "job id is required", http.StatusBadRequest)
		return
	}
	if path == "export.xlsx" {
		h.ExportJobs(w, r)
		return
	}
	if id, ok := strings.CutSuffix(path, "/artifacts"); ok {
		h.ListJobArtifacts(w, r, id)
		return
	}

	job, err := h.jobService.GetJob(r.Context(), path)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("job.get_failed", "job_id", path, "error", err)
		http.Error(w, "failed to retrieve job", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /jobs?status=
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs, err := h.jobService.ListJobs(r.Context(), models.JobStatus(r.URL.Query().Get("status")))
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
		h.logger.Error("job.list_failed", "error", err)
		http.Error(w, "failed to list jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	h.writeJSON(w, http.StatusOK, jobs)
}

// ExportJobs handles GET /jobs/export.xlsx
func (h *JobHandler) ExportJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobService.ListJobs(r.Context(), "")
	if err != nil {
		h.logger.Error("job.export_failed", "error", err)
		http.Error(w, "failed to export jobs", http.StatusInternalServerError)
		return
	}

	data, err := export.JobsXLSX(jobs)
	if err != nil {
		h.logger.Error("job.export_failed", "error", err)
		http.Error(w, "failed to export jobs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="jobs.xlsx"`)
	w.Write(data)
}

// ListJobArtifacts handles GET /jobs/{id}/artifacts
func (h *JobHandler) ListJobArtifacts(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, err := h.jobService.GetJob(r.Context(), jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("job.get_failed", "job_id", jobID, "error", err)
		http.Error(w, "failed to retrieve job", http.StatusInternalServerError)
		return
	}

	artifacts, err := h.artifacts.ListArtifactsByJob(r.Context(), jobID)
	if err != nil {
		h.logger.Error("artifact.list_failed", "job_id", jobID, "error", err)
		http.Error(w, "failed to list artifacts", http.StatusInternalServerError)
		return
	}
	if artifacts == nil {
		artifacts = []*models.Artifact{}
	}

	h.writeJSON(w, http.StatusOK, artifacts)
}

// GetArtifact handles GET /artifacts/{id}
func (h *JobHandler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" || id == r.URL.Path {
		http.Error(w, "artifact id is required", http.StatusBadRequest)
		return
	}

	artifact, err := h.artifacts.GetArtifact(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrArtifactNotFound) {
			http.Error(w, "artifact not found", http.StatusNotFound)
			return
		}
		h.logger.Error("artifact.get_failed", "artifact_id", id, "error", err)
		http.Error(w, "failed to retrieve artifact", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Write(artifact.Data)
}

// GetMetrics handles GET /metrics
func (h *JobHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}

func (h *JobHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response.encode_failed", "error", err)
	}
}
