package repository

import (
	"fmt"
	"notes-pipeline/internal/models"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements JobRepository with an in-process map.
// Records are lost on restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	jobs  map[string]*models.Job
	order []string
	now   func() time.Time
}

// NewMemoryRepository creates a new in-memory job repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

// WithClock replaces the time source used for createdAt and updatedAt
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

// Create creates a new queued job
func (r *MemoryRepository) Create(fileName string, fileSize int64, mimeType string) *models.Job {
	now := r.now()
	eta := models.ETAQueued
	job := &models.Job{
		ID:                     uuid.New().String(),
		Status:                 models.StatusQueued,
		Progress:               0,
		FileName:               fileName,
		FileSize:               fileSize,
		MimeType:               mimeType,
		CreatedAt:              now,
		UpdatedAt:              now,
		EstimatedTimeRemaining: &eta,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)

	return job.Clone()
}

// Get retrieves a job by ID
func (r *MemoryRepository) Get(id string) (*models.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Update merges the non-nil fields of update into the job
func (r *MemoryRepository) Update(id string, update models.JobUpdate) (*models.Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, false, nil
	}

	if job.Status.IsTerminal() {
		return job.Clone(), true, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrInvalidTransition)
	}
	if update.Status != nil && !job.Status.CanTransition(*update.Status) {
		return job.Clone(), true, fmt.Errorf("job %s: %s -> %s: %w", id, job.Status, *update.Status, ErrInvalidTransition)
	}

	next := job.Status
	if update.Status != nil {
		next = *update.Status
	}
	if update.ResultURL != nil && next != models.StatusComplete {
		return job.Clone(), true, fmt.Errorf("job %s: result url on %s job: %w", id, next, ErrInvalidTransition)
	}
	if update.ErrorMessage != nil && next != models.StatusFailed {
		return job.Clone(), true, fmt.Errorf("job %s: error message on %s job: %w", id, next, ErrInvalidTransition)
	}

	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.Progress != nil {
		// progress never moves backwards until the job fails
		p := clampProgress(*update.Progress)
		if job.Status == models.StatusFailed || p > job.Progress {
			job.Progress = p
		}
	}
	if update.EstimatedTimeRemaining != nil {
		eta := *update.EstimatedTimeRemaining
		job.EstimatedTimeRemaining = &eta
	}
	if update.ExtractedText != nil {
		text := *update.ExtractedText
		job.ExtractedText = &text
	}
	if update.Summary != nil {
		summary := *update.Summary
		job.Summary = &summary
	}
	if update.ResultURL != nil {
		ref := *update.ResultURL
		job.ResultURL = &ref
	}
	if update.ErrorMessage != nil {
		msg := *update.ErrorMessage
		job.ErrorMessage = &msg
	}
	job.UpdatedAt = r.now()

	return job.Clone(), true, nil
}

// UpdateProgress moves the job to status with the given progress and ETA
func (r *MemoryRepository) UpdateProgress(id string, status models.JobStatus, progress, etaSeconds int) (*models.Job, bool, error) {
	return r.Update(id, models.JobUpdate{
		Status:                 &status,
		Progress:               &progress,
		EstimatedTimeRemaining: &etaSeconds,
	})
}

// UpdateFailure marks the job failed with the given message
func (r *MemoryRepository) UpdateFailure(id string, message string) (*models.Job, bool, error) {
	status := models.StatusFailed
	progress := 0
	return r.Update(id, models.JobUpdate{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &message,
	})
}

// UpdateComplete marks the job complete with its result reference
func (r *MemoryRepository) UpdateComplete(id string, resultURL string) (*models.Job, bool, error) {
	status := models.StatusComplete
	progress := 100
	eta := 0
	return r.Update(id, models.JobUpdate{
		Status:                 &status,
		Progress:               &progress,
		EstimatedTimeRemaining: &eta,
		ResultURL:              &resultURL,
	})
}

// ListAll returns every job in insertion order
func (r *MemoryRepository) ListAll() []*models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(r.order))
	for _, id := range r.order {
		jobs = append(jobs, r.jobs[id].Clone())
	}
	return jobs
}

// ListByStatus returns jobs with the given status in insertion order
func (r *MemoryRepository) ListByStatus(status models.JobStatus) []*models.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []*models.Job
	for _, id := range r.order {
		if job := r.jobs[id]; job.Status == status {
			jobs = append(jobs, job.Clone())
		}
	}
	return jobs
}

// Sweep removes every job older than maxAge regardless of status and
// returns the removed IDs
func (r *MemoryRepository) Sweep(now time.Time, maxAge time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	kept := r.order[:0]
	for _, id := range r.order {
		if now.Sub(r.jobs[id].CreatedAt) > maxAge {
			delete(r.jobs, id)
			removed = append(removed, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	return removed
}

// Claim atomically moves a queued job to extracting. It reports false
// when the job is unknown or has already left the queued state.
func (r *MemoryRepository) Claim(id string) (*models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok || job.Status != models.StatusQueued {
		return nil, false
	}

	eta := models.ETAExtracting
	job.Status = models.StatusExtracting
	job.Progress = 25
	job.EstimatedTimeRemaining = &eta
	job.UpdatedAt = r.now()

	return job.Clone(), true
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
