package repository

import (
	"context"
	"errors"
	"notes-pipeline/internal/models"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrArtifactNotFound  = errors.New("artifact not found")
)

// JobRepository defines the interface for job tracking.
// Lookups that miss report false instead of an error.
type JobRepository interface {
	Create(fileName string, fileSize int64, mimeType string) *models.Job
	Get(id string) (*models.Job, bool)
	Update(id string, update models.JobUpdate) (*models.Job, bool, error)
	UpdateProgress(id string, status models.JobStatus, progress, etaSeconds int) (*models.Job, bool, error)
	UpdateFailure(id string, message string) (*models.Job, bool, error)
	UpdateComplete(id string, resultURL string) (*models.Job, bool, error)
	ListAll() []*models.Job
	ListByStatus(status models.JobStatus) []*models.Job
	Sweep(now time.Time, maxAge time.Duration) []string
	Claim(id string) (*models.Job, bool)
}

// PayloadRepository holds ephemeral job inputs until the pipeline takes them
type PayloadRepository interface {
	Put(jobID string, payload *models.Payload)
	Take(jobID string) (*models.Payload, bool)
	Drop(jobIDs ...string)
	Len() int
}

// ArtifactRepository defines the interface for rendered artifact persistence
type ArtifactRepository interface {
	SaveArtifact(ctx context.Context, artifact *models.Artifact) error
	GetArtifact(ctx context.Context, id string) (*models.Artifact, error)
	ListArtifactsByJob(ctx context.Context, jobID string) ([]*models.Artifact, error)
	DeleteArtifactsByJob(ctx context.Context, jobIDs ...string) (int64, error)
}
