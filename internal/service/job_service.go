package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"strings"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidStatus     = errors.New("invalid status")
)

// anonymousClient is used when a request carries no client id
const anonymousClient = "anonymous"

// EnqueueRequest is an uploaded document waiting to become a job
type EnqueueRequest struct {
	ClientID string
	FileName string
	MimeType string
	Data     []byte
	Options  models.Options
}

// JobService handles job submission and lookup
type JobService struct {
	jobs        repository.JobRepository
	payloads    repository.PayloadRepository
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
	defaults    models.Options
	logger      *slog.Logger
}

// NewJobService creates a new job service. defaults fill in missing options.
func NewJobService(
	jobs repository.JobRepository,
	payloads repository.PayloadRepository,
	rateLimiter *RateLimiter,
	metrics *metrics.Metrics,
	defaults models.Options,
	logger *slog.Logger,
) *JobService {
	if !defaults.Length.Valid() {
		defaults.Length = models.LengthMedium
	}
	if !defaults.Style.Valid() {
		defaults.Style = models.StyleNotes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		jobs:        jobs,
		payloads:    payloads,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		defaults:    defaults,
		logger:      logger,
	}
}

// Enqueue records a queued job for an uploaded document and stores its payload
func (s *JobService) Enqueue(ctx context.Context, req *EnqueueRequest) (*models.Job, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidRequest)
	}
	opts, err := s.resolveOptions(req.Options)
	if err != nil {
		return nil, err
	}

	return s.enqueue(ctx, req.ClientID, &models.Payload{
		FileName: req.FileName,
		MimeType: req.MimeType,
		Data:     req.Data,
		Options:  opts,
	})
}

// EnqueueTopic records a queued job for a typed topic
func (s *JobService) EnqueueTopic(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	opts, err := s.resolveOptions(models.Options{Length: req.Length, Style: req.Style})
	if err != nil {
		return nil, err
	}

	topic := &models.Topic{
		Subject: strings.TrimSpace(req.Subject),
		Topic:   strings.TrimSpace(req.Topic),
		Grade:   strings.TrimSpace(req.Grade),
		Details: strings.TrimSpace(req.Details),
	}
	return s.enqueue(ctx, req.ClientID, &models.Payload{
		FileName: topic.Topic + ".topic",
		MimeType: models.MimeTopic,
		Topic:    topic,
		Options:  opts,
	})
}

func (s *JobService) enqueue(ctx context.Context, clientID string, payload *models.Payload) (*models.Job, error) {
	if clientID == "" {
		clientID = anonymousClient
	}
	if err := s.rateLimiter.CheckSubmissionRate(ctx, clientID); err != nil {
		return nil, err
	}

	size := payload.Size()
	if payload.Topic != nil {
		size = int64(len(payload.Topic.Topic) + len(payload.Topic.Details))
	}

	job := s.jobs.Create(payload.FileName, size, payload.MimeType)
	s.payloads.Put(job.ID, payload)

	s.metrics.IncrementEnqueuedJobs()
	s.logger.Info("job.enqueued", "job_id", job.ID, "client_id", clientID, "file", job.FileName, "mime", job.MimeType, "size", job.FileSize)

	return job, nil
}

func (s *JobService) resolveOptions(opts models.Options) (models.Options, error) {
	if opts.Length == "" {
		opts.Length = s.defaults.Length
	}
	if opts.Style == "" {
		opts.Style = s.defaults.Style
	}
	if !opts.Length.Valid() {
		return opts, fmt.Errorf("%w: unknown length %q", ErrInvalidRequest, opts.Length)
	}
	if !opts.Style.Valid() {
		return opts, fmt.Errorf("%w: unknown style %q", ErrInvalidRequest, opts.Style)
	}
	return opts, nil
}

// GetJob retrieves a job by ID
func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, ok := s.jobs.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// ListJobs retrieves all jobs, or only those with status when it is set
func (s *JobService) ListJobs(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	if status == "" {
		return s.jobs.ListAll(), nil
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return s.jobs.ListByStatus(status), nil
}
