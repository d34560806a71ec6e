package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/stages"
	"runtime/debug"
	"time"
)

// ErrPayloadMissing is recorded when a job has no stored input
var ErrPayloadMissing = errors.New("payload missing")

// Pipeline drives one job through extract, summarize and render.
// Run never returns an error: every outcome lands on the job record.
type Pipeline struct {
	jobs         repository.JobRepository
	payloads     repository.PayloadRepository
	extractor    stages.Extractor
	summarizer   stages.Summarizer
	renderer     stages.Renderer
	metrics      *metrics.Metrics
	stageTimeout time.Duration
	logger       *slog.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithStageTimeout bounds each collaborator call; zero disables the bound
func WithStageTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.stageTimeout = d }
}

// WithPipelineLogger sets the pipeline logger
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// NewPipeline creates a new pipeline executor
func NewPipeline(
	jobs repository.JobRepository,
	payloads repository.PayloadRepository,
	extractor stages.Extractor,
	summarizer stages.Summarizer,
	renderer stages.Renderer,
	metrics *metrics.Metrics,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		jobs:         jobs,
		payloads:     payloads,
		extractor:    extractor,
		summarizer:   summarizer,
		renderer:     renderer,
		metrics:      metrics,
		stageTimeout: 2 * time.Minute,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes a single job to a terminal state
func (p *Pipeline) Run(ctx context.Context, jobID string) {
	start := time.Now()
	log := p.logger.With("job_id", jobID)

	// the payload is taken exactly once and never put back
	payload, ok := p.payloads.Take(jobID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline.panic", "panic", r, "stack", string(debug.Stack()))
			p.fail(log, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if !ok {
		p.fail(log, jobID, ErrPayloadMissing.Error())
		return
	}

	// extracting
	if !p.advance(log, jobID, models.StatusExtracting, 25, models.ETAExtracting) {
		return
	}
	text, err := runStage(ctx, p.stageTimeout, models.StatusExtracting, func(ctx context.Context) (string, error) {
		return p.extractor.Extract(ctx, payload)
	})
	if err == nil && text == "" {
		err = stages.ErrNoText
	}
	if err != nil {
		p.fail(log, jobID, err.Error())
		return
	}
	if !p.store(log, jobID, models.JobUpdate{ExtractedText: &text}) {
		return
	}

	// summarizing
	if !p.advance(log, jobID, models.StatusSummarizing, 50, models.ETASummarizing) {
		return
	}
	summary, err := runStage(ctx, p.stageTimeout, models.StatusSummarizing, func(ctx context.Context) (string, error) {
		return p.summarizer.Summarize(ctx, text, stages.SummaryOptions{Length: payload.Options.Length})
	})
	if err == nil && summary == "" {
		err = errors.New("summary is empty")
	}
	if err != nil {
		p.fail(log, jobID, err.Error())
		return
	}
	if !p.store(log, jobID, models.JobUpdate{Summary: &summary}) {
		return
	}

	// rendering
	if !p.advance(log, jobID, models.StatusRendering, 75, models.ETARendering) {
		return
	}
	ref, err := runStage(ctx, p.stageTimeout, models.StatusRendering, func(ctx context.Context) (string, error) {
		return p.renderer.Render(ctx, summary, stages.RenderOptions{Style: payload.Options.Style, JobID: jobID})
	})
	if err == nil && ref == "" {
		err = errors.New("renderer returned no artifact")
	}
	if err != nil {
		p.fail(log, jobID, err.Error())
		return
	}

	if _, found, err := p.jobs.UpdateComplete(jobID, ref); err != nil || !found {
		log.Warn("pipeline.complete_not_recorded", "found", found, "error", err)
		return
	}

	p.metrics.IncrementCompletedJobs()
	log.Info("pipeline.complete", "result_url", ref, "elapsed_ms", time.Since(start).Milliseconds())
}

// advance records the next stage before its collaborator runs
func (p *Pipeline) advance(log *slog.Logger, jobID string, status models.JobStatus, progress, eta int) bool {
	_, found, err := p.jobs.UpdateProgress(jobID, status, progress, eta)
	if !found {
		log.Warn("pipeline.job_gone", "status", status)
		return false
	}
	if err != nil {
		log.Warn("pipeline.transition_rejected", "status", status, "error", err)
		return false
	}
	log.Debug("pipeline.stage", "status", status, "progress", progress)
	return true
}

func (p *Pipeline) store(log *slog.Logger, jobID string, update models.JobUpdate) bool {
	_, found, err := p.jobs.Update(jobID, update)
	if !found || err != nil {
		log.Warn("pipeline.update_rejected", "found", found, "error", err)
		return false
	}
	return true
}

func (p *Pipeline) fail(log *slog.Logger, jobID, message string) {
	_, found, err := p.jobs.UpdateFailure(jobID, message)
	if !found || err != nil {
		log.Warn("pipeline.failure_not_recorded", "found", found, "error", err, "reason", message)
		return
	}
	p.metrics.IncrementFailedJobs()
	log.Warn("pipeline.failed", "reason", message)
}

// runStage calls fn under the per-stage deadline and reports a timeout in
// terms of the stage that hung.
func runStage(ctx context.Context, timeout time.Duration, stage models.JobStatus, fn func(context.Context) (string, error)) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s panicked: %v", stage, r)}
			}
		}()
		out, err := fn(ctx)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out after %s", stage, timeout)
		}
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s timed out after %s", stage, timeout)
		}
		return "", ctx.Err()
	}
}
