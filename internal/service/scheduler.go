package service

import (
	"context"
	"log/slog"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// JobRunner executes one claimed job to completion
type JobRunner interface {
	Run(ctx context.Context, jobID string)
}

// Scheduler polls for queued jobs and runs a bounded batch per tick.
// A tick that starts while the previous one is still running does nothing.
type Scheduler struct {
	jobs        repository.JobRepository
	runner      JobRunner
	metrics     *metrics.Metrics
	interval    time.Duration
	concurrency int
	logger      *slog.Logger

	ticking atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithInterval sets the polling interval
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

// WithConcurrency sets how many jobs a tick may start
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) { s.concurrency = n }
}

// WithSchedulerLogger sets the scheduler logger
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// NewScheduler creates a new scheduler
func NewScheduler(jobs repository.JobRepository, runner JobRunner, metrics *metrics.Metrics, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		jobs:        jobs,
		runner:      runner,
		metrics:     metrics,
		interval:    5 * time.Second,
		concurrency: 2,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Start begins ticking in the background until Stop is called or ctx ends
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info("scheduler.started", "interval", s.interval, "concurrency", s.concurrency)
}

// Stop halts ticking and waits for the in-progress tick, if any, to finish
// or for ctx to expire
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		s.logger.Info("scheduler.stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick claims up to the concurrency limit of the oldest queued jobs and runs
// them, returning once the whole batch is finished. It returns the number
// of jobs started.
func (s *Scheduler) Tick(ctx context.Context) (started int) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Debug("scheduler.tick_skipped")
		return 0
	}
	defer s.ticking.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.metrics.IncrementTickPanics()
			s.logger.Error("scheduler.tick_panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	queued := s.jobs.ListByStatus(models.StatusQueued)
	if len(queued) == 0 {
		return 0
	}
	s.metrics.IncrementSchedulerTicks()

	if len(queued) > s.concurrency {
		queued = queued[:s.concurrency]
	}

	// running jobs outlive shutdown of the polling loop
	runCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, job := range queued {
		claimed, ok := s.jobs.Claim(job.ID)
		if !ok {
			s.logger.Debug("scheduler.claim_lost", "job_id", job.ID)
			continue
		}
		started++
		s.metrics.IncrementStartedJobs()
		s.logger.Info("scheduler.job_started", "job_id", claimed.ID, "file", claimed.FileName)

		id := claimed.ID
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.metrics.IncrementTickPanics()
					s.logger.Error("scheduler.runner_panic", "job_id", id, "panic", r, "stack", string(debug.Stack()))
				}
			}()
			s.runner.Run(runCtx, id)
			return nil
		})
	}
	g.Wait()

	return started
}
