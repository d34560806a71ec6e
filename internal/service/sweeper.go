package service

import (
	"context"
	"fmt"
	"log/slog"
	"notes-pipeline/internal/metrics"
	"notes-pipeline/internal/repository"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically evicts jobs older than maxAge along with anything
// still held for them.
type Sweeper struct {
	jobs      repository.JobRepository
	payloads  repository.PayloadRepository
	artifacts repository.ArtifactRepository
	limiter   *RateLimiter
	metrics   *metrics.Metrics
	maxAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	cron *cron.Cron
}

// NewSweeper creates a sweeper; artifacts and limiter may be nil
func NewSweeper(
	jobs repository.JobRepository,
	payloads repository.PayloadRepository,
	artifacts repository.ArtifactRepository,
	limiter *RateLimiter,
	metrics *metrics.Metrics,
	maxAge time.Duration,
	logger *slog.Logger,
) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		jobs:      jobs,
		payloads:  payloads,
		artifacts: artifacts,
		limiter:   limiter,
		metrics:   metrics,
		maxAge:    maxAge,
		logger:    logger,
		now:       time.Now,
	}
}

// Start runs Sweep on the given cron schedule, e.g. "@every 1h"
func (s *Sweeper) Start(schedule string) error {
	errLog := slog.NewLogLogger(s.logger.Handler(), slog.LevelError)
	c := cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(errLog)),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	if _, err := c.AddFunc(schedule, func() { s.Sweep(context.Background()) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("sweeper.started", "schedule", schedule, "max_age", s.maxAge)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep evicts expired jobs and returns how many were removed
func (s *Sweeper) Sweep(ctx context.Context) int {
	if s.limiter != nil {
		s.limiter.Prune(s.maxAge)
	}

	removed := s.jobs.Sweep(s.now(), s.maxAge)
	if len(removed) == 0 {
		return 0
	}

	s.payloads.Drop(removed...)

	var artifactCount int64
	if s.artifacts != nil {
		n, err := s.artifacts.DeleteArtifactsByJob(ctx, removed...)
		if err != nil {
			s.logger.Error("sweeper.artifacts_failed", "error", err)
		}
		artifactCount = n
	}

	s.metrics.AddSweptJobs(len(removed))
	s.logger.Info("sweeper.swept", "jobs", len(removed), "artifacts", artifactCount)
	return len(removed)
}
