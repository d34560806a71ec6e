// Package render turns summaries into stored, downloadable study-note artifacts.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/stages"
	"time"

	"github.com/google/uuid"
)

// Strategy is one named way of rendering a summary.
type Strategy struct {
	Name     string
	Renderer stages.Renderer
}

// Chain tries each strategy in order and returns the first success.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
	onFallback func(name string, err error)
}

var _ stages.Renderer = (*Chain)(nil)

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithLogger sets the logger used to report fallbacks.
func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) { c.logger = logger }
}

// WithFallbackHook is called each time a strategy fails and the next one is tried.
func WithFallbackHook(fn func(name string, err error)) ChainOption {
	return func(c *Chain) { c.onFallback = fn }
}

// NewChain builds a chain over the given strategies, skipping nil renderers.
func NewChain(strategies []Strategy, opts ...ChainOption) *Chain {
	c := &Chain{logger: slog.Default()}
	for _, s := range strategies {
		if s.Renderer != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names returns the strategy names in the order they are tried.
func (c *Chain) Names() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name
	}
	return names
}

func (c *Chain) Render(ctx context.Context, summary string, opts stages.RenderOptions) (string, error) {
	if len(c.strategies) == 0 {
		return "", &stages.RenderingError{Err: errors.New("no renderers configured")}
	}

	var errs []error
	for i, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ref, err := s.Renderer.Render(ctx, summary, opts)
		if err == nil {
			if i > 0 {
				c.logger.Info("render.fallback_used", "job_id", opts.JobID, "renderer", s.Name)
			}
			return ref, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		c.logger.Warn("render.strategy_failed", "job_id", opts.JobID, "renderer", s.Name, "error", err)
		if c.onFallback != nil && i+1 < len(c.strategies) {
			c.onFallback(s.Name, err)
		}
	}

	return "", &stages.RenderingError{Err: fmt.Errorf("all renderers failed: %w", errors.Join(errs...))}
}

// saveArtifact persists rendered bytes and returns the artifact reference.
func saveArtifact(ctx context.Context, repo repository.ArtifactRepository, jobID, contentType, renderer string, data []byte) (string, error) {
	artifact := &models.Artifact{
		ID:          uuid.New().String(),
		JobID:       jobID,
		ContentType: contentType,
		Renderer:    renderer,
		Data:        data,
		CreatedAt:   time.Now(),
	}
	if err := repo.SaveArtifact(ctx, artifact); err != nil {
		return "", err
	}
	return stages.ArtifactRef(artifact.ID), nil
}
