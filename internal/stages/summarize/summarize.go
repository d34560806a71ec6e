package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"notes-pipeline/internal/config"
	"notes-pipeline/internal/stages"
)

// New builds the summarizer selected by cfg.Provider. The returned close
// function is never nil.
func New(ctx context.Context, cfg config.SummarizerConfig, logger *slog.Logger) (stages.Summarizer, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case config.ProviderOpenAI:
		c, err := NewOpenAIClient(cfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case config.ProviderVertex:
		v, err := NewVertexSummarizer(ctx, cfg.VertexProject, cfg.VertexRegion, logger)
		if err != nil {
			return nil, noop, err
		}
		return v, v.Close, nil
	case config.ProviderLocal, "":
		return LocalSummarizer{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown summarizer provider %q", cfg.Provider)
	}
}
