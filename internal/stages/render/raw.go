package render

import (
	"context"
	"errors"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/stages"
	"strings"
)

// RawTextRenderer stores the summary itself as a plain-text artifact.
type RawTextRenderer struct {
	artifacts repository.ArtifactRepository
}

var _ stages.Renderer = (*RawTextRenderer)(nil)

// NewRawTextRenderer creates the last-resort renderer.
func NewRawTextRenderer(artifacts repository.ArtifactRepository) *RawTextRenderer {
	return &RawTextRenderer{artifacts: artifacts}
}

func (r *RawTextRenderer) Render(ctx context.Context, summary string, opts stages.RenderOptions) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", errors.New("empty summary")
	}
	return saveArtifact(ctx, r.artifacts, opts.JobID, "text/plain; charset=utf-8", "raw", []byte(summary))
}
