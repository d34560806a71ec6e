// Package stages defines the collaborators the pipeline drives for each job:
// text extraction, summarization, and rendering.
package stages

import (
	"context"
	"errors"
	"notes-pipeline/internal/models"
)

// Extractor turns a job payload into plain text.
// A successful call never returns an empty string.
type Extractor interface {
	Extract(ctx context.Context, payload *models.Payload) (string, error)
}

// Summarizer condenses extracted text into study notes.
type Summarizer interface {
	Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error)
}

// Renderer turns a summary into a stored artifact and returns its reference.
type Renderer interface {
	Render(ctx context.Context, summary string, opts RenderOptions) (string, error)
}

// SummaryOptions control summarization.
type SummaryOptions struct {
	Length models.Length
}

// RenderOptions control rendering. JobID ties the artifact to its job.
type RenderOptions struct {
	Style models.Style
	JobID string
}

var (
	ErrNoText          = errors.New("no text found")
	ErrEmptyInput      = errors.New("no text to summarize")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ExtractionError reports a failed extraction. Its message is the cause's.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// SummarizationError reports a failed summarization.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string { return e.Err.Error() }
func (e *SummarizationError) Unwrap() error { return e.Err }

// RenderingError reports that every rendering strategy failed.
type RenderingError struct {
	Err error
}

func (e *RenderingError) Error() string { return e.Err.Error() }
func (e *RenderingError) Unwrap() error { return e.Err }

// Func adapters let plain functions satisfy the stage interfaces.
type (
	ExtractorFunc  func(ctx context.Context, payload *models.Payload) (string, error)
	SummarizerFunc func(ctx context.Context, text string, opts SummaryOptions) (string, error)
	RendererFunc   func(ctx context.Context, summary string, opts RenderOptions) (string, error)
)

func (f ExtractorFunc) Extract(ctx context.Context, payload *models.Payload) (string, error) {
	return f(ctx, payload)
}

func (f SummarizerFunc) Summarize(ctx context.Context, text string, opts SummaryOptions) (string, error) {
	return f(ctx, text, opts)
}

func (f RendererFunc) Render(ctx context.Context, summary string, opts RenderOptions) (string, error) {
	return f(ctx, summary, opts)
}

// ArtifactRef is the reference format handed back to clients.
func ArtifactRef(id string) string {
	return "/artifacts/" + id
}
