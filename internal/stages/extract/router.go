// Package extract turns uploaded documents and typed topics into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"notes-pipeline/internal/models"
	"notes-pipeline/internal/stages"
	"path/filepath"
	"strings"
)

// Router dispatches a payload to the extractor registered for its mime type.
type Router struct {
	byMime map[string]stages.Extractor
	logger *slog.Logger
}

var _ stages.Extractor = (*Router)(nil)

// NewRouter builds a router with the default extractors registered.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		byMime: make(map[string]stages.Extractor),
		logger: logger,
	}
	text := TextExtractor{}
	r.Register("text/plain", text)
	r.Register("text/markdown", text)
	r.Register("text/html", HTMLExtractor{})
	r.Register("application/pdf", NewPDFExtractor(""))
	r.Register(models.MimeTopic, TopicExtractor{})
	return r
}

// Register binds an extractor to a mime type, replacing any existing one.
func (r *Router) Register(mimeType string, e stages.Extractor) {
	r.byMime[normalizeMime(mimeType)] = e
}

// Extract runs the matching extractor. Every failure is an *stages.ExtractionError.
func (r *Router) Extract(ctx context.Context, payload *models.Payload) (string, error) {
	if payload == nil {
		return "", &stages.ExtractionError{Err: errors.New("payload missing")}
	}

	mimeType := normalizeMime(payload.MimeType)
	e, ok := r.byMime[mimeType]
	if !ok {
		// fall back to the file extension for generic uploads
		if byExt := normalizeMime(mime.TypeByExtension(filepath.Ext(payload.FileName))); byExt != "" {
			e, ok = r.byMime[byExt]
			mimeType = byExt
		}
	}
	if !ok {
		return "", &stages.ExtractionError{Err: fmt.Errorf("%w: %s", stages.ErrUnsupportedType, payload.MimeType)}
	}

	text, err := e.Extract(ctx, payload)
	if err != nil {
		var extErr *stages.ExtractionError
		if errors.As(err, &extErr) {
			return "", err
		}
		return "", &stages.ExtractionError{Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &stages.ExtractionError{Err: stages.ErrNoText}
	}

	r.logger.Debug("extract.done", "mime", mimeType, "file", payload.FileName, "chars", len(text))
	return text, nil
}

func normalizeMime(v string) string {
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mediaType
}
