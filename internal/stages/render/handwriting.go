package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"notes-pipeline/internal/repository"
	"notes-pipeline/internal/stages"
	"strings"
	"time"
)

// maxImageBytes caps how much a handwriting service may send back.
const maxImageBytes = 16 << 20

// HandwritingClient renders through a remote handwriting service that
// answers POST {"text","style"} with an image.
type HandwritingClient struct {
	endpoint   string
	httpClient *http.Client
	artifacts  repository.ArtifactRepository
}

var _ stages.Renderer = (*HandwritingClient)(nil)

// NewHandwritingClient creates a client for the service at endpoint.
func NewHandwritingClient(endpoint string, timeout time.Duration, artifacts repository.ArtifactRepository) *HandwritingClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HandwritingClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		artifacts:  artifacts,
	}
}

func (c *HandwritingClient) Render(ctx context.Context, summary string, opts stages.RenderOptions) (string, error) {
	body, err := json.Marshal(map[string]string{
		"text":  summary,
		"style": string(opts.Style),
	})
	if err != nil {
		return "", fmt.Errorf("marshal handwriting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/png, image/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("handwriting service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("handwriting service error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	contentType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("handwriting service returned %q, want an image", resp.Header.Get("Content-Type"))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read handwriting image: %w", err)
	}
	if len(data) == 0 {
		return "", errors.New("handwriting service returned an empty image")
	}
	if len(data) > maxImageBytes {
		return "", errors.New("handwriting image too large")
	}

	return saveArtifact(ctx, c.artifacts, opts.JobID, contentType, "handwriting", data)
}
