package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"notes-pipeline/internal/config"
	"notes-pipeline/internal/stages"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// OpenAIClient summarizes through an OpenAI-compatible chat/completions API.
type OpenAIClient struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	httpClient  *http.Client
	schema      *jsonschema.Schema
	log         *slog.Logger
}

var _ stages.Summarizer = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.SummarizerConfig, logger *slog.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" || cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.New("openai client misconfigured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileNotesSchema()
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
		schema:      schema,
		log:         logger,
	}, nil
}

func (c *OpenAIClient) Summarize(ctx context.Context, text string, opts stages.SummaryOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &stages.SummarizationError{Err: stages.ErrEmptyInput}
	}

	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("summarize.openai.start", "req_id", rid, "model", c.model, "text_len", len(text), "length", opts.Length)

	body := map[string]any{
		"model":           c.model,
		"temperature":     c.temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt(text, opts.Length)},
		},
	}

	raw, err := c.post(ctx, c.baseURL+"/chat/completions", body)
	if err != nil {
		c.log.Error("summarize.openai.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", &stages.SummarizationError{Err: err}
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &stages.SummarizationError{Err: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		return "", &stages.SummarizationError{Err: errors.New("openai returned no choices")}
	}

	notes, err := decodeNotes(c.schema, cc.Choices[0].Message.Content)
	if err != nil {
		c.log.Warn("summarize.openai.invalid_output", "req_id", rid, "error", err)
		return "", &stages.SummarizationError{Err: err}
	}

	c.log.Info("summarize.openai.done", "req_id", rid, "chars", len(notes), "elapsed_ms", time.Since(start).Milliseconds())
	return notes, nil
}

func (c *OpenAIClient) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send summary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	return io.ReadAll(resp.Body)
}
