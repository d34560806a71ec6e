package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"notes-pipeline/internal/stages"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const vertexModel = "gemini-1.5-pro"

// VertexSummarizer summarizes with a Gemini model on Vertex AI.
type VertexSummarizer struct {
	client *genai.Client
	model  *genai.GenerativeModel
	schema *jsonschema.Schema
	log    *slog.Logger
}

var _ stages.Summarizer = (*VertexSummarizer)(nil)

// NewVertexSummarizer connects to Vertex AI in the given project and region.
func NewVertexSummarizer(ctx context.Context, projectID, region string, logger *slog.Logger) (*VertexSummarizer, error) {
	if projectID == "" || region == "" {
		return nil, errors.New("vertex summarizer: projectID and region cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	schema, err := compileNotesSchema()
	if err != nil {
		client.Close()
		return nil, err
	}

	model := client.GenerativeModel(vertexModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}

	return &VertexSummarizer{client: client, model: model, schema: schema, log: logger}, nil
}

func (v *VertexSummarizer) Summarize(ctx context.Context, text string, opts stages.SummaryOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", &stages.SummarizationError{Err: stages.ErrEmptyInput}
	}

	start := time.Now()
	resp, err := v.model.GenerateContent(ctx, genai.Text(userPrompt(text, opts.Length)))
	if err != nil {
		v.log.Error("summarize.vertex.error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", &stages.SummarizationError{Err: fmt.Errorf("vertex generate: %w", err)}
	}

	content := responseText(resp)
	if content == "" {
		return "", &stages.SummarizationError{Err: errors.New("vertex returned no text")}
	}

	notes, err := decodeNotes(v.schema, content)
	if err != nil {
		return "", &stages.SummarizationError{Err: err}
	}

	v.log.Info("summarize.vertex.done", "chars", len(notes), "elapsed_ms", time.Since(start).Milliseconds())
	return notes, nil
}

// Close releases the underlying client.
func (v *VertexSummarizer) Close() error {
	return v.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
