// Package summarize condenses extracted text into study notes, either with a
// hosted model or with a local extractive fallback.
package summarize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"notes-pipeline/internal/models"
	"strings"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxInputChars bounds how much source text is sent to a hosted model.
const maxInputChars = 48000

const systemPrompt = `You turn study material into concise, accurate study notes for students.
Write in plain language. Keep facts from the source; do not invent details.
Return ONLY a JSON object with a "summary" string and an optional "key_points" array of short strings.`

// WordBudget returns the target summary length in words.
func WordBudget(l models.Length) int {
	switch l {
	case models.LengthShort:
		return 150
	case models.LengthLong:
		return 600
	default:
		return 300
	}
}

func userPrompt(text string, length models.Length) string {
	return fmt.Sprintf("Summarize the following material in about %d words.\n\nMaterial:\n%s", WordBudget(length), truncate(text, maxInputChars))
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// notesSchema describes the JSON object expected back from a model.
var notesSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"summary": map[string]any{"type": "string", "minLength": 1},
		"key_points": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"summary"},
}

type notesResponse struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

func compileNotesSchema() (*jsonschema.Schema, error) {
	b, err := json.Marshal(notesSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("notes.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("notes.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// decodeNotes validates a model's JSON reply and flattens it into notes text.
func decodeNotes(schema *jsonschema.Schema, content string) (string, error) {
	content = stripFences(content)

	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return "", fmt.Errorf("decode model output: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return "", fmt.Errorf("model output does not match schema: %w", err)
	}

	var resp notesResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return "", fmt.Errorf("decode model output: %w", err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(resp.Summary))
	for _, p := range resp.KeyPoints {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	return b.String(), nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
