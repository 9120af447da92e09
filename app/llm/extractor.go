package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Extraction is the structured article data pulled out of one newsletter email.
type Extraction struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics"`
}

// Models answer with markdown fences or chatter often enough that the body
// cannot be decoded directly; truncate it too, extraction works fine on the
// first part of a long issue.
const maxExtractionBody = 16000

// ExtractArticle asks the model for structured article data. topicSlugs is
// the operator's focus topic set the model may tag from.
func (c *Client) ExtractArticle(ctx context.Context, subject, from, body string, topicSlugs []string) (*Extraction, error) {
	if len(body) > maxExtractionBody {
		body = body[:maxExtractionBody]
	}

	userPrompt := fmt.Sprintf("Focus topics: %s\n\nSubject: %s\nFrom: %s\n\n%s",
		strings.Join(topicSlugs, ", "), subject, from, body)

	content, err := c.Complete(ctx, extractionSystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	payload, err := firstJSONObject([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("no JSON in extraction response: %w", err)
	}

	var extraction Extraction
	if err := json.Unmarshal(payload, &extraction); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	if extraction.Title == "" {
		extraction.Title = subject
	}

	return &extraction, nil
}

// GenerateDraft asks the model for one derivative in the given format.
func (c *Client) GenerateDraft(ctx context.Context, format, title, summary, content string) (string, error) {
	instructions, ok := draftInstructions[format]
	if !ok {
		return "", fmt.Errorf("no draft instructions for format %q", format)
	}

	if len(content) > maxExtractionBody {
		content = content[:maxExtractionBody]
	}

	userPrompt := fmt.Sprintf("%s\n\nArticle: %s\n\nSummary: %s\n\n%s",
		instructions, title, summary, content)

	draft, err := c.Complete(ctx, draftSystemPrompt, userPrompt)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(draft), nil
}

// firstJSONObject locates the first balanced JSON object in model output,
// skipping markdown fences and surrounding prose.
func firstJSONObject(data []byte) ([]byte, error) {
	start := bytes.IndexByte(data, '{')
	if start == -1 {
		return nil, fmt.Errorf("no object found")
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(data); i++ {
		ch := data[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return data[start : i+1], nil
			}
		}
	}

	return nil, fmt.Errorf("unterminated object")
}
