// Package assist calls the Google Gemini text-completion API for the two
// language tasks around meal planning: parsing a free-text description of
// the week into a structured schedule, and ranking catalog recipes against
// a meal description. Both replies are untrusted and validated before use.
package assist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-1.5-flash"

// Client wraps one Gemini generative model. A nil *Client means assist is
// not configured; callers skip language features instead of erroring.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func New(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{
		client: c,
		model:  c.GenerativeModel(defaultModel),
		logger: logger.With("component", "assist"),
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// generateText runs one prompt and returns the first text part of the first
// candidate.
func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("completion is not text")
	}
	return string(text), nil
}

// stripFences removes a wrapping markdown code fence. Gemini fences JSON
// replies even when the prompt says not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
