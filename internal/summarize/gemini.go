// Package summarize produces note summaries with the Gemini API.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash-lite"

var ErrEmptySummary = errors.New("model returned an empty summary")

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	models  contentGenerator
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return newGeminiClient(client.Models, model, timeout), nil
}

func newGeminiClient(models contentGenerator, model string, timeout time.Duration) *GeminiClient {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{models: models, model: model, timeout: timeout}
}

func (c *GeminiClient) Summarize(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptySummary
	}
	return text, nil
}
