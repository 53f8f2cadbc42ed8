package providers

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyCompletion = errors.New("llm gateway returned no content")

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient talks to an OpenAI-compatible chat completions gateway.
type LLMClient struct {
	baseClient
	model string
}

func NewLLMClient(baseURL, apiKey, model string) *LLMClient {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	return &LLMClient{
		baseClient: newBaseClient("llm", strings.TrimRight(baseURL, "/"), headers),
		model:      model,
	}
}

func (c *LLMClient) Model() string {
	return c.model
}

func (c *LLMClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	req := struct {
		Model       string        `json:"model"`
		Messages    []ChatMessage `json:"messages"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
	}{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   600,
		Temperature: 0.4,
	}

	var resp struct {
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
