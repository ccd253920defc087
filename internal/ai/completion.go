package ai

import (
	"context"
	"fmt"

	"github.com/webpilot/backend/internal/fetch"
)

// Message is a chat message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts messages to the chat-completion endpoint and returns
// the first choice's content.
func Complete(ctx context.Context, client *fetch.Client, cfg Config, messages []Message) (string, error) {
	var result completionResponse
	resp, err := client.Resty.R().
		SetContext(ctx).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(completionRequest{
			Model:     cfg.Model,
			Messages:  messages,
			MaxTokens: cfg.MaxTokens,
		}).
		SetResult(&result).
		Post(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("completion endpoint returned HTTP %d", resp.StatusCode())
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return result.Choices[0].Message.Content, nil
}
