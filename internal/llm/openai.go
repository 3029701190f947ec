package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient completes prompts through the OpenAI chat API (or any compatible endpoint).
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	retries int
}

// NewOpenAIClient creates a client for the OpenAI API. baseURL may be empty for the public endpoint.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, retries int) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
		retries: clampRetries(retries),
	}
}

// Complete sends a single prompt and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	operation := func() (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(attemptCtx, req)
		if err != nil {
			return "", fmt.Errorf("create openai chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", backoff.Permanent(fmt.Errorf("openai chat completion returned no choices"))
		}
		return resp.Choices[0].Message.Content, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(defaultRetryBackoff)),
		backoff.WithMaxTries(uint(c.retries+1)),
	)
}
