// Package llm wraps an OpenAI-compatible chat completion endpoint behind a
// single prompt-in, text-out call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mailagent/internal/config"
	"github.com/comigor/mailagent/internal/logger"
)

var (
	// ErrNotConfigured is returned by every call when no API key is set.
	ErrNotConfigured = errors.New("llm: no api key configured")
	ErrEmptyResponse = errors.New("llm: response has no choices")
)

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *openai.Client {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL

	return openai.NewClientWithConfig(config)
}

// Generator sends one prompt per call to a fixed model.
type Generator struct {
	client Client
	model  string
}

// NewGenerator wraps client. A nil client yields a generator that always
// fails with ErrNotConfigured, which callers treat like any LLM outage.
func NewGenerator(client Client, model string) *Generator {
	return &Generator{client: client, model: model}
}

// New builds a generator from configuration, leaving it unconfigured when
// the API key is empty.
func New(cfg config.LLMConfig) *Generator {
	if cfg.APIKey == "" {
		logger.L.Warn("no llm api key configured, assistant features will use fallbacks")
		return NewGenerator(nil, cfg.Model)
	}
	return NewGenerator(NewClient(cfg), cfg.Model)
}

// Generate returns the model's text answer to prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	logger.L.Debug("llm response received", "model", g.model, "tokens", resp.Usage.TotalTokens)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
