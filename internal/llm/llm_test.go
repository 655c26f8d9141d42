package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/comigor/mailagent/internal/config"
)

type mockClient struct {
	CreateChatCompletionFunc func(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (m *mockClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return m.CreateChatCompletionFunc(ctx, req)
}

func TestGenerate(t *testing.T) {
	var got openai.ChatCompletionRequest
	g := NewGenerator(&mockClient{
		CreateChatCompletionFunc: func(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			got = req
			return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "  Important \n"}},
			}}, nil
		},
	}, "test-model")

	out, err := g.Generate(context.Background(), "Categorize this")
	require.NoError(t, err)
	require.Equal(t, "Important", out)
	require.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	require.Equal(t, openai.ChatMessageRoleUser, got.Messages[0].Role)
	require.Equal(t, "Categorize this", got.Messages[0].Content)
}

func TestGenerate_Errors(t *testing.T) {
	boom := errors.New("boom")
	g := NewGenerator(&mockClient{
		CreateChatCompletionFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, boom
		},
	}, "m")
	_, err := g.Generate(context.Background(), "x")
	require.ErrorIs(t, err, boom)

	g = NewGenerator(&mockClient{
		CreateChatCompletionFunc: func(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
			return openai.ChatCompletionResponse{}, nil
		},
	}, "m")
	_, err = g.Generate(context.Background(), "x")
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNew_WithoutKeyIsUnconfigured(t *testing.T) {
	g := New(config.LLMConfig{Model: "m"})
	_, err := g.Generate(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotConfigured)
}
