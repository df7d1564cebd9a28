package reply

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rbright/parley/internal/version"
)

// DefaultOpenAIModel is used when generation.model is empty for the openai backend.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIBackend generates replies with any OpenAI-compatible chat completion API.
type OpenAIBackend struct {
	// BaseURL overrides the API endpoint, e.g. a local llama.cpp or vLLM server.
	BaseURL string
	Model   string
	System  string
}

func (b *OpenAIBackend) Submit(ctx context.Context, prompt string, credential string) (string, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(credential),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", version.UserAgent()),
	}
	if b.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(b.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := b.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	var messages []openai.ChatCompletionMessageParamUnion
	if b.System != "" {
		messages = append(messages, openai.SystemMessage(b.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
