package reply

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/rbright/parley/internal/gemini"
)

// GeminiBackend generates replies with the Gemini API.
type GeminiBackend struct {
	Clients *gemini.Clients
	Model   string
	System  string
}

func (b *GeminiBackend) Submit(ctx context.Context, prompt string, credential string) (string, error) {
	clients := b.Clients
	if clients == nil {
		clients = &gemini.Clients{}
	}
	client, err := clients.Client(ctx, credential)
	if err != nil {
		return "", err
	}

	model := b.Model
	if model == "" {
		model = gemini.DefaultModel
	}
	var cfg *genai.GenerateContentConfig
	if b.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(b.System)}},
		}
	}

	resp, err := client.Models.GenerateContent(ctx, model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := gemini.Text(resp)
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}
