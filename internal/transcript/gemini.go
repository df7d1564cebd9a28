package transcript

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/rbright/parley/internal/gemini"
)

const transcribeInstruction = "Transcribe the spoken words in this audio verbatim. " +
	"Reply with the transcript only. Reply with nothing if no words are spoken."

// KeySource resolves the API credential at call time.
type KeySource interface {
	Resolve(context.Context) (string, error)
}

// GeminiRecognizer transcribes utterance audio with a Gemini model.
type GeminiRecognizer struct {
	Clients *gemini.Clients
	Keys    KeySource
	Model   string
}

// Recognize sends wav inline with a verbatim-transcription instruction.
func (g *GeminiRecognizer) Recognize(ctx context.Context, wav []byte) (string, error) {
	if g.Keys == nil {
		return "", errors.New("gemini recognizer has no credential source")
	}
	key, err := g.Keys.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve credential: %w", err)
	}
	clients := g.Clients
	if clients == nil {
		clients = &gemini.Clients{}
	}
	client, err := clients.Client(ctx, key)
	if err != nil {
		return "", err
	}

	model := g.Model
	if model == "" {
		model = gemini.DefaultModel
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			genai.NewPartFromText(transcribeInstruction),
			genai.NewPartFromBytes(wav, "audio/wav"),
		},
	}}
	resp, err := client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w", err)
	}
	return gemini.Text(resp), nil
}
