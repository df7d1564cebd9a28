// Package gemini shares Gemini API clients between recognition and reply generation.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/rbright/parley/internal/version"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Clients caches one genai client per API key.
type Clients struct {
	// BaseURL overrides the API endpoint. Empty uses the public Gemini API.
	BaseURL string

	mu    sync.Mutex
	cache map[string]*genai.Client
}

// Client returns the cached client for apiKey, creating it on first use.
func (c *Clients) Client(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.cache[apiKey]; ok {
		return client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: c.BaseURL,
			Headers: http.Header{"User-Agent": []string{version.UserAgent()}},
		},
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	if c.cache == nil {
		c.cache = make(map[string]*genai.Client)
	}
	c.cache[apiKey] = client
	return client, nil
}

// Text concatenates the text parts of the first candidate.
func Text(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
