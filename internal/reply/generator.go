// Package reply produces assistant replies: a configured primary backend with a
// canned fallback that always answers.
package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/parley/internal/credential"
	"github.com/rbright/parley/internal/voice"
)

// DefaultTimeout bounds one primary generation attempt.
const DefaultTimeout = 20 * time.Second

// DefaultSystemPrompt keeps replies short enough to speak.
const DefaultSystemPrompt = "You are a helpful voice assistant. Answer in one to three short spoken sentences without markdown."

// Backend submits one prompt to a generation service.
type Backend interface {
	Submit(ctx context.Context, prompt string, credential string) (string, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(context.Context, string, string) (string, error)

func (f BackendFunc) Submit(ctx context.Context, prompt string, credential string) (string, error) {
	return f(ctx, prompt, credential)
}

// KeySource resolves the credential at call time.
type KeySource interface {
	Resolve(context.Context) (string, error)
}

// Generator implements the session's reply capability.
type Generator struct {
	Backend Backend
	Keys    KeySource
	Timeout time.Duration
	Logger  *slog.Logger
}

// Generate makes one primary attempt when a backend and credential are available.
// Any primary failure yields the fallback reply with Err describing the failure.
func (g *Generator) Generate(ctx context.Context, utterance string) voice.Reply {
	if g.Backend == nil {
		return voice.Reply{Text: Fallback(utterance), Origin: voice.OriginFallback}
	}

	key, err := g.resolve(ctx)
	if errors.Is(err, credential.ErrNotFound) {
		g.debug("no generation credential; using fallback reply")
		return voice.Reply{Text: Fallback(utterance), Origin: voice.OriginFallback}
	}
	if err != nil {
		return g.fallback(utterance, fmt.Errorf("resolve credential: %w", err))
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	text, err := g.Backend.Submit(attemptCtx, utterance, key)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return g.fallback(utterance, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return g.fallback(utterance, errors.New("empty reply"))
	}

	if g.Logger != nil {
		g.Logger.Debug("reply generated", "latency_ms", time.Since(started).Milliseconds(), "chars", len(text))
	}
	return voice.Reply{Text: text, Origin: voice.OriginGenerated}
}

func (g *Generator) resolve(ctx context.Context) (string, error) {
	if g.Keys == nil {
		return "", credential.ErrNotFound
	}
	key, err := g.Keys.Resolve(ctx)
	if err == nil && strings.TrimSpace(key) == "" {
		return "", credential.ErrNotFound
	}
	return strings.TrimSpace(key), err
}

func (g *Generator) fallback(utterance string, cause error) voice.Reply {
	if g.Logger != nil {
		g.Logger.Warn("Error getting AI response", "error", cause.Error())
	}
	return voice.Reply{
		Text:   Fallback(utterance),
		Origin: voice.OriginFallback,
		Err:    voice.NewFailure(voice.ErrGenerationFailed, cause),
	}
}

func (g *Generator) debug(msg string) {
	if g.Logger != nil {
		g.Logger.Debug(msg)
	}
}
