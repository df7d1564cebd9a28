// Package speech turns reply text into audible speech: a synthesis engine, a
// playback sink, and a Speaker that keeps at most one utterance playing.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rbright/parley/internal/voice"
)

// DefaultPreferences is the ordered voice preference list.
var DefaultPreferences = []string{"Google Female", "Samantha", "Daniel"}

// Voice is one voice offered by an engine.
type Voice struct {
	Name     string
	Language string
	Gender   string
}

// Audio is mono signed 16-bit PCM.
type Audio struct {
	Samples    []int16
	SampleRate int
}

// Engine synthesizes text with a named voice. An empty voice means the engine default.
type Engine interface {
	Voices(context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, text string, voice string) (Audio, error)
}

// Player plays audio until it ends or ctx is cancelled.
type Player interface {
	Play(context.Context, Audio) error
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Speaker serializes speech: a new Speak cancels and waits out the previous one.
type Speaker struct {
	Engine      Engine
	Player      Player
	Preferences []string
	Logger      *slog.Logger

	mu      sync.Mutex
	current *playback

	voiceMu  sync.Mutex
	resolved bool
	voice    string
}

// Speak synthesizes and plays text, returning once playback ends.
// Cancellation returns the context error; other failures wrap voice.ErrSynthesisFailed.
// Blank text only stops the utterance in progress.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		s.Stop()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	cur := &playback{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.current
	s.current = cur
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		if s.current == cur {
			s.current = nil
		}
		s.mu.Unlock()
		close(cur.done)
	}()

	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	audio, err := s.Engine.Synthesize(ctx, text, s.selectedVoice(ctx))
	if err != nil {
		return s.failure(ctx, fmt.Errorf("synthesize: %w", err))
	}
	if err := s.Player.Play(ctx, audio); err != nil {
		return s.failure(ctx, fmt.Errorf("play: %w", err))
	}
	return ctx.Err()
}

// Stop cancels the utterance in progress, if any, and waits for it to end.
func (s *Speaker) Stop() {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return
	}
	cur.cancel()
	<-cur.done
}

func (s *Speaker) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return voice.NewFailure(voice.ErrSynthesisFailed, err)
}

// selectedVoice resolves the preferred voice once per Speaker. A failed
// listing is retried on the next utterance.
func (s *Speaker) selectedVoice(ctx context.Context) string {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()
	if s.resolved {
		return s.voice
	}

	voices, err := s.Engine.Voices(ctx)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("list voices failed; using engine default", "error", err.Error())
		}
		return ""
	}
	prefs := s.Preferences
	if len(prefs) == 0 {
		prefs = DefaultPreferences
	}
	if v, ok := SelectVoice(voices, prefs); ok {
		s.voice = v.Name
	}
	s.resolved = true
	if s.Logger != nil {
		s.Logger.Debug("speech voice selected", "voice", s.voice, "available", len(voices))
	}
	return s.voice
}

// SelectVoice returns the voice matching the earliest preference. A preference
// matches a voice whose name contains every word of it, case-insensitively.
func SelectVoice(voices []Voice, preferences []string) (Voice, bool) {
	for _, pref := range preferences {
		words := strings.Fields(strings.ToLower(pref))
		if len(words) == 0 {
			continue
		}
		for _, v := range voices {
			if nameHasAll(strings.ToLower(v.Name), words) {
				return v, true
			}
		}
	}
	return Voice{}, false
}

func nameHasAll(name string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(name, w) {
			return false
		}
	}
	return true
}

// Silent completes every Speak immediately; used when speech is disabled.
type Silent struct{}

func (Silent) Speak(ctx context.Context, _ string) error {
	return ctx.Err()
}

// ErrNoAudio indicates synthesis produced no samples.
var ErrNoAudio = errors.New("synthesis produced no audio")
