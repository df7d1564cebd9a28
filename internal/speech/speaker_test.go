package speech

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/voice"
)

type fakeEngine struct {
	voices    []Voice
	voicesErr error
	listCalls atomic.Int32
	synthErr  error
	mu        sync.Mutex
	lastVoice string
	lastText  string
}

func (e *fakeEngine) Voices(context.Context) ([]Voice, error) {
	e.listCalls.Add(1)
	return e.voices, e.voicesErr
}

func (e *fakeEngine) Synthesize(_ context.Context, text string, voice string) (Audio, error) {
	e.mu.Lock()
	e.lastVoice = voice
	e.lastText = text
	e.mu.Unlock()
	if e.synthErr != nil {
		return Audio{}, e.synthErr
	}
	return Audio{Samples: []int16{1, 2, 3}, SampleRate: 22050}, nil
}

// blockingPlayer plays until released or cancelled.
type blockingPlayer struct {
	started chan struct{}
	release chan struct{}
	active  atomic.Int32
	overlap atomic.Bool
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (p *blockingPlayer) Play(ctx context.Context, _ Audio) error {
	if p.active.Add(1) > 1 {
		p.overlap.Store(true)
	}
	defer p.active.Add(-1)
	p.started <- struct{}{}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.release:
		return nil
	}
}

type playerFunc func(context.Context, Audio) error

func (f playerFunc) Play(ctx context.Context, a Audio) error { return f(ctx, a) }

func TestSpeakUsesPreferredVoice(t *testing.T) {
	engine := &fakeEngine{voices: []Voice{{Name: "Daniel"}, {Name: "Samantha Enhanced"}}}
	s := &Speaker{Engine: engine, Player: playerFunc(func(context.Context, Audio) error { return nil })}

	require.NoError(t, s.Speak(context.Background(), "  hello there "))
	require.NoError(t, s.Speak(context.Background(), "again"))

	require.Equal(t, "Samantha Enhanced", engine.lastVoice)
	require.Equal(t, "again", engine.lastText)
	require.Equal(t, int32(1), engine.listCalls.Load())
}

func TestSpeakRetriesVoiceListingAfterError(t *testing.T) {
	engine := &fakeEngine{voicesErr: errors.New("no voices")}
	s := &Speaker{Engine: engine, Player: playerFunc(func(context.Context, Audio) error { return nil })}

	require.NoError(t, s.Speak(context.Background(), "one"))
	require.Equal(t, "", engine.lastVoice)

	engine.voicesErr = nil
	engine.voices = []Voice{{Name: "Daniel"}}
	require.NoError(t, s.Speak(context.Background(), "two"))
	require.Equal(t, "Daniel", engine.lastVoice)
	require.Equal(t, int32(2), engine.listCalls.Load())
}

func TestSpeakEmptyTextIsNoop(t *testing.T) {
	engine := &fakeEngine{}
	s := &Speaker{Engine: engine, Player: playerFunc(func(context.Context, Audio) error {
		t.Fatal("player should not be called")
		return nil
	})}
	require.NoError(t, s.Speak(context.Background(), "   "))
	require.Equal(t, int32(0), engine.listCalls.Load())
}

func TestSpeakWrapsSynthesisFailure(t *testing.T) {
	engineErr := errors.New("engine crashed")
	s := &Speaker{
		Engine: &fakeEngine{synthErr: engineErr},
		Player: playerFunc(func(context.Context, Audio) error { return nil }),
	}
	err := s.Speak(context.Background(), "hello")
	require.ErrorIs(t, err, voice.ErrSynthesisFailed)
	require.ErrorIs(t, err, engineErr)
	require.Equal(t, "Unable to play the spoken reply.", err.Error())
}

func TestSpeakWrapsPlaybackFailure(t *testing.T) {
	sinkErr := errors.New("sink gone")
	s := &Speaker{
		Engine: &fakeEngine{},
		Player: playerFunc(func(context.Context, Audio) error { return sinkErr }),
	}
	err := s.Speak(context.Background(), "hello")
	require.ErrorIs(t, err, voice.ErrSynthesisFailed)
	require.ErrorIs(t, err, sinkErr)
}

func TestNewSpeakCancelsPrevious(t *testing.T) {
	player := newBlockingPlayer()
	s := &Speaker{Engine: &fakeEngine{}, Player: player}

	first := make(chan error, 1)
	go func() { first <- s.Speak(context.Background(), "first") }()
	<-player.started

	second := make(chan error, 1)
	go func() { second <- s.Speak(context.Background(), "second") }()

	select {
	case err := <-first:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("first utterance was not cancelled")
	}

	<-player.started
	close(player.release)
	require.NoError(t, <-second)
	require.False(t, player.overlap.Load())
}

func TestBlankSpeakStillCancelsPrevious(t *testing.T) {
	player := newBlockingPlayer()
	s := &Speaker{Engine: &fakeEngine{}, Player: player}

	first := make(chan error, 1)
	go func() { first <- s.Speak(context.Background(), "first") }()
	<-player.started

	require.NoError(t, s.Speak(context.Background(), "   "))
	select {
	case err := <-first:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("blank text did not stop the current utterance")
	}
}

func TestStopCancelsPlayback(t *testing.T) {
	player := newBlockingPlayer()
	s := &Speaker{Engine: &fakeEngine{}, Player: player}

	done := make(chan error, 1)
	go func() { done <- s.Speak(context.Background(), "long reply") }()
	<-player.started

	s.Stop()
	require.ErrorIs(t, <-done, context.Canceled)

	s.Stop()
}

func TestSelectVoice(t *testing.T) {
	voices := []Voice{
		{Name: "English (Great Britain)"},
		{Name: "Daniel"},
		{Name: "Google US English Female"},
	}

	tests := []struct {
		name  string
		prefs []string
		want  string
		ok    bool
	}{
		{name: "all words in any order", prefs: DefaultPreferences, want: "Google US English Female", ok: true},
		{name: "earlier preference wins", prefs: []string{"daniel", "google female"}, want: "Daniel", ok: true},
		{name: "no match", prefs: []string{"Samantha"}, ok: false},
		{name: "blank preference skipped", prefs: []string{"  ", "british"}, ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SelectVoice(voices, tc.prefs)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got.Name)
		})
	}
}

func TestSilentSpeak(t *testing.T) {
	require.NoError(t, Silent{}.Speak(context.Background(), "anything"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Silent{}.Speak(ctx, "anything"), context.Canceled)
}
