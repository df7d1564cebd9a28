package reply

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/credential"
	"github.com/rbright/parley/internal/voice"
)

type keyFunc func(context.Context) (string, error)

func (f keyFunc) Resolve(ctx context.Context) (string, error) { return f(ctx) }

func staticKeys(key string) KeySource {
	return keyFunc(func(context.Context) (string, error) { return key, nil })
}

func TestGenerateWithoutBackendUsesFallbackSilently(t *testing.T) {
	g := &Generator{}
	got := g.Generate(context.Background(), "Can you explain quantum computing?")
	require.Equal(t, voice.OriginFallback, got.Origin)
	require.NoError(t, got.Err)
	require.Contains(t, got.Text, "qubits")
}

func TestGenerateWithoutCredentialSkipsBackend(t *testing.T) {
	var calls atomic.Int32
	backend := BackendFunc(func(context.Context, string, string) (string, error) {
		calls.Add(1)
		return "never", nil
	})

	for _, keys := range []KeySource{
		nil,
		staticKeys("  "),
		keyFunc(func(context.Context) (string, error) { return "", credential.ErrNotFound }),
	} {
		got := (&Generator{Backend: backend, Keys: keys}).Generate(context.Background(), "hello")
		require.Equal(t, DefaultFallback, got.Text)
		require.NoError(t, got.Err)
	}
	require.Zero(t, calls.Load())
}

func TestGeneratePrimarySuccess(t *testing.T) {
	var gotPrompt, gotKey string
	backend := BackendFunc(func(_ context.Context, prompt, key string) (string, error) {
		gotPrompt, gotKey = prompt, key
		return "  It is noon.  ", nil
	})

	got := (&Generator{Backend: backend, Keys: staticKeys("secret")}).Generate(context.Background(), "What time is it?")
	require.Equal(t, voice.Reply{Text: "It is noon.", Origin: voice.OriginGenerated}, got)
	require.Equal(t, "What time is it?", gotPrompt)
	require.Equal(t, "secret", gotKey)
}

func TestGeneratePrimaryFailuresFallBack(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		keys    KeySource
		want    string
	}{
		{
			name:    "backend error",
			backend: BackendFunc(func(context.Context, string, string) (string, error) { return "", errors.New("503") }),
			keys:    staticKeys("k"),
			want:    "503",
		},
		{
			name:    "empty reply",
			backend: BackendFunc(func(context.Context, string, string) (string, error) { return " ", nil }),
			keys:    staticKeys("k"),
			want:    "empty reply",
		},
		{
			name:    "credential lookup error",
			backend: BackendFunc(func(context.Context, string, string) (string, error) { return "x", nil }),
			keys:    keyFunc(func(context.Context) (string, error) { return "", errors.New("store locked") }),
			want:    "store locked",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := (&Generator{Backend: tc.backend, Keys: tc.keys}).Generate(context.Background(), "What's the weather like today?")
			require.Equal(t, voice.OriginFallback, got.Origin)
			require.Contains(t, got.Text, "weather")
			require.ErrorIs(t, got.Err, voice.ErrGenerationFailed)
			var failure *voice.Failure
			require.ErrorAs(t, got.Err, &failure)
			require.ErrorContains(t, failure.Cause, tc.want)
		})
	}
}

func TestGenerateTimesOut(t *testing.T) {
	backend := BackendFunc(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	started := time.Now()
	got := (&Generator{Backend: backend, Keys: staticKeys("k"), Timeout: 30 * time.Millisecond}).Generate(context.Background(), "slow")
	require.Less(t, time.Since(started), time.Second)
	require.Equal(t, DefaultFallback, got.Text)
	require.ErrorIs(t, got.Err, voice.ErrGenerationFailed)
	require.ErrorIs(t, got.Err, context.DeadlineExceeded)
	require.Equal(t, "Error getting AI response; answered with a fallback reply.", got.Err.Error())
}
