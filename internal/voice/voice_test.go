package voice

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeanAbsLevel(t *testing.T) {
	require.Zero(t, MeanAbsLevel(nil))
	require.Zero(t, MeanAbsLevel([]int16{0, 0, 0}))
	require.InDelta(t, 0.5, MeanAbsLevel([]int16{16384, -16384}), 1e-9)
	require.InDelta(t, 1.0, MeanAbsLevel([]int16{-32768}), 1e-9)
}

func TestNewFrameComputesLevel(t *testing.T) {
	frame := NewFrame([]int16{8192, -8192}, SampleRate)
	require.Equal(t, SampleRate, frame.SampleRate)
	require.InDelta(t, 0.25, frame.Level, 1e-9)
}

func TestFailureMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused by server")
	f := NewFailure(ErrPermissionDenied, cause)

	require.Equal(t, "Microphone access denied. Please grant permission.", f.Error())
	require.ErrorIs(t, f, ErrPermissionDenied)
	require.ErrorIs(t, f, cause)
	require.NotErrorIs(t, f, ErrDeviceUnavailable)
}

func TestClassify(t *testing.T) {
	wrapped := fmt.Errorf("open source: %w", ErrPermissionDenied)
	require.ErrorIs(t, Classify(wrapped), ErrPermissionDenied)

	unknown := Classify(errors.New("boom"))
	require.ErrorIs(t, unknown, ErrDeviceUnavailable)

	existing := NewFailure(ErrSynthesisFailed, nil)
	require.Same(t, existing, Classify(fmt.Errorf("speak: %w", existing)))
}
