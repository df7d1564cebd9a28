// Package voice holds the data types and error taxonomy shared by the capture,
// transcript, reply, and speech components and the session that drives them.
package voice

import (
	"errors"
	"math"
)

// SampleRate is the capture rate used for microphone frames.
const SampleRate = 16000

var (
	// ErrPermissionDenied indicates the audio server refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable indicates no usable input device could be opened.
	ErrDeviceUnavailable = errors.New("microphone unavailable")
	// ErrGenerationFailed indicates the primary reply path failed and a fallback was used.
	ErrGenerationFailed = errors.New("reply generation failed")
	// ErrSynthesisFailed indicates a reply could not be spoken.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	// ErrCaptureClosed indicates the frame stream ended underneath a listener.
	ErrCaptureClosed = errors.New("audio capture closed")
	// ErrNoUtterance indicates a listening span ended without a usable utterance.
	ErrNoUtterance = errors.New("no utterance detected")
)

// Frame is one block of mono signed 16-bit PCM.
type Frame struct {
	Samples    []int16
	SampleRate int
	// Level is the mean absolute amplitude normalised to [0,1].
	Level float64
}

// NewFrame builds a Frame and computes its level.
func NewFrame(samples []int16, sampleRate int) Frame {
	return Frame{Samples: samples, SampleRate: sampleRate, Level: MeanAbsLevel(samples)}
}

// MeanAbsLevel returns the mean absolute amplitude of samples in [0,1].
func MeanAbsLevel(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples)) / 32768
}

// Capture is an acquired microphone stream.
type Capture interface {
	// Frames yields audio until the capture is released or the device goes away.
	Frames() <-chan Frame
	// Active reports whether the capture is still producing frames.
	Active() bool
	// Release stops the stream. It is idempotent.
	Release() error
}

// Origin tags where a reply came from.
type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginFallback  Origin = "fallback"
)

// Reply is the outcome of one reply generation.
type Reply struct {
	Text   string
	Origin Origin
	// Err carries a non-fatal primary-path failure when Origin is fallback.
	Err error
}
