package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/parley/internal/voice"
)

// Recognizer converts one utterance WAV into text.
type Recognizer interface {
	Recognize(ctx context.Context, wav []byte) (string, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(context.Context, []byte) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, wav []byte) (string, error) {
	return f(ctx, wav)
}

const (
	DefaultThreshold    = 0.02
	DefaultSilence      = 800 * time.Millisecond
	DefaultMaxUtterance = 15 * time.Second
	DefaultMaxWait      = 10 * time.Second
)

// ErrNoRecognizer is returned when a Segmenter has nothing to send audio to.
var ErrNoRecognizer = errors.New("no speech recognizer configured")

// Segmenter endpoints speech by frame energy and hands each segment to a Recognizer.
//
// Durations are measured in audio time (sample counts), not wall time.
type Segmenter struct {
	Recognizer Recognizer
	// Threshold is the frame Level at or above which a frame counts as speech.
	Threshold float64
	// Silence ends an utterance after this much sub-threshold audio.
	Silence time.Duration
	// MaxUtterance caps a single utterance.
	MaxUtterance time.Duration
	// MaxWait ends a span with voice.ErrNoUtterance when no speech starts in time.
	MaxWait time.Duration
	// DumpAudio writes each segment to the debug directory.
	DumpAudio bool
	Logger    *slog.Logger
}

// Detect consumes frames until one utterance is segmented and recognized.
func (s Segmenter) Detect(ctx context.Context, frames <-chan voice.Frame) (string, error) {
	if s.Recognizer == nil {
		return "", ErrNoRecognizer
	}
	threshold := orFloat(s.Threshold, DefaultThreshold)
	silenceLimit := orDuration(s.Silence, DefaultSilence)
	utteranceLimit := orDuration(s.MaxUtterance, DefaultMaxUtterance)
	waitLimit := orDuration(s.MaxWait, DefaultMaxWait)

	var (
		speech  []int16
		rate    = voice.SampleRate
		started bool
		waited  time.Duration
		spoken  time.Duration
		silent  time.Duration
	)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return "", voice.ErrCaptureClosed
			}
			if frame.SampleRate > 0 {
				rate = frame.SampleRate
			}
			d := frameDuration(frame, rate)
			loud := frame.Level >= threshold

			if !started {
				if !loud {
					waited += d
					if waited >= waitLimit {
						return "", voice.ErrNoUtterance
					}
					continue
				}
				started = true
			}

			speech = append(speech, frame.Samples...)
			spoken += d
			if loud {
				silent = 0
			} else {
				silent += d
			}
			if silent >= silenceLimit || spoken >= utteranceLimit {
				return s.recognize(ctx, speech, rate)
			}
		}
	}
}

func (s Segmenter) recognize(ctx context.Context, samples []int16, rate int) (string, error) {
	wav := EncodeWAV(samples, rate)
	if s.DumpAudio {
		path, err := dumpSegment(wav)
		switch {
		case err != nil && s.Logger != nil:
			s.Logger.Warn("unable to write debug audio dump", "error", err.Error())
		case err == nil && s.Logger != nil:
			s.Logger.Debug("utterance audio dumped", "path", path)
		}
	}

	text, err := s.Recognizer.Recognize(ctx, wav)
	if err != nil {
		return "", fmt.Errorf("recognize utterance: %w", err)
	}
	text = Normalize(text)
	if text == "" {
		return "", voice.ErrNoUtterance
	}
	return text, nil
}

func frameDuration(frame voice.Frame, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(len(frame.Samples)) * time.Second / time.Duration(rate)
}

func orFloat(v, fallback float64) float64 {
	if v > 0 {
		return v
	}
	return fallback
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
