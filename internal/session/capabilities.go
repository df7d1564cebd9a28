package session

import (
	"context"

	"github.com/rbright/parley/internal/voice"
)

// AudioCapture acquires the microphone on behalf of the session.
type AudioCapture interface {
	Acquire(context.Context) (voice.Capture, error)
}

// TranscriptSource turns one listening span of frames into zero or one utterance.
//
// Detect returns the context error when cancelled, voice.ErrCaptureClosed when the
// frame stream ends, and voice.ErrNoUtterance when the span ends without speech.
type TranscriptSource interface {
	Detect(context.Context, <-chan voice.Frame) (string, error)
}

// ReplyGenerator produces a reply for an utterance. It always returns usable text.
type ReplyGenerator interface {
	Generate(context.Context, string) voice.Reply
}

// SpeechOutput speaks text and returns once playback has finished or was cancelled.
type SpeechOutput interface {
	Speak(context.Context, string) error
}

// AcquireFunc adapts a function to the AudioCapture interface.
type AcquireFunc func(context.Context) (voice.Capture, error)

func (f AcquireFunc) Acquire(ctx context.Context) (voice.Capture, error) {
	return f(ctx)
}

// DetectFunc adapts a function to the TranscriptSource interface.
type DetectFunc func(context.Context, <-chan voice.Frame) (string, error)

func (f DetectFunc) Detect(ctx context.Context, frames <-chan voice.Frame) (string, error) {
	return f(ctx, frames)
}

// ReplyFunc adapts a function to the ReplyGenerator interface.
type ReplyFunc func(context.Context, string) voice.Reply

func (f ReplyFunc) Generate(ctx context.Context, utterance string) voice.Reply {
	return f(ctx, utterance)
}

// SpeakFunc adapts a function to the SpeechOutput interface.
type SpeakFunc func(context.Context, string) error

func (f SpeakFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

// noCapture keeps the controller usable when no microphone is wired.
func noCapture(context.Context) (voice.Capture, error) {
	return nil, voice.ErrDeviceUnavailable
}

// waitForCancel never produces an utterance.
func waitForCancel(ctx context.Context, _ <-chan voice.Frame) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func cannedReply(context.Context, string) voice.Reply {
	return voice.Reply{Text: "I'm not sure how to respond to that.", Origin: voice.OriginFallback}
}

func silentSpeech(context.Context, string) error {
	return nil
}
