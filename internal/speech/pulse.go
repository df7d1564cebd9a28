package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfreymuth/pulse"
)

// PulsePlayer plays audio on the default PulseAudio sink.
type PulsePlayer struct {
	// MediaName labels the stream in the mixer.
	MediaName string
}

// Play blocks until the audio has drained or ctx is cancelled. Cancellation
// ends the stream at the next buffer boundary and returns the context error.
func (p PulsePlayer) Play(ctx context.Context, audio Audio) error {
	if len(audio.Samples) == 0 {
		return ErrNoAudio
	}
	if audio.SampleRate <= 0 {
		return errors.New("audio sample rate is not set")
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("parley"),
		pulse.ClientApplicationIconName("audio-speakers"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	name := p.MediaName
	if name == "" {
		name = "parley reply"
	}

	cursor := 0
	samples := audio.Samples
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(audio.SampleRate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName(name),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := stream.Error(); err != nil {
		return fmt.Errorf("playback stream: %w", err)
	}
	return nil
}
