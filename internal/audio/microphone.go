package audio

import (
	"context"
	"log/slog"

	"github.com/rbright/parley/internal/voice"
)

// Microphone acquires captures from the configured input preference.
type Microphone struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

// Acquire selects a device and starts a capture on it.
func (m Microphone) Acquire(ctx context.Context) (voice.Capture, error) {
	selection, err := SelectDevice(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && m.Logger != nil {
		m.Logger.Warn("audio device fallback", "warning", selection.Warning)
	}

	capture, err := StartCapture(ctx, selection.Device)
	if err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Info("microphone acquired",
			"device", selection.Device.ID,
			"description", selection.Device.Description,
			"fallback", selection.Fallback,
		)
	}
	return capture, nil
}
