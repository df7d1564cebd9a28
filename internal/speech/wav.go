package speech

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DecodeWAV reads mono or stereo 16-bit PCM WAV; stereo is downmixed.
// A data chunk whose declared size overruns the input (streamed WAV) is read to the end.
func DecodeWAV(data []byte) (Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, errors.New("not a RIFF/WAVE stream")
	}

	var (
		channels   int
		sampleRate int
		bits       int
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Audio{}, errors.New("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(data[body:]); format != 1 {
				return Audio{}, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			if channels == 0 {
				return Audio{}, errors.New("wav data before fmt chunk")
			}
			if bits != 16 || channels > 2 {
				return Audio{}, fmt.Errorf("unsupported wav layout: %d-bit, %d channels", bits, channels)
			}
			end := body + size
			if size < 0 || end > len(data) {
				end = len(data)
			}
			samples := pcm16(data[body:end], channels)
			if len(samples) == 0 {
				return Audio{}, ErrNoAudio
			}
			return Audio{Samples: samples, SampleRate: sampleRate}, nil
		}
		offset = body + size + size%2
	}
	return Audio{}, errors.New("wav has no data chunk")
}

func pcm16(raw []byte, channels int) []int16 {
	frameBytes := 2 * channels
	samples := make([]int16, len(raw)/frameBytes)
	for i := range samples {
		frame := raw[i*frameBytes:]
		if channels == 1 {
			samples[i] = int16(binary.LittleEndian.Uint16(frame))
			continue
		}
		left := int32(int16(binary.LittleEndian.Uint16(frame)))
		right := int32(int16(binary.LittleEndian.Uint16(frame[2:])))
		samples[i] = int16((left + right) / 2)
	}
	return samples
}
