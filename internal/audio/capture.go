package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/parley/internal/voice"
)

const (
	chunkSizeBytes = 640 // 20ms @ 16kHz mono s16
	frameBuffer    = 64
)

// held guards the single microphone capture allowed per process.
var held atomic.Bool

// Capture streams 20ms frames from one selected Pulse source.
// It implements voice.Capture.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	frames chan voice.Frame
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
	dropped  atomic.Int64
}

// StartCapture creates and starts a 16kHz mono s16 record stream.
//
// Only one capture may be outstanding at a time; a second call before Release
// fails with voice.ErrDeviceUnavailable.
func StartCapture(_ context.Context, selected Device) (*Capture, error) {
	if !held.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("microphone already in use: %w", voice.ErrDeviceUnavailable)
	}

	client, err := connect()
	if err != nil {
		held.Store(false)
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		held.Store(false)
		return nil, fmt.Errorf("resolve source %q: %w: %w", selected.ID, voice.ErrDeviceUnavailable, err)
	}

	capture := newCapture(selected)
	capture.client = client

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(voice.SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("parley conversation"),
	)
	if err != nil {
		_ = capture.Release()
		return nil, fmt.Errorf("create pulse record stream: %w", classifyConnectError(err))
	}

	capture.stream = stream
	stream.Start()
	return capture, nil
}

func newCapture(device Device) *Capture {
	return &Capture{
		device: device,
		frames: make(chan voice.Frame, frameBuffer),
		stopCh: make(chan struct{}),
	}
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Frames returns the PCM stream as level-annotated frames.
func (c *Capture) Frames() <-chan voice.Frame {
	return c.frames
}

// Active reports whether the stream is still running.
func (c *Capture) Active() bool {
	select {
	case <-c.stopCh:
		return false
	default:
	}
	if c.stream != nil && c.stream.Error() != nil {
		return false
	}
	return true
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// FramesDropped reports frames discarded because the consumer lagged.
func (c *Capture) FramesDropped() int64 {
	return c.dropped.Load()
}

// Release halts the stream and closes Frames exactly once.
func (c *Capture) Release() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()

	close(c.frames)
	held.Store(false)
	return nil
}

// onPCM receives raw Pulse bytes and emits one frame per full chunk.
// Frames are dropped rather than blocking the Pulse reader when the consumer lags.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)
	frames := make([]voice.Frame, 0, len(c.pending)/chunkSizeBytes)
	for len(c.pending) >= chunkSizeBytes {
		frames = append(frames, voice.NewFrame(decodeInt16LE(c.pending[:chunkSizeBytes]), voice.SampleRate))
		c.pending = c.pending[chunkSizeBytes:]
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.frames <- frame:
		default:
			c.dropped.Add(1)
		}
	}

	return len(buffer), nil
}

func decodeInt16LE(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
