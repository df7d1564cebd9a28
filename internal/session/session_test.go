package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/voice"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	frames   chan voice.Frame
	active   atomic.Bool
	releases atomic.Int32
	once     sync.Once
}

func newFakeCapture() *fakeCapture {
	c := &fakeCapture{frames: make(chan voice.Frame)}
	c.active.Store(true)
	return c
}

func (c *fakeCapture) Frames() <-chan voice.Frame { return c.frames }
func (c *fakeCapture) Active() bool               { return c.active.Load() }

func (c *fakeCapture) Release() error {
	c.releases.Add(1)
	c.active.Store(false)
	c.once.Do(func() { close(c.frames) })
	return nil
}

type fakeMic struct {
	capture  *fakeCapture
	err      error
	acquires atomic.Int32
}

func (m *fakeMic) Acquire(context.Context) (voice.Capture, error) {
	m.acquires.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.capture, nil
}

// scriptedSource hands out queued utterances, one per detection span.
type scriptedSource struct {
	utterances chan string
	spans      atomic.Int32
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{utterances: make(chan string, 8)}
}

func (s *scriptedSource) Detect(ctx context.Context, frames <-chan voice.Frame) (string, error) {
	s.spans.Add(1)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text := <-s.utterances:
		return text, nil
	}
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(entry string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, entry)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnStatus:     func(s Status) { r.add("status:" + string(s.State)) },
		OnTranscript: func(text string) { r.add("transcript:" + text) },
		OnReply:      func(text string) { r.add("reply:" + text) },
		OnError:      func(err error) { r.add("error:" + kindOf(err)) },
	}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, voice.ErrPermissionDenied):
		return "permission"
	case errors.Is(err, voice.ErrDeviceUnavailable):
		return "device"
	case errors.Is(err, voice.ErrGenerationFailed):
		return "generation"
	case errors.Is(err, voice.ErrSynthesisFailed):
		return "synthesis"
	default:
		return "other"
	}
}

func runController(t *testing.T, ctrl *Controller) *recorder {
	t.Helper()
	rec := &recorder{}
	ctrl.Subscribe(rec.handlers())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return rec
}

func waitForEvents(t *testing.T, rec *recorder, want ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Join(rec.snapshot(), ",") == strings.Join(want, ",")
	}, 2*time.Second, 5*time.Millisecond, "events: %v", rec.snapshot())
}

func waitForState(t *testing.T, ctrl *Controller, desired fsm.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == desired {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current=%s)", desired, ctrl.State())
}

func TestStartThenStopReleasesOnceWithoutContent(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	source := newScriptedSource()
	ctrl := NewController(nil, mic, source, nil, nil)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	waitForEvents(t, rec, "status:listening")

	ctrl.Stop()
	waitForEvents(t, rec, "status:listening", "status:idle")

	require.Equal(t, fsm.StateIdle, ctrl.State())
	require.EqualValues(t, 1, mic.capture.releases.Load())
	require.False(t, mic.capture.Active())
}

func TestStopIsIdempotent(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := runController(t, ctrl)

	ctrl.Stop()
	require.NoError(t, ctrl.Start(context.Background()))
	ctrl.Stop()
	ctrl.Stop()

	waitForEvents(t, rec, "status:listening", "status:idle")
	require.Never(t, func() bool { return len(rec.snapshot()) > 2 }, 100*time.Millisecond, 10*time.Millisecond)
	require.EqualValues(t, 1, mic.capture.releases.Load())
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	require.NoError(t, ctrl.Start(context.Background()))

	waitForEvents(t, rec, "status:listening")
	require.EqualValues(t, 1, mic.acquires.Load())
}

func TestConversationTurnWithFallbackReplyResumesListening(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	source := newScriptedSource()

	var overlapped atomic.Bool
	var spoken atomic.Value
	var ctrl *Controller
	replies := ReplyFunc(func(_ context.Context, utterance string) voice.Reply {
		return voice.Reply{
			Text:   "fallback for " + utterance,
			Origin: voice.OriginFallback,
			Err:    errors.New("upstream timeout"),
		}
	})
	speech := SpeakFunc(func(_ context.Context, text string) error {
		ctrl.mu.Lock()
		if ctrl.state != fsm.StateSpeaking {
			overlapped.Store(true)
		}
		ctrl.mu.Unlock()
		spoken.Store(text)
		return nil
	})
	ctrl = NewController(nil, mic, source, replies, speech)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	source.utterances <- "  what time is it  "

	waitForEvents(t, rec,
		"status:listening",
		"status:awaiting_reply",
		"transcript:what time is it",
		"error:generation",
		"status:speaking",
		"reply:fallback for what time is it",
		"status:listening",
	)
	require.Equal(t, "fallback for what time is it", spoken.Load())
	require.False(t, overlapped.Load())
	require.Eventually(t, func() bool { return source.spans.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Zero(t, mic.capture.releases.Load())
}

func TestEmptyUtteranceRearmsDetection(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	source := newScriptedSource()
	ctrl := NewController(nil, mic, source, nil, nil)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	source.utterances <- "   "

	require.Eventually(t, func() bool { return source.spans.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, fsm.StateListening, ctrl.State())
	waitForEvents(t, rec, "status:listening")
}

func TestStaleReplyIsDropped(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	source := newScriptedSource()

	started := make(chan struct{})
	release := make(chan struct{})
	var speaks atomic.Int32
	replies := ReplyFunc(func(context.Context, string) voice.Reply {
		close(started)
		<-release
		return voice.Reply{Text: "late", Origin: voice.OriginGenerated}
	})
	speech := SpeakFunc(func(context.Context, string) error {
		speaks.Add(1)
		return nil
	})
	ctrl := NewController(nil, mic, source, replies, speech)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	source.utterances <- "hello"
	<-started

	ctrl.Stop()
	close(release)

	waitForEvents(t, rec, "status:listening", "status:awaiting_reply", "transcript:hello", "status:idle")
	require.Never(t, func() bool {
		for _, ev := range rec.snapshot() {
			if strings.HasPrefix(ev, "reply:") {
				return true
			}
		}
		return false
	}, 150*time.Millisecond, 10*time.Millisecond)
	require.Zero(t, speaks.Load())
	require.Equal(t, fsm.StateIdle, ctrl.State())
}

func TestStopCancelsPlayback(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	source := newScriptedSource()

	playing := make(chan struct{})
	speech := SpeakFunc(func(ctx context.Context, _ string) error {
		close(playing)
		<-ctx.Done()
		return ctx.Err()
	})
	ctrl := NewController(nil, mic, source, nil, speech)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	source.utterances <- "talk to me"
	<-playing

	ctrl.Stop()
	waitForState(t, ctrl, fsm.StateIdle)
	require.Never(t, func() bool {
		for _, ev := range rec.snapshot() {
			if strings.HasPrefix(ev, "error:") {
				return true
			}
		}
		return false
	}, 100*time.Millisecond, 10*time.Millisecond)
	require.EqualValues(t, 1, mic.capture.releases.Load())
}

func TestPermissionDeniedMovesToErrorThenRestarts(t *testing.T) {
	mic := &fakeMic{err: fmt.Errorf("connect: %w", voice.ErrPermissionDenied)}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := runController(t, ctrl)

	err := ctrl.Start(context.Background())
	require.ErrorIs(t, err, voice.ErrPermissionDenied)
	require.Equal(t, "Microphone access denied. Please grant permission.", err.Error())
	require.Equal(t, fsm.StateError, ctrl.State())
	waitForEvents(t, rec, "status:error", "error:permission")

	mic.err = nil
	mic.capture = newFakeCapture()
	require.NoError(t, ctrl.Start(context.Background()))
	waitForEvents(t, rec, "status:error", "error:permission", "status:listening")
}

func TestUnknownAcquireErrorIsDeviceUnavailable(t *testing.T) {
	mic := &fakeMic{err: errors.New("no such source")}
	ctrl := NewController(nil, mic, nil, nil, nil)
	rec := runController(t, ctrl)

	err := ctrl.Start(context.Background())
	require.ErrorIs(t, err, voice.ErrDeviceUnavailable)
	waitForEvents(t, rec, "status:error", "error:device")
}

func TestCaptureClosedWhileListeningMovesToError(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	source := DetectFunc(func(ctx context.Context, frames <-chan voice.Frame) (string, error) {
		return "", voice.ErrCaptureClosed
	})
	ctrl := NewController(nil, mic, source, nil, nil)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	waitForEvents(t, rec, "status:listening", "status:error", "error:device")
	require.Equal(t, fsm.StateError, ctrl.State())
	require.EqualValues(t, 1, mic.capture.releases.Load())
}

func TestSynthesisFailureStillFinishesTurn(t *testing.T) {
	capture := newFakeCapture()
	mic := &fakeMic{capture: capture}
	source := newScriptedSource()
	speech := SpeakFunc(func(context.Context, string) error {
		capture.active.Store(false)
		return errors.New("espeak-ng: exit status 1")
	})
	ctrl := NewController(nil, mic, source, nil, speech)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Start(context.Background()))
	source.utterances <- "say something"

	waitForEvents(t, rec,
		"status:listening",
		"status:awaiting_reply",
		"transcript:say something",
		"status:speaking",
		"reply:I'm not sure how to respond to that.",
		"error:synthesis",
		"status:idle",
	)
	require.EqualValues(t, 1, capture.releases.Load())
}

func TestStopDuringAcquireReleasesLateCapture(t *testing.T) {
	capture := newFakeCapture()
	entered := make(chan struct{})
	proceed := make(chan struct{})
	mic := AcquireFunc(func(context.Context) (voice.Capture, error) {
		close(entered)
		<-proceed
		return capture, nil
	})
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := runController(t, ctrl)

	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Start(context.Background()) }()
	<-entered

	ctrl.Stop()
	close(proceed)

	require.NoError(t, <-errCh)
	require.Equal(t, fsm.StateIdle, ctrl.State())
	require.EqualValues(t, 1, capture.releases.Load())
	waitForEvents(t, rec, "status:idle")
}

// exclusiveMic refuses a second capture until the previous one is released.
// The first acquisition blocks on gate.
type exclusiveMic struct {
	mu       sync.Mutex
	busy     bool
	acquires atomic.Int32
	entered  chan struct{}
	gate     chan struct{}
	first    *fakeCapture
}

type exclusiveCapture struct {
	*fakeCapture
	mic *exclusiveMic
}

func (c exclusiveCapture) Release() error {
	c.mic.mu.Lock()
	c.mic.busy = false
	c.mic.mu.Unlock()
	return c.fakeCapture.Release()
}

func (m *exclusiveMic) Acquire(context.Context) (voice.Capture, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, errors.New("microphone already held")
	}
	m.busy = true
	capture := newFakeCapture()
	n := m.acquires.Add(1)
	if n == 1 {
		m.first = capture
	}
	m.mu.Unlock()

	if n == 1 {
		close(m.entered)
		<-m.gate
	}
	return exclusiveCapture{fakeCapture: capture, mic: m}, nil
}

func TestRestartDuringAcquireWaitsForStaleRelease(t *testing.T) {
	mic := &exclusiveMic{entered: make(chan struct{}), gate: make(chan struct{})}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := runController(t, ctrl)

	firstErr := make(chan error, 1)
	go func() { firstErr <- ctrl.Start(context.Background()) }()
	<-mic.entered

	ctrl.Stop()
	secondErr := make(chan error, 1)
	go func() { secondErr <- ctrl.Start(context.Background()) }()
	require.Eventually(t, func() bool {
		return ctrl.State() == fsm.StateListening
	}, time.Second, 5*time.Millisecond)
	close(mic.gate)

	require.NoError(t, <-firstErr)
	require.NoError(t, <-secondErr)
	require.Equal(t, fsm.StateListening, ctrl.State())
	require.EqualValues(t, 2, mic.acquires.Load())
	require.EqualValues(t, 1, mic.first.releases.Load())
	waitForEvents(t, rec, "status:idle", "status:listening")
}

func TestToggleStartsAndStops(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := runController(t, ctrl)

	require.NoError(t, ctrl.Toggle(context.Background()))
	require.Equal(t, fsm.StateListening, ctrl.State())
	require.NoError(t, ctrl.Toggle(context.Background()))
	require.Equal(t, fsm.StateIdle, ctrl.State())
	waitForEvents(t, rec, "status:listening", "status:idle")
}

func TestSubscribeReplacesPreviousHandlers(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	first := runController(t, ctrl)

	second := &recorder{}
	unsubscribeSecond := ctrl.Subscribe(second.handlers())
	defer unsubscribeSecond()

	require.NoError(t, ctrl.Start(context.Background()))
	waitForEvents(t, second, "status:listening")
	require.Empty(t, first.snapshot())
}

func TestStaleUnsubscribeKeepsCurrentHandlers(t *testing.T) {
	ctrl := NewController(nil, &fakeMic{capture: newFakeCapture()}, newScriptedSource(), nil, nil)

	first := &recorder{}
	unsubscribeFirst := ctrl.Subscribe(first.handlers())
	second := &recorder{}
	ctrl.Subscribe(second.handlers())
	unsubscribeFirst()

	ctrl.deliver(event{kind: eventTranscript, text: "kept"})
	require.Equal(t, []string{"transcript:kept"}, second.snapshot())
	require.Empty(t, first.snapshot())
}

func TestRunStopsActiveConversationOnExit(t *testing.T) {
	mic := &fakeMic{capture: newFakeCapture()}
	ctrl := NewController(nil, mic, newScriptedSource(), nil, nil)
	rec := &recorder{}
	ctrl.Subscribe(rec.handlers())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctrl.Run(ctx)
	}()

	require.NoError(t, ctrl.Start(context.Background()))
	cancel()
	<-done

	require.Equal(t, []string{"status:listening", "status:idle"}, rec.snapshot())
	require.EqualValues(t, 1, mic.capture.releases.Load())
}

func TestDispatcherPreservesOrder(t *testing.T) {
	d := newDispatcher()
	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.run(func(ev event) { got = append(got, len(ev.text)) })
	}()

	for i := 0; i < 50; i++ {
		d.push(event{kind: eventTranscript, text: strings.Repeat("x", i)})
	}
	d.close()
	<-done

	require.Len(t, got, 50)
	for i, n := range got {
		require.Equal(t, i, n)
	}
}
