// Package session coordinates conversation phases, capability calls, and event fan-out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/voice"
)

// rearmDelay throttles detection restarts after a recognizer error.
const rearmDelay = 250 * time.Millisecond

// Controller owns the conversation state machine.
//
// Every asynchronous step is tagged with the turn it was started for. Stop and
// each new utterance advance the turn, so results from an older turn are dropped.
type Controller struct {
	logger  *slog.Logger
	capture AudioCapture
	source  TranscriptSource
	replies ReplyGenerator
	speech  SpeechOutput

	base       context.Context
	cancelBase context.CancelFunc

	mu         sync.Mutex
	state      fsm.State
	turn       uint64
	handle     voice.Capture
	stopDetect context.CancelFunc
	stopSpeech context.CancelFunc

	// acquireMu keeps at most one Acquire or stale release in flight.
	acquireMu sync.Mutex

	events *dispatcher
	subMu  sync.Mutex
	sub    *subscription
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	capture AudioCapture,
	source TranscriptSource,
	replies ReplyGenerator,
	speech SpeechOutput,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if capture == nil {
		capture = AcquireFunc(noCapture)
	}
	if source == nil {
		source = DetectFunc(waitForCancel)
	}
	if replies == nil {
		replies = ReplyFunc(cannedReply)
	}
	if speech == nil {
		speech = SpeakFunc(silentSpeech)
	}

	base, cancel := context.WithCancel(context.Background())
	return &Controller{
		logger:     logger,
		capture:    capture,
		source:     source,
		replies:    replies,
		speech:     speech,
		base:       base,
		cancelBase: cancel,
		state:      fsm.StateIdle,
		events:     newDispatcher(),
	}
}

// State returns the current phase snapshot.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run delivers events to the subscriber until ctx is done, then stops the
// conversation, flushes pending events, and returns.
func (c *Controller) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.events.run(c.deliver)
	}()

	<-ctx.Done()
	c.Stop()
	c.cancelBase()
	c.events.close()
	<-done
	return nil
}

// Start acquires the microphone and begins listening.
//
// Start from an active phase is a no-op. Start from Error resets first.
// Acquisition failures move the session to Error and are both emitted and returned.
// A restart waits until a capture acquired for a stopped turn is released.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == fsm.StateError {
		c.state, _ = fsm.Transition(c.state, fsm.EventReset)
	}
	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("start ignored", "state", string(state))
		return nil
	}
	c.state = next
	c.turn++
	turn := c.turn
	c.mu.Unlock()

	c.acquireMu.Lock()
	defer c.acquireMu.Unlock()

	handle, err := c.capture.Acquire(ctx)

	c.mu.Lock()
	if turn != c.turn {
		c.mu.Unlock()
		c.logger.Debug("dropping capture acquired for stale turn", "turn", turn)
		c.release(handle)
		return nil
	}
	if err != nil && ctx.Err() != nil {
		c.state, _ = fsm.Transition(c.state, fsm.EventStop)
		c.mu.Unlock()
		return ctx.Err()
	}
	if err != nil {
		failure := voice.Classify(err)
		c.turn++
		c.state, _ = fsm.Transition(c.state, fsm.EventFail)
		c.emitStatusLocked()
		c.emitErrorLocked(failure)
		c.mu.Unlock()
		c.logger.Error("microphone acquire failed", "error", err.Error(), "kind", failure.Kind.Error())
		return failure
	}

	c.handle = handle
	c.emitStatusLocked()
	c.listenLocked(turn, 0)
	c.mu.Unlock()

	c.logger.Info("listening", "turn", turn)
	return nil
}

// Stop cancels listening and playback and releases the microphone.
//
// An in-flight reply generation is abandoned rather than aborted; its result is
// dropped when it arrives. Stop while already idle emits nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == fsm.StateIdle && c.handle == nil {
		c.mu.Unlock()
		return
	}

	c.turn++
	if c.stopDetect != nil {
		c.stopDetect()
		c.stopDetect = nil
	}
	if c.stopSpeech != nil {
		c.stopSpeech()
		c.stopSpeech = nil
	}

	handle := c.handle
	c.handle = nil
	c.state, _ = fsm.Transition(c.state, fsm.EventStop)
	c.emitStatusLocked()
	c.mu.Unlock()

	c.release(handle)
	c.logger.Info("conversation stopped")
}

// Toggle stops an active conversation or starts a new one.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.State().Active() {
		c.Stop()
		return nil
	}
	return c.Start(ctx)
}

// listenLocked arms one detection span for turn. Caller holds c.mu.
func (c *Controller) listenLocked(turn uint64, delay time.Duration) {
	handle := c.handle
	ctx, cancel := context.WithCancel(c.base)
	c.stopDetect = cancel

	go func() {
		defer cancel()
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				c.onDetected(turn, "", ctx.Err())
				return
			case <-timer.C:
			}
		}
		utterance, err := c.source.Detect(ctx, handle.Frames())
		c.onDetected(turn, utterance, err)
	}()
}

func (c *Controller) onDetected(turn uint64, utterance string, err error) {
	utterance = strings.TrimSpace(utterance)

	c.mu.Lock()
	if turn != c.turn || c.state != fsm.StateListening {
		c.mu.Unlock()
		if err == nil {
			c.logger.Debug("dropping utterance from stale turn", "turn", turn)
		}
		return
	}
	c.stopDetect = nil

	switch {
	case errors.Is(err, voice.ErrCaptureClosed):
		handle := c.handle
		c.handle = nil
		c.turn++
		c.state, _ = fsm.Transition(c.state, fsm.EventFail)
		c.emitStatusLocked()
		c.emitErrorLocked(voice.NewFailure(voice.ErrDeviceUnavailable, err))
		c.mu.Unlock()
		c.release(handle)
		c.logger.Error("microphone stream ended", "error", err.Error())
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.mu.Unlock()
		return
	case err != nil && !errors.Is(err, voice.ErrNoUtterance):
		c.listenLocked(turn, rearmDelay)
		c.mu.Unlock()
		c.logger.Warn("utterance detection failed", "error", err.Error())
		return
	case err != nil || utterance == "":
		c.listenLocked(turn, 0)
		c.mu.Unlock()
		return
	}

	c.turn++
	turn = c.turn
	c.state, _ = fsm.Transition(c.state, fsm.EventUtterance)
	c.emitStatusLocked()
	c.emitTranscriptLocked(utterance)
	c.mu.Unlock()

	c.logger.Info("utterance detected", "turn", turn, "chars", len(utterance))

	go func() {
		reply := c.replies.Generate(c.base, utterance)
		c.onReply(turn, reply)
	}()
}

func (c *Controller) onReply(turn uint64, reply voice.Reply) {
	c.mu.Lock()
	if turn != c.turn || c.state != fsm.StateAwaitingReply {
		c.mu.Unlock()
		c.logger.Debug("dropping reply from stale turn", "turn", turn, "origin", string(reply.Origin))
		return
	}
	if reply.Err != nil {
		c.emitErrorLocked(generationFailure(reply.Err))
	}

	c.state, _ = fsm.Transition(c.state, fsm.EventReply)
	c.emitStatusLocked()
	c.emitReplyLocked(reply.Text)

	ctx, cancel := context.WithCancel(c.base)
	c.stopSpeech = cancel
	c.mu.Unlock()

	if reply.Err != nil {
		c.logger.Warn("reply generation fell back", "turn", turn, "error", reply.Err.Error())
	}
	c.logger.Info("reply ready", "turn", turn, "origin", string(reply.Origin))

	go func() {
		defer cancel()
		err := c.speech.Speak(ctx, reply.Text)
		c.onSpoken(turn, err)
	}()
}

func (c *Controller) onSpoken(turn uint64, err error) {
	c.mu.Lock()
	if turn != c.turn || c.state != fsm.StateSpeaking {
		c.mu.Unlock()
		return
	}
	c.stopSpeech = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		c.emitErrorLocked(synthesisFailure(err))
	}

	if c.handle != nil && c.handle.Active() {
		c.state, _ = fsm.Transition(c.state, fsm.EventResume)
		c.emitStatusLocked()
		c.listenLocked(turn, 0)
		c.mu.Unlock()
		if err != nil {
			c.logger.Warn("speech playback failed", "turn", turn, "error", err.Error())
		}
		return
	}

	handle := c.handle
	c.handle = nil
	c.state, _ = fsm.Transition(c.state, fsm.EventFinish)
	c.emitStatusLocked()
	c.mu.Unlock()

	c.release(handle)
	if err != nil {
		c.logger.Warn("speech playback failed", "turn", turn, "error", err.Error())
	}
}

func (c *Controller) release(handle voice.Capture) {
	if handle == nil {
		return
	}
	if err := handle.Release(); err != nil {
		c.logger.Warn("microphone release failed", "error", err.Error())
	}
}

func generationFailure(err error) *voice.Failure {
	var f *voice.Failure
	if errors.As(err, &f) {
		return f
	}
	return voice.NewFailure(voice.ErrGenerationFailed, err)
}

func synthesisFailure(err error) *voice.Failure {
	var f *voice.Failure
	if errors.As(err, &f) && errors.Is(f, voice.ErrSynthesisFailed) {
		return f
	}
	return voice.NewFailure(voice.ErrSynthesisFailed, err)
}

// Handle serves IPC commands for the conversation owner.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.response(true, "", nil)
	case ipc.CommandStart:
		if c.State().Active() {
			return c.response(true, "already active", nil)
		}
		return c.response(true, "listening", c.Start(ctx))
	case ipc.CommandStop:
		c.Stop()
		return c.response(true, "stopped", nil)
	case ipc.CommandToggle:
		message := "listening"
		if c.State().Active() {
			message = "stopped"
		}
		return c.response(true, message, c.Toggle(ctx))
	default:
		return c.response(false, "", fmt.Errorf("unknown command: %s", req.Command))
	}
}

func (c *Controller) response(ok bool, message string, err error) ipc.Response {
	state := c.State()
	resp := ipc.Response{OK: ok, State: string(state), Label: state.Label(), Message: message}
	if err != nil {
		resp.OK = false
		resp.Message = ""
		resp.Error = err.Error()
	}
	return resp
}
