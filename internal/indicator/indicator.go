// Package indicator mirrors session phases as desktop notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/speech"
)

// phaseTimeoutMS keeps phase notifications up until the next phase replaces them.
const phaseTimeoutMS = 300000

// notifier is the desktop notification backend.
type notifier interface {
	Notify(ctx context.Context, n notification) (uint32, error)
	Dismiss(ctx context.Context, id uint32) error
}

// Indicator reacts to session status and error events.
type Indicator struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	player   speech.Player
	notifier notifier

	mu                    sync.Mutex
	last                  fsm.State
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cueFiles              map[string]speech.Audio
	cues                  sync.WaitGroup
}

// New creates an indicator that plays cues through player and notifies over DBus.
func New(cfg config.IndicatorConfig, player speech.Player, logger *slog.Logger) *Indicator {
	return &Indicator{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv().override(cfg),
		player:   player,
		notifier: busctl{},
		last:     fsm.StateIdle,
	}
}

// Handlers returns the status and error callbacks for a session subscriber set.
func (i *Indicator) Handlers() session.Handlers {
	return session.Handlers{OnStatus: i.Status, OnError: i.Error}
}

// Status plays the cue for the transition and updates the notification.
func (i *Indicator) Status(s session.Status) {
	i.mu.Lock()
	prev := i.last
	i.last = s.State
	i.mu.Unlock()

	ctx := context.Background()
	switch s.State {
	case fsm.StateListening:
		if prev == fsm.StateSpeaking {
			i.playCue(cueComplete)
		} else {
			i.playCue(cueStart)
		}
		i.show(ctx, phaseTimeoutMS, urgencyNormal, i.messages.listening)
	case fsm.StateAwaitingReply:
		i.show(ctx, phaseTimeoutMS, urgencyLow, i.messages.processing)
	case fsm.StateSpeaking:
		i.show(ctx, phaseTimeoutMS, urgencyLow, i.messages.speaking)
	case fsm.StateError:
		i.playCue(cueCancel)
	case fsm.StateIdle:
		if prev.Active() {
			i.playCue(cueStop)
		}
		i.hide(ctx)
	}
}

// Error shows a short-lived error notification.
func (i *Indicator) Error(err error) {
	text := i.messages.errorText
	if err != nil && strings.TrimSpace(err.Error()) != "" {
		text = err.Error()
	}
	timeout := i.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	i.show(context.Background(), timeout, urgencyCritical, text)
}

// Wait blocks until queued cues have finished playing.
func (i *Indicator) Wait() {
	i.cues.Wait()
}

func (i *Indicator) show(ctx context.Context, timeoutMS int, level urgency, text string) {
	if !i.cfg.Enable {
		return
	}
	i.run(ctx, func(ctx context.Context) error {
		return i.notifyDesktop(ctx, timeoutMS, level, text)
	})
}

func (i *Indicator) hide(ctx context.Context) {
	if !i.cfg.Enable {
		return
	}
	i.run(ctx, i.dismissDesktop)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (i *Indicator) notifyDesktop(ctx context.Context, timeoutMS int, level urgency, text string) error {
	i.mu.Lock()
	replaceID := i.desktopNotificationID
	i.mu.Unlock()

	appName := strings.TrimSpace(i.cfg.DesktopAppName)
	if appName == "" {
		appName = "parley"
	}

	id, err := i.notifier.Notify(ctx, notification{
		AppName:   appName,
		ReplaceID: replaceID,
		Summary:   text,
		TimeoutMS: timeoutMS,
		Urgency:   level,
	})
	if err != nil {
		return err
	}

	i.mu.Lock()
	i.desktopNotificationID = id
	i.mu.Unlock()
	return nil
}

// dismissDesktop closes the current desktop notification ID when present.
func (i *Indicator) dismissDesktop(ctx context.Context) error {
	i.mu.Lock()
	id := i.desktopNotificationID
	i.desktopNotificationID = 0
	i.mu.Unlock()

	if id == 0 {
		return nil
	}
	return i.notifier.Dismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (i *Indicator) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		i.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (i *Indicator) playCue(kind cueKind) {
	if !i.cfg.SoundEnable || i.player == nil {
		return
	}
	i.cues.Add(1)
	go func() {
		defer i.cues.Done()
		i.soundMu.Lock()
		defer i.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		if err := i.emitCue(ctx, kind); err != nil {
			i.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (i *Indicator) log(message string, err error) {
	if i.logger == nil || err == nil {
		return
	}
	i.logger.Debug(message, "error", err.Error())
}
