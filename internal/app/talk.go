package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/conversation"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/session"
)

// forwardOrOwn hands command to a running owner, or becomes the owner and
// runs a conversation until it returns to idle or ctx ends.
func (r Runner) forwardOrOwn(ctx context.Context, command string, cfg config.Config, debug bool, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if code, handled := r.forwardTo(ctx, socketPath, command); handled {
		return code
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, func(context.Context) error {
		logger.Warn("removed stale conversation socket", "path", socketPath)
		return nil
	})
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			if code, handled := r.forwardTo(ctx, socketPath, command); handled {
				return code
			}
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	keys := keyResolver(cfg.Credentials, logger)
	clients := geminiClients(cfg.Generation)
	generator, closeBackend := replyGenerator(cfg.Generation, keys, clients, logger)
	defer func() { _ = closeBackend() }()

	player := r.player()
	controller := session.NewController(
		logger,
		microphone(cfg.Audio, logger),
		transcriptSource(cfg, keys, clients, logger),
		generator,
		speechOutput(cfg.Speech, player, logger),
	)

	runCtx, endConversation := context.WithCancel(ctx)
	defer endConversation()

	terminal := &conversation.Terminal{Out: r.Stdout, Log: conversation.NewLog(), Debug: debug}
	sets := []session.Handlers{terminal.Handlers()}
	var cues *indicator.Indicator
	if cfg.Indicator.Enable {
		cues = indicator.New(cfg.Indicator, player, logger)
		sets = append(sets, cues.Handlers())
	}
	sets = append(sets, session.Handlers{
		OnStatus: func(s session.Status) {
			if s.State == fsm.StateIdle {
				endConversation()
			}
		},
	})
	unsubscribe := controller.Subscribe(combine(sets...))
	defer unsubscribe()

	runDone := make(chan error, 1)
	go func() {
		runDone <- controller.Run(runCtx)
	}()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	started := time.Now()
	startErr := controller.Start(runCtx)
	if startErr != nil {
		endConversation()
	}

	<-runDone
	serverCancel()
	serverErr := <-serverErrCh
	if cues != nil {
		cues.Wait()
	}

	entries := terminal.Log.Entries()
	logger.Info("conversation ended",
		"duration_ms", time.Since(started).Milliseconds(),
		"entries", len(entries),
		"state", string(controller.State()),
	)

	switch {
	case startErr != nil && !errors.Is(startErr, context.Canceled):
		fmt.Fprintf(r.Stderr, "error: %v\n", startErr)
		logger.Error("conversation start failed", "error", startErr.Error())
		return 1
	case serverErr != nil:
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	return 0
}

// forwardTo reports handled=false when nobody owns the socket.
func (r Runner) forwardTo(ctx context.Context, socketPath string, command string) (int, bool) {
	resp, handled, err := ipc.Forward(ctx, socketPath, command, forwardTimeout)
	if !handled {
		return 0, false
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1, true
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0, true
}
