// Package app dispatches parley commands and wires the conversation runtime.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/cli"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/credential"
	"github.com/rbright/parley/internal/doctor"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/logging"
	"github.com/rbright/parley/internal/speech"
	"github.com/rbright/parley/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Player overrides reply and cue playback; nil uses PulseAudio.
	Player speech.Player
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(version.Name))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(version.Name))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()
	if parsed.Debug {
		logRuntime.SetLevel(slog.LevelDebug)
	}

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
		"version", version.Version,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, doctor.Options{Keys: keyResolver(cfg.Credentials, logger)})
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandStart, cli.CommandToggle:
		return r.forwardOrOwn(ctx, string(parsed.Command), cfg, parsed.Debug, logger)
	case cli.CommandTalk:
		return r.forwardOrOwn(ctx, ipc.CommandStart, cfg, parsed.Debug, logger)
	case cli.CommandAsk:
		return r.commandAsk(ctx, cfg, parsed.Text, logger)
	case cli.CommandSay:
		return r.commandSay(ctx, cfg, parsed.Text, logger)
	case cli.CommandVoices:
		return r.commandVoices(ctx, cfg.Speech)
	case cli.CommandKey:
		return r.commandKey(ctx, cfg.Credentials, parsed.KeyAction, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) player() speech.Player {
	if r.Player != nil {
		return r.Player
	}
	return speech.PulsePlayer{MediaName: "parley reply"}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, ipc.CommandStatus, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, command, forwardTimeout)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active parley conversation\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandAsk runs one reply generation without audio.
func (r Runner) commandAsk(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	keys := keyResolver(cfg.Credentials, logger)
	generator, closeBackend := replyGenerator(cfg.Generation, keys, geminiClients(cfg.Generation), logger)
	defer func() { _ = closeBackend() }()

	answer := generator.Generate(ctx, text)
	if answer.Err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", answer.Err)
	}
	fmt.Fprintln(r.Stdout, answer.Text)
	logger.Info("ask complete", "origin", answer.Origin, "reply_length", len(answer.Text))
	return 0
}

func (r Runner) commandSay(ctx context.Context, cfg config.Config, text string, logger *slog.Logger) int {
	if !cfg.Speech.Enable {
		fmt.Fprintln(r.Stderr, "error: speech is disabled (speech.enable=false)")
		return 1
	}
	if err := speaker(cfg.Speech, r.player(), logger).Speak(ctx, text); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("say failed", "error", err.Error())
		return 1
	}
	return 0
}

func (r Runner) commandVoices(ctx context.Context, cfg config.SpeechConfig) int {
	voices, err := espeakEngine(cfg).Voices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(voices) == 0 {
		fmt.Fprintln(r.Stdout, "no voices found")
		return 1
	}

	preferred, ok := speech.SelectVoice(voices, cfg.Voices)
	for _, v := range voices {
		mark := " "
		if ok && v == preferred {
			mark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s | language=%s | gender=%s\n", mark, v.Name, v.Language, v.Gender)
	}
	return 0
}

func (r Runner) commandKey(ctx context.Context, cfg config.CredentialsConfig, action string, logger *slog.Logger) int {
	if action == cli.KeyStatus {
		_, source, err := keyResolver(cfg, logger).Lookup(ctx)
		switch {
		case errors.Is(err, credential.ErrNotFound):
			fmt.Fprintln(r.Stdout, "not configured")
		case err != nil:
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		default:
			fmt.Fprintf(r.Stdout, "configured (%s)\n", source)
		}
		return 0
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	switch action {
	case cli.KeySet:
		value, err := readSecret(r.Stdin)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if err := store.Set(ctx, value); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, "key saved")
	case cli.KeyClear:
		if err := store.Clear(ctx); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(r.Stdout, "key cleared")
	}
	logger.Info("credential updated", "action", action)
	return 0
}

// readSecret takes the first line of stdin.
func readSecret(in io.Reader) (string, error) {
	if in == nil {
		return "", errors.New("no input to read the key from")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read key: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", errors.New("key is empty; pipe it on stdin, e.g. `echo $KEY | parley key set`")
	}
	return value, nil
}
