// Package cli parses the parley command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandTalk    Command = "talk"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandToggle  Command = "toggle"
	CommandStatus  Command = "status"
	CommandAsk     Command = "ask"
	CommandSay     Command = "say"
	CommandVoices  Command = "voices"
	CommandDevices Command = "devices"
	CommandKey     Command = "key"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// Key subcommands.
const (
	KeySet    = "set"
	KeyClear  = "clear"
	KeyStatus = "status"
)

type arity int

const (
	noArgs arity = iota
	textArgs
	oneKeyAction
)

var validCommands = map[Command]arity{
	CommandTalk:    noArgs,
	CommandStart:   noArgs,
	CommandStop:    noArgs,
	CommandToggle:  noArgs,
	CommandStatus:  noArgs,
	CommandAsk:     textArgs,
	CommandSay:     textArgs,
	CommandVoices:  noArgs,
	CommandDevices: noArgs,
	CommandKey:     oneKeyAction,
	CommandDoctor:  noArgs,
	CommandVersion: noArgs,
	CommandHelp:    noArgs,
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Debug raises log verbosity and prints the event trail in talk.
	Debug bool
	// Text is the joined argument of ask and say.
	Text string
	// KeyAction is set|clear|status for the key command.
	KeyAction string
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			kind, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if err := parsed.takeArgs(kind, args[i+1:]); err != nil {
				return Parsed{}, err
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func (p *Parsed) takeArgs(kind arity, rest []string) error {
	switch kind {
	case textArgs:
		text := strings.TrimSpace(strings.Join(rest, " "))
		if text == "" {
			return fmt.Errorf("%s requires text", p.Command)
		}
		p.Text = text
	case oneKeyAction:
		if len(rest) != 1 {
			return errors.New("key requires one of: set, clear, status")
		}
		switch rest[0] {
		case KeySet, KeyClear, KeyStatus:
			p.KeyAction = rest[0]
		default:
			return fmt.Errorf("unknown key action: %s", rest[0])
		}
	default:
		if len(rest) > 0 {
			return fmt.Errorf("unexpected arguments after command %q", p.Command)
		}
	}
	return nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--debug] <command> [args]

Commands:
  talk         Run the conversation in this terminal and accept remote control
  start        Start listening; runs the conversation here if none is running
  stop         Stop the running conversation and release the microphone
  toggle       Stop when active, otherwise start
  status       Print the current conversation state
  ask TEXT     Print the reply to TEXT without audio
  say TEXT     Speak TEXT with the configured voice
  voices       List synthesis voices, marking the preferred one
  devices      List available input devices
  key ACTION   Manage the stored API key (set reads stdin; clear; status)
  doctor       Run configuration and environment checks
  version      Print version information
  help         Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/parley/config.jsonc)
  --debug         Log at debug level and print the event trail
  -h, --help      Show help
  --version       Show version

Environment:
  PARLEY_CONFIG   Config file path when --config is not given
  PARLEY_SOCKET   Control socket path (default: $XDG_RUNTIME_DIR/parley.sock)
`, binaryName)
}
