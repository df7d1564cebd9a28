package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// commandLexer splits a shell-like command line. It honours single and double
// quotes and backslash escapes; it does not expand variables or globs.
type commandLexer struct {
	argv    []string
	current strings.Builder
	started bool
	quote   rune
	escape  bool
}

func (l *commandLexer) feed(r rune) {
	switch {
	case l.escape:
		l.current.WriteRune(r)
		l.escape = false
	case r == '\\':
		l.escape = true
		l.started = true
	case l.quote != 0:
		if r == l.quote {
			l.quote = 0
			return
		}
		l.current.WriteRune(r)
	case r == '\'' || r == '"':
		l.quote = r
		l.started = true
	case unicode.IsSpace(r):
		l.flush()
	default:
		l.current.WriteRune(r)
		l.started = true
	}
}

// flush ends the current word. Quoted empty strings survive as "" arguments.
func (l *commandLexer) flush() {
	if !l.started {
		return
	}
	l.argv = append(l.argv, l.current.String())
	l.current.Reset()
	l.started = false
}

// parseArgv turns speech.cmd into argv. A leading "~/" on the executable is
// expanded to the user's home directory.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var l commandLexer
	for _, r := range input {
		l.feed(r)
	}
	switch {
	case l.escape:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case l.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}
	l.flush()

	if len(l.argv) > 0 {
		l.argv[0] = expandHome(l.argv[0])
	}
	return l.argv, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func mustParseArgv(input string) []string {
	argv, err := parseArgv(input)
	if err != nil {
		panic(err)
	}
	return argv
}
