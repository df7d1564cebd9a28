package conversation

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/session"
)

// Theme is the terminal color scheme.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Status    lipgloss.Color
	Error     lipgloss.Color
	Dim       lipgloss.Color
}

var DefaultTheme = Theme{
	User:      lipgloss.Color("#3b82f6"),
	Assistant: lipgloss.Color("#e5e7eb"),
	Status:    lipgloss.Color("#00ff9f"),
	Error:     lipgloss.Color("#ef4444"),
	Dim:       lipgloss.Color("#6e7681"),
}

type styles struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	status    lipgloss.Style
	err       lipgloss.Style
	dim       lipgloss.Style
}

func newStyles(t Theme) styles {
	bubble := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return styles{
		user:      bubble.BorderForeground(t.User).Foreground(t.User),
		assistant: bubble.BorderForeground(t.Dim).Foreground(t.Assistant),
		status:    lipgloss.NewStyle().Bold(true).Foreground(t.Status),
		err:       lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		dim:       lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Terminal renders session events as a scrolling conversation.
type Terminal struct {
	Out   io.Writer
	Log   *Log
	Theme Theme
	// Width is the render width; bubbles wrap at two thirds of it.
	Width int
	// Debug prints a timestamped trail of every event.
	Debug bool
	Now   func() time.Time

	once   sync.Once
	mu     sync.Mutex
	styles styles
}

const defaultWidth = 80

// Handlers returns the subscriber set to register with a session.Controller.
func (t *Terminal) Handlers() session.Handlers {
	return session.Handlers{
		OnStatus:     t.Status,
		OnTranscript: t.Transcript,
		OnReply:      t.Reply,
		OnError:      t.Error,
	}
}

func (t *Terminal) Status(s session.Status) {
	t.debug("status %s", s.State)
	t.write(t.theme().status.Render(statusMarker(s.State)+" "+s.Text) + "\n")
}

func (t *Terminal) Transcript(text string) {
	t.debug("transcript %q", text)
	entry := t.log().Append(SpeakerUser, text)
	t.write(t.bubble(entry) + "\n")
}

func (t *Terminal) Reply(text string) {
	t.debug("reply %q", text)
	entry := t.log().Append(SpeakerAssistant, text)
	t.write(t.bubble(entry) + "\n")
}

func (t *Terminal) Error(err error) {
	if err == nil {
		return
	}
	t.debug("error %v", err)
	t.write(t.theme().err.Render("! "+err.Error()) + "\n")
}

// bubble right-aligns user messages and left-aligns assistant messages.
func (t *Terminal) bubble(e Entry) string {
	st := t.theme()
	width := t.width()
	wrap := max(width*2/3, 20)

	style := st.assistant
	align := lipgloss.Left
	if e.Speaker == SpeakerUser {
		style = st.user
		align = lipgloss.Right
	}
	body := style.Width(wrap).Render(e.Text)
	stamp := st.dim.Render(e.CreatedAt.Format("15:04"))
	block := lipgloss.JoinVertical(align, body, stamp)
	return lipgloss.PlaceHorizontal(width, align, block)
}

func (t *Terminal) debug(format string, args ...any) {
	if !t.Debug {
		return
	}
	line := fmt.Sprintf("[%s] %s", t.now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
	t.write(t.theme().dim.Render(line) + "\n")
}

func (t *Terminal) write(s string) {
	if t.Out == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.Out, s)
}

func (t *Terminal) theme() styles {
	t.once.Do(func() {
		theme := t.Theme
		if theme == (Theme{}) {
			theme = DefaultTheme
		}
		t.styles = newStyles(theme)
		if t.Log == nil {
			t.Log = NewLog()
		}
	})
	return t.styles
}

func (t *Terminal) log() *Log {
	t.theme()
	return t.Log
}

func (t *Terminal) width() int {
	if t.Width > 0 {
		return t.Width
	}
	return defaultWidth
}

func (t *Terminal) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func statusMarker(state fsm.State) string {
	switch state {
	case fsm.StateListening:
		return "●"
	case fsm.StateAwaitingReply:
		return "…"
	case fsm.StateSpeaking:
		return "♪"
	case fsm.StateError:
		return "✗"
	default:
		return "○"
	}
}

// PlainText renders entries as plain text, oldest first.
func PlainText(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.CreatedAt.Format(time.RFC3339), e.Speaker, e.Text)
	}
	return b.String()
}
