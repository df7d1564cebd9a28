package indicator

import (
	"os"
	"strings"

	"github.com/rbright/parley/internal/config"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	listening  string
	processing string
	speaking   string
	errorText  string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			listening:  "Listening…",
			processing: "Thinking…",
			speaking:   "Speaking…",
			errorText:  "Conversation error",
		}
	}
}

// override applies non-empty configured texts.
func (m messages) override(cfg config.IndicatorConfig) messages {
	pick := func(current, configured string) string {
		if configured = strings.TrimSpace(configured); configured != "" {
			return configured
		}
		return current
	}
	m.listening = pick(m.listening, cfg.TextListening)
	m.processing = pick(m.processing, cfg.TextProcessing)
	m.speaking = pick(m.speaking, cfg.TextSpeaking)
	m.errorText = pick(m.errorText, cfg.TextError)
	return m
}
