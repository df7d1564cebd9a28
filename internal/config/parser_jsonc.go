package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio       *jsoncAudio       `json:"audio"`
	Detection   *jsoncDetection   `json:"detection"`
	Generation  *jsoncGeneration  `json:"generation"`
	Credentials *jsoncCredentials `json:"credentials"`
	Speech      *jsoncSpeech      `json:"speech"`
	Indicator   *jsoncIndicator   `json:"indicator"`
	Log         *jsoncLog         `json:"log"`
	Debug       *jsoncDebug       `json:"debug"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncDetection struct {
	Mode            *string  `json:"mode"`
	SimulatedMinMS  *int     `json:"simulated_min_ms"`
	SimulatedMaxMS  *int     `json:"simulated_max_ms"`
	Threshold       *float64 `json:"threshold"`
	SilenceMS       *int     `json:"silence_ms"`
	MaxUtteranceMS  *int     `json:"max_utterance_ms"`
	MaxWaitMS       *int     `json:"max_wait_ms"`
	RecognizerModel *string  `json:"recognizer_model"`
}

type jsoncGeneration struct {
	Backend      *string `json:"backend"`
	Model        *string `json:"model"`
	Endpoint     *string `json:"endpoint"`
	TimeoutMS    *int    `json:"timeout_ms"`
	SystemPrompt *string `json:"system_prompt"`
}

type jsoncCredentials struct {
	EnvVar     *string `json:"env_var"`
	DotenvPath *string `json:"dotenv_path"`
	StoreDir   *string `json:"store_dir"`
}

type jsoncSpeech struct {
	Enable  *bool            `json:"enable"`
	Cmd     *string          `json:"cmd"`
	Voices  *jsoncStringList `json:"voices"`
	RateWPM *int             `json:"rate_wpm"`
	Volume  *float64         `json:"volume"`
	Pitch   *float64         `json:"pitch"`
}

type jsoncIndicator struct {
	Enable            *bool   `json:"enable"`
	DesktopAppName    *string `json:"desktop_app_name"`
	SoundEnable       *bool   `json:"sound_enable"`
	SoundStartFile    *string `json:"sound_start_file"`
	SoundStopFile     *string `json:"sound_stop_file"`
	SoundCompleteFile *string `json:"sound_complete_file"`
	SoundCancelFile   *string `json:"sound_cancel_file"`
	TextListening     *string `json:"text_listening"`
	TextProcessing    *string `json:"text_processing"`
	TextSpeaking      *string `json:"text_speaking"`
	TextError         *string `json:"text_error"`
	ErrorTimeoutMS    *int    `json:"error_timeout_ms"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Audio != nil {
		setString(&cfg.Audio.Input, payload.Audio.Input)
		setString(&cfg.Audio.Fallback, payload.Audio.Fallback)
	}

	if d := payload.Detection; d != nil {
		if d.Mode != nil {
			cfg.Detection.Mode = strings.ToLower(strings.TrimSpace(*d.Mode))
		}
		setInt(&cfg.Detection.SimulatedMinMS, d.SimulatedMinMS)
		setInt(&cfg.Detection.SimulatedMaxMS, d.SimulatedMaxMS)
		if d.Threshold != nil {
			cfg.Detection.Threshold = *d.Threshold
		}
		setInt(&cfg.Detection.SilenceMS, d.SilenceMS)
		setInt(&cfg.Detection.MaxUtteranceMS, d.MaxUtteranceMS)
		setInt(&cfg.Detection.MaxWaitMS, d.MaxWaitMS)
		setString(&cfg.Detection.RecognizerModel, d.RecognizerModel)
	}

	if g := payload.Generation; g != nil {
		if g.Backend != nil {
			cfg.Generation.Backend = strings.ToLower(strings.TrimSpace(*g.Backend))
		}
		setString(&cfg.Generation.Model, g.Model)
		setString(&cfg.Generation.Endpoint, g.Endpoint)
		setInt(&cfg.Generation.TimeoutMS, g.TimeoutMS)
		if g.SystemPrompt != nil {
			cfg.Generation.SystemPrompt = *g.SystemPrompt
		}
	}

	if c := payload.Credentials; c != nil {
		setString(&cfg.Credentials.EnvVar, c.EnvVar)
		setString(&cfg.Credentials.DotenvPath, c.DotenvPath)
		setString(&cfg.Credentials.StoreDir, c.StoreDir)
	}

	if sp := payload.Speech; sp != nil {
		if sp.Enable != nil {
			cfg.Speech.Enable = *sp.Enable
		}
		if sp.Cmd != nil {
			raw := *sp.Cmd
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid speech.cmd: %w", err)
			}
			cfg.Speech.Command = CommandConfig{Raw: raw, Argv: argv}
		}
		if sp.Voices != nil {
			cfg.Speech.Voices = append([]string(nil), (*sp.Voices)...)
			if len(cfg.Speech.Voices) == 0 {
				warnings = append(warnings, Warning{Message: "speech.voices is empty; the engine default voice will be used"})
			}
		}
		setInt(&cfg.Speech.RateWPM, sp.RateWPM)
		if sp.Volume != nil {
			cfg.Speech.Volume = *sp.Volume
		}
		if sp.Pitch != nil {
			cfg.Speech.Pitch = *sp.Pitch
		}
	}

	if in := payload.Indicator; in != nil {
		if in.Enable != nil {
			cfg.Indicator.Enable = *in.Enable
		}
		setString(&cfg.Indicator.DesktopAppName, in.DesktopAppName)
		if in.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *in.SoundEnable
		}
		setString(&cfg.Indicator.SoundStartFile, in.SoundStartFile)
		setString(&cfg.Indicator.SoundStopFile, in.SoundStopFile)
		setString(&cfg.Indicator.SoundCompleteFile, in.SoundCompleteFile)
		setString(&cfg.Indicator.SoundCancelFile, in.SoundCancelFile)
		setString(&cfg.Indicator.TextListening, in.TextListening)
		setString(&cfg.Indicator.TextProcessing, in.TextProcessing)
		setString(&cfg.Indicator.TextSpeaking, in.TextSpeaking)
		setString(&cfg.Indicator.TextError, in.TextError)
		setInt(&cfg.Indicator.ErrorTimeoutMS, in.ErrorTimeoutMS)
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	if payload.Debug != nil && payload.Debug.AudioDump != nil {
		cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
	}

	return warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
