// Package config resolves, parses, validates, and defaults parley configuration.
package config

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	Audio       AudioConfig
	Detection   DetectionConfig
	Generation  GenerationConfig
	Credentials CredentialsConfig
	Speech      SpeechConfig
	Indicator   IndicatorConfig
	Log         LogConfig
	Debug       DebugConfig
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// Detection modes.
const (
	DetectionSimulated = "simulated"
	DetectionSegmenter = "segmenter"
)

// DetectionConfig controls how utterances are obtained from captured audio.
type DetectionConfig struct {
	Mode            string
	SimulatedMinMS  int
	SimulatedMaxMS  int
	Threshold       float64
	SilenceMS       int
	MaxUtteranceMS  int
	MaxWaitMS       int
	RecognizerModel string
}

// Generation backends.
const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendGRPC   = "grpc"
	BackendNone   = "none"
)

// GenerationConfig selects and tunes the primary reply backend.
type GenerationConfig struct {
	Backend      string
	Model        string
	Endpoint     string
	TimeoutMS    int
	SystemPrompt string
}

// CredentialsConfig controls where the generation API key is looked up.
type CredentialsConfig struct {
	EnvVar     string
	DotenvPath string
	StoreDir   string
}

// SpeechConfig controls reply synthesis and playback.
type SpeechConfig struct {
	Enable  bool
	Command CommandConfig
	Voices  []string
	RateWPM int
	Volume  float64
	Pitch   float64
}

// IndicatorConfig controls desktop notification and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool
	DesktopAppName    string
	SoundEnable       bool
	SoundStartFile    string
	SoundStopFile     string
	SoundCompleteFile string
	SoundCancelFile   string
	TextListening     string
	TextProcessing    string
	TextSpeaking      string
	TextError         string
	ErrorTimeoutMS    int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// LogConfig controls runtime log verbosity.
type LogConfig struct {
	Level string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
