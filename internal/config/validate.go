package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	switch cfg.Detection.Mode {
	case DetectionSimulated, DetectionSegmenter:
	default:
		return nil, fmt.Errorf("detection.mode must be one of: simulated, segmenter")
	}
	if cfg.Detection.SimulatedMinMS < 0 || cfg.Detection.SimulatedMaxMS < 0 {
		return nil, fmt.Errorf("detection.simulated_min_ms and detection.simulated_max_ms must be >= 0")
	}
	if cfg.Detection.SimulatedMaxMS < cfg.Detection.SimulatedMinMS {
		return nil, fmt.Errorf("detection.simulated_max_ms must be >= detection.simulated_min_ms")
	}
	if cfg.Detection.Threshold <= 0 || cfg.Detection.Threshold >= 1 {
		return nil, fmt.Errorf("detection.threshold must be in (0, 1)")
	}
	if cfg.Detection.SilenceMS <= 0 {
		return nil, fmt.Errorf("detection.silence_ms must be > 0")
	}
	if cfg.Detection.MaxUtteranceMS <= 0 {
		return nil, fmt.Errorf("detection.max_utterance_ms must be > 0")
	}
	if cfg.Detection.MaxWaitMS <= 0 {
		return nil, fmt.Errorf("detection.max_wait_ms must be > 0")
	}

	switch cfg.Generation.Backend {
	case BackendGemini, BackendOpenAI, BackendNone:
	case BackendGRPC:
		if strings.TrimSpace(cfg.Generation.Endpoint) == "" {
			return nil, fmt.Errorf("generation.endpoint must not be empty when generation.backend=grpc")
		}
	default:
		return nil, fmt.Errorf("generation.backend must be one of: gemini, openai, grpc, none")
	}
	if cfg.Generation.TimeoutMS <= 0 {
		return nil, fmt.Errorf("generation.timeout_ms must be > 0")
	}
	if cfg.Generation.Backend == BackendNone {
		warnings = append(warnings, Warning{Message: "generation.backend=none; every reply comes from the fallback table"})
	}
	if cfg.Detection.Mode == DetectionSegmenter && cfg.Generation.Backend != BackendGemini {
		warnings = append(warnings, Warning{Message: "detection.mode=segmenter recognizes speech with Gemini and still needs its credential"})
	}

	if strings.TrimSpace(cfg.Credentials.EnvVar) == "" {
		return nil, fmt.Errorf("credentials.env_var must not be empty")
	}

	if cfg.Speech.Enable && len(cfg.Speech.Command.Argv) == 0 {
		return nil, fmt.Errorf("speech.cmd must not be empty when speech.enable=true")
	}
	if cfg.Speech.RateWPM < 0 {
		return nil, fmt.Errorf("speech.rate_wpm must be >= 0")
	}
	if cfg.Speech.Volume < 0 || cfg.Speech.Volume > 2 {
		return nil, fmt.Errorf("speech.volume must be in [0, 2]")
	}
	if cfg.Speech.Pitch < 0 || cfg.Speech.Pitch > 2 {
		return nil, fmt.Errorf("speech.pitch must be in [0, 2]")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
