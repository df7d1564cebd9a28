package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	espeak := "espeak-ng"

	return Config{
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Detection: DetectionConfig{
			Mode:           DetectionSimulated,
			SimulatedMinMS: 2000,
			SimulatedMaxMS: 5000,
			Threshold:      0.02,
			SilenceMS:      800,
			MaxUtteranceMS: 15000,
			MaxWaitMS:      10000,
		},
		Generation: GenerationConfig{
			Backend:   BackendGemini,
			TimeoutMS: 20000,
		},
		Credentials: CredentialsConfig{
			EnvVar:     "GEMINI_API_KEY",
			DotenvPath: ".env",
		},
		Speech: SpeechConfig{
			Enable:  true,
			Command: CommandConfig{Raw: espeak, Argv: mustParseArgv(espeak)},
			Voices:  []string{"Google Female", "Samantha", "Daniel"},
			RateWPM: 175,
			Volume:  1.0,
			Pitch:   1.0,
		},
		Indicator: IndicatorConfig{
			Enable:         false,
			DesktopAppName: "parley",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Log:   LogConfig{Level: "info"},
		Debug: DebugConfig{},
	}
}
