package app

import (
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/credential"
	"github.com/rbright/parley/internal/gemini"
	"github.com/rbright/parley/internal/reply"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/speech"
	"github.com/rbright/parley/internal/transcript"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// keyResolver chains env, dotenv, and the on-disk store per config.
func keyResolver(cfg config.CredentialsConfig, logger *slog.Logger) credential.Resolver {
	return credential.Resolver{
		EnvVar:     cfg.EnvVar,
		DotenvPath: cfg.DotenvPath,
		OpenStore: func() (*credential.Store, error) {
			return openStore(cfg, logger)
		},
	}
}

func openStore(cfg config.CredentialsConfig, logger *slog.Logger) (*credential.Store, error) {
	dir := strings.TrimSpace(cfg.StoreDir)
	if dir == "" {
		var err error
		if dir, err = credential.DefaultDir(); err != nil {
			return nil, err
		}
	}
	return credential.Open(credential.Options{Dir: dir, Logger: logger})
}

// geminiClients shares one client cache between recognition and generation.
func geminiClients(cfg config.GenerationConfig) *gemini.Clients {
	clients := &gemini.Clients{}
	if cfg.Backend == config.BackendGemini {
		clients.BaseURL = strings.TrimSpace(cfg.Endpoint)
	}
	return clients
}

// replyGenerator builds the primary backend plus fallback. The returned
// closer releases backend connections.
func replyGenerator(cfg config.GenerationConfig, keys reply.KeySource, clients *gemini.Clients, logger *slog.Logger) (*reply.Generator, func() error) {
	system := cfg.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = reply.DefaultSystemPrompt
	}

	closer := func() error { return nil }
	var backend reply.Backend
	switch cfg.Backend {
	case config.BackendGemini:
		backend = &reply.GeminiBackend{Clients: clients, Model: cfg.Model, System: system}
	case config.BackendOpenAI:
		backend = &reply.OpenAIBackend{BaseURL: cfg.Endpoint, Model: cfg.Model, System: system}
	case config.BackendGRPC:
		grpcBackend := &reply.GRPCBackend{Endpoint: cfg.Endpoint, System: system}
		backend = grpcBackend
		closer = grpcBackend.Close
	}

	return &reply.Generator{
		Backend: backend,
		Keys:    keys,
		Timeout: ms(cfg.TimeoutMS),
		Logger:  logger,
	}, closer
}

func transcriptSource(cfg config.Config, keys transcript.KeySource, clients *gemini.Clients, logger *slog.Logger) session.TranscriptSource {
	d := cfg.Detection
	if d.Mode == config.DetectionSegmenter {
		return transcript.Segmenter{
			Recognizer: &transcript.GeminiRecognizer{
				Clients: clients,
				Keys:    keys,
				Model:   d.RecognizerModel,
			},
			Threshold:    d.Threshold,
			Silence:      ms(d.SilenceMS),
			MaxUtterance: ms(d.MaxUtteranceMS),
			MaxWait:      ms(d.MaxWaitMS),
			DumpAudio:    cfg.Debug.EnableAudioDump,
			Logger:       logger,
		}
	}
	return transcript.Simulated{Min: ms(d.SimulatedMinMS), Max: ms(d.SimulatedMaxMS)}
}

func espeakEngine(cfg config.SpeechConfig) speech.Espeak {
	engine := speech.Espeak{RateWPM: cfg.RateWPM, Volume: cfg.Volume, Pitch: cfg.Pitch}
	if argv := cfg.Command.Argv; len(argv) > 0 {
		engine.Binary = argv[0]
		engine.Args = argv[1:]
	}
	return engine
}

func speaker(cfg config.SpeechConfig, player speech.Player, logger *slog.Logger) *speech.Speaker {
	return &speech.Speaker{
		Engine:      espeakEngine(cfg),
		Player:      player,
		Preferences: cfg.Voices,
		Logger:      logger,
	}
}

// speechOutput is the session's speech capability; disabled speech completes instantly.
func speechOutput(cfg config.SpeechConfig, player speech.Player, logger *slog.Logger) session.SpeechOutput {
	if !cfg.Enable {
		return speech.Silent{}
	}
	return speaker(cfg, player, logger)
}

func microphone(cfg config.AudioConfig, logger *slog.Logger) audio.Microphone {
	return audio.Microphone{Input: cfg.Input, Fallback: cfg.Fallback, Logger: logger}
}

// combine fans one event out to several presentation handlers, in order.
func combine(sets ...session.Handlers) session.Handlers {
	return session.Handlers{
		OnStatus: func(s session.Status) {
			for _, h := range sets {
				if h.OnStatus != nil {
					h.OnStatus(s)
				}
			}
		},
		OnTranscript: func(text string) {
			for _, h := range sets {
				if h.OnTranscript != nil {
					h.OnTranscript(text)
				}
			}
		},
		OnReply: func(text string) {
			for _, h := range sets {
				if h.OnReply != nil {
					h.OnReply(text)
				}
			}
		},
		OnError: func(err error) {
			for _, h := range sets {
				if h.OnError != nil {
					h.OnError(err)
				}
			}
		},
	}
}
