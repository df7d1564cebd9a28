// Package doctor runs readiness diagnostics for config, audio, speech, credentials, and the reply backend.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/credential"
	"github.com/rbright/parley/internal/reply"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// KeyLookup finds the generation credential and reports where it came from.
type KeyLookup interface {
	Lookup(context.Context) (string, credential.Source, error)
}

// Options carries collaborators that tests substitute.
type Options struct {
	Keys KeyLookup
	// Dialer reaches the gRPC reply service; nil dials the network.
	Dialer func(context.Context, string) (net.Conn, error)
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, opts Options) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "remote control socket available", "XDG_RUNTIME_DIR is empty; start/stop/toggle cannot reach talk"))

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))

	if cfg.Config.Speech.Enable {
		checks = append(checks, checkCommand(cfg.Config.Speech.Command.Argv, "speech.cmd"))
	}
	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	if needsCredential(cfg.Config) {
		checks = append(checks, checkCredential(ctx, opts.Keys))
	}
	checks = append(checks, checkBackend(ctx, cfg.Config.Generation, opts.Dialer))

	return Report{Checks: checks}
}

func needsCredential(cfg config.Config) bool {
	return cfg.Generation.Backend == config.BackendGemini ||
		cfg.Generation.Backend == config.BackendOpenAI ||
		cfg.Detection.Mode == config.DetectionSegmenter
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkCredential reports where the key resolves from without printing it.
func checkCredential(ctx context.Context, keys KeyLookup) Check {
	if keys == nil {
		return Check{Name: "credential", Pass: false, Message: "no credential lookup configured"}
	}
	_, source, err := keys.Lookup(ctx)
	switch {
	case errors.Is(err, credential.ErrNotFound):
		return Check{Name: "credential", Pass: false, Message: "no API key found; replies will use the fallback table (run `parley key set`)"}
	case err != nil:
		return Check{Name: "credential", Pass: false, Message: err.Error()}
	default:
		return Check{Name: "credential", Pass: true, Message: fmt.Sprintf("API key found (%s)", source)}
	}
}

func checkBackend(ctx context.Context, cfg config.GenerationConfig, dialer func(context.Context, string) (net.Conn, error)) Check {
	switch cfg.Backend {
	case config.BackendGRPC:
		return checkGRPCHealth(ctx, cfg.Endpoint, dialer)
	case config.BackendOpenAI:
		if strings.TrimSpace(cfg.Endpoint) != "" {
			return checkOpenAIEndpoint(ctx, cfg.Endpoint)
		}
	case config.BackendNone:
		return Check{Name: "generation", Pass: true, Message: "disabled; fallback replies only"}
	}
	model := cfg.Model
	if model == "" {
		model = "default model"
	}
	return Check{Name: "generation", Pass: true, Message: fmt.Sprintf("%s backend with %s", cfg.Backend, model)}
}

// checkGRPCHealth asks the reply service's standard health endpoint for SERVING.
func checkGRPCHealth(ctx context.Context, endpoint string, dialer func(context.Context, string) (net.Conn, error)) Check {
	const name = "generation.grpc"
	conn, err := reply.Dial(endpoint, dialer)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	defer func() { _ = conn.Close() }()

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(checkCtx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("health check failed: %v", err)}
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s reports %s", endpoint, resp.GetStatus())}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("serving at %s", endpoint)}
}

// checkOpenAIEndpoint probes {endpoint}/models. Any non-5xx answer proves the server is up;
// a 401 only means the probe carried no key.
func checkOpenAIEndpoint(ctx context.Context, endpoint string) Check {
	const name = "generation.openai"
	base := strings.TrimSpace(endpoint)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	url := strings.TrimRight(base, "/") + "/models"

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 256))

	if resp.StatusCode >= 500 {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", url, resp.StatusCode)}
}
