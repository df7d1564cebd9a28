package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// PathEnv overrides the config location when --config is not given.
const PathEnv = "PARLEY_CONFIG"

// ResolvePath picks --config, then $PARLEY_CONFIG, then the XDG or home location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if env := strings.TrimSpace(os.Getenv(PathEnv)); env != "" {
		return env, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "parley", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", "parley", "config.jsonc"), nil
}
