package credential

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvVar names the environment variable consulted first.
const DefaultEnvVar = "GEMINI_API_KEY"

// Source names where a credential was found.
type Source string

const (
	SourceEnv    Source = "env"
	SourceDotenv Source = "dotenv"
	SourceStore  Source = "store"
)

// Resolver looks up the credential in the environment, then a dotenv file,
// then the badger store. Each lookup happens at call time, so a key set while
// a conversation is running is picked up on the next turn.
type Resolver struct {
	EnvVar     string
	DotenvPath string
	// OpenStore opens the credential store; nil skips it.
	OpenStore func() (*Store, error)
}

// Resolve returns the first non-empty credential or ErrNotFound.
func (r Resolver) Resolve(ctx context.Context) (string, error) {
	key, _, err := r.Lookup(ctx)
	return key, err
}

// Lookup is Resolve plus the source the credential came from.
func (r Resolver) Lookup(ctx context.Context) (string, Source, error) {
	envVar := r.EnvVar
	if envVar == "" {
		envVar = DefaultEnvVar
	}
	if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
		return key, SourceEnv, nil
	}

	if path := strings.TrimSpace(r.DotenvPath); path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			if key := strings.TrimSpace(values[envVar]); key != "" {
				return key, SourceDotenv, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return "", "", fmt.Errorf("read dotenv %s: %w", path, err)
		}
	}

	if r.OpenStore == nil {
		return "", "", ErrNotFound
	}
	store, err := r.OpenStore()
	if err != nil {
		return "", "", err
	}
	defer func() { _ = store.Close() }()

	key, err := store.Get(ctx)
	if err != nil {
		return "", "", err
	}
	return key, SourceStore, nil
}
