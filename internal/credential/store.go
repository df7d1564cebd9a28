// Package credential stores and resolves the API key used for reply generation.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound indicates no credential is configured anywhere.
var ErrNotFound = errors.New("credential not found")

var generationKey = []byte("credential:generation")

// Options configures the on-disk credential store.
type Options struct {
	// Dir holds the badger data files. Required unless InMemory is set.
	Dir string
	// InMemory keeps data in memory only; used by tests.
	InMemory bool
	Logger   *slog.Logger
}

// Store persists the generation credential in a badger database.
type Store struct {
	db *badger.DB
}

// DefaultDir returns $XDG_DATA_HOME/parley/credentials.
func DefaultDir() (string, error) {
	if data := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); data != "" {
		return filepath.Join(data, "parley", "credentials"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "parley", "credentials"), nil
}

// Open opens or creates the store. Callers must Close it; badger holds a
// directory lock while open.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("credential store dir is required")
	}
	if !opts.InMemory {
		if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credential dir: %w", err)
		}
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger: opts.Logger})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{logger: opts.Logger})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored credential or ErrNotFound.
func (s *Store) Get(_ context.Context) (string, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(generationKey)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return string(val), nil
}

// Set replaces the stored credential.
func (s *Store) Set(_ context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("credential is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(generationKey, []byte(value))
	})
}

// Clear removes the stored credential. Clearing an empty store is not an error.
func (s *Store) Clear(_ context.Context) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(generationKey)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger warnings and errors to slog; info and debug are dropped.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error("badger", "message", strings.TrimSpace(fmt.Sprintf(f, v...)))
	}
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Warn("badger", "message", strings.TrimSpace(fmt.Sprintf(f, v...)))
	}
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
