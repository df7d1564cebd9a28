// Package conversation keeps the on-screen exchange and renders it for a terminal.
package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Entry is one message in the exchange. Entries are never mutated once logged.
type Entry struct {
	ID        uuid.UUID
	Speaker   Speaker
	Text      string
	CreatedAt time.Time
}

// Log is an in-memory, append-only list of entries ordered by creation.
type Log struct {
	now func() time.Time

	mu      sync.Mutex
	entries []Entry
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append records text under speaker and returns the new entry.
func (l *Log) Append(speaker Speaker, text string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		ID:        uuid.New(),
		Speaker:   speaker,
		Text:      text,
		CreatedAt: l.clock()(),
	}
	if n := len(l.entries); n > 0 && entry.CreatedAt.Before(l.entries[n-1].CreatedAt) {
		entry.CreatedAt = l.entries[n-1].CreatedAt
	}
	l.entries = append(l.entries, entry)
	return entry
}

// Entries returns a copy of the log in creation order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) clock() func() time.Time {
	if l.now == nil {
		return time.Now
	}
	return l.now
}
