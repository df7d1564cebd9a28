package transcript

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rbright/parley/internal/voice"
)

// ExampleQueries are the utterances the simulated source picks from.
var ExampleQueries = []string{
	"What's the weather like today?",
	"Tell me about the latest technology news",
	"How does artificial intelligence work?",
	"What are the best restaurants nearby?",
	"Can you explain quantum computing?",
	"What's your favorite movie?",
}

const (
	DefaultSimulatedMin = 2 * time.Second
	DefaultSimulatedMax = 5 * time.Second
)

// Simulated stands in for recognition: after a random delay in [Min, Max) it
// reports one of Queries as the utterance.
type Simulated struct {
	Min     time.Duration
	Max     time.Duration
	Queries []string
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int64) int64
}

// Detect drains frames while waiting so the capture never backs up.
func (s Simulated) Detect(ctx context.Context, frames <-chan voice.Frame) (string, error) {
	queries := s.Queries
	if len(queries) == 0 {
		queries = ExampleQueries
	}

	timer := time.NewTimer(s.delay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case _, ok := <-frames:
			if !ok {
				return "", voice.ErrCaptureClosed
			}
		case <-timer.C:
			return queries[s.intn(int64(len(queries)))], nil
		}
	}
}

func (s Simulated) delay() time.Duration {
	lo, hi := s.Min, s.Max
	if lo <= 0 && hi <= 0 {
		lo, hi = DefaultSimulatedMin, DefaultSimulatedMax
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.intn(int64(hi-lo)))
}

func (s Simulated) intn(n int64) int64 {
	if s.Intn != nil {
		return s.Intn(n)
	}
	return rand.Int64N(n)
}
