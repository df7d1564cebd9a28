package reply

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/parley/internal/transcript"
)

func TestFallbackCoversEveryExampleQuery(t *testing.T) {
	for _, query := range transcript.ExampleQueries {
		got := Fallback(query)
		require.NotEqual(t, DefaultFallback, got, query)
	}
}

func TestFallbackExactMatchOnly(t *testing.T) {
	require.Equal(t,
		"As an AI, I don't watch movies or have personal preferences. But I'd be happy to discuss popular films or recommend something based on genres you enjoy!",
		Fallback(" What's your favorite movie? "),
	)
	require.Equal(t, DefaultFallback, Fallback("what's your favorite movie?"))
	require.Equal(t, DefaultFallback, Fallback(""))
}
