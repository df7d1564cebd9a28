package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		segments []string
		want     string
	}{
		{name: "collapses whitespace", segments: []string{" hello", "world.", "\nfrom", "parley"}, want: "Hello world. From parley"},
		{name: "empty", segments: nil, want: ""},
		{name: "whitespace only", segments: []string{"  ", "\n\t"}, want: ""},
		{name: "pronoun", segments: []string{"i think i'm ready and i’ll go"}, want: "I think I'm ready and I’ll go"},
		{name: "questions", segments: []string{"what time is it? tell me!  now"}, want: "What time is it? Tell me! Now"},
		{name: "decimal stays", segments: []string{"version 3.5 works"}, want: "Version 3.5 works"},
		{name: "leading digit", segments: []string{"42 is the answer"}, want: "42 is the answer"},
		{name: "words containing i", segments: []string{"wifi in hi-fi"}, want: "Wifi in hi-fi"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Normalize(tc.segments...))
		})
	}
}
