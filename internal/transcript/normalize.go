// Package transcript produces utterances from microphone frames: a simulated
// stand-in, an energy segmenter with a pluggable recognizer, and text cleanup.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var pronounI = regexp.MustCompile(`\bi\b(['’](?:m|d|ll|ve|re|s)\b)?`)

// Normalize joins recognizer segments into one utterance.
//
// Whitespace is collapsed, each sentence starts with a capital letter, and the
// standalone pronoun "i" (with its contractions) is upper-cased.
func Normalize(segments ...string) string {
	text := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	if text == "" {
		return ""
	}
	text = pronounI.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
	return capitalizeSentenceStarts(text)
}

func capitalizeSentenceStarts(text string) string {
	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		switch {
		case capitalize && unicode.IsLetter(r):
			runes[i] = unicode.ToUpper(r)
			capitalize = false
		case capitalize && unicode.IsDigit(r):
			capitalize = false
		case r == '.' || r == '!' || r == '?':
			// "3.5" and "e.g" keep their case.
			capitalize = i+1 < len(runes) && unicode.IsSpace(runes[i+1])
		}
	}
	return string(runes)
}
