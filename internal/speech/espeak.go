package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

const DefaultEspeakBinary = "espeak-ng"

// Espeak synthesizes through the espeak-ng command line.
type Espeak struct {
	Binary string
	// Args are passed ahead of the synthesis flags.
	Args []string
	// RateWPM is the speaking rate in words per minute (espeak default 175).
	RateWPM int
	// Volume and Pitch are relative to the engine default, where 1.0 is unchanged.
	Volume float64
	Pitch  float64
}

func (e Espeak) binary() string {
	if strings.TrimSpace(e.Binary) == "" {
		return DefaultEspeakBinary
	}
	return e.Binary
}

// Voices lists installed espeak-ng voices.
func (e Espeak) Voices(ctx context.Context) ([]Voice, error) {
	out, err := exec.CommandContext(ctx, e.binary(), "--voices").Output()
	if err != nil {
		return nil, fmt.Errorf("%s --voices: %w", e.binary(), err)
	}
	return parseVoices(out), nil
}

// Synthesize renders text to PCM via espeak-ng --stdout.
func (e Espeak) Synthesize(ctx context.Context, text string, voice string) (Audio, error) {
	cmd := exec.CommandContext(ctx, e.binary(), e.args(voice)...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Audio{}, fmt.Errorf("%s: %w: %s", e.binary(), err, msg)
		}
		return Audio{}, fmt.Errorf("%s: %w", e.binary(), err)
	}
	return DecodeWAV(out)
}

func (e Espeak) args(voice string) []string {
	args := append([]string(nil), e.Args...)
	args = append(args, "--stdout", "--stdin")
	if voice != "" {
		args = append(args, "-v", voice)
	}
	if e.RateWPM > 0 {
		args = append(args, "-s", strconv.Itoa(e.RateWPM))
	}
	if e.Volume > 0 {
		args = append(args, "-a", strconv.Itoa(scaled(e.Volume, 100, 200)))
	}
	if e.Pitch > 0 {
		args = append(args, "-p", strconv.Itoa(scaled(e.Pitch, 50, 99)))
	}
	return args
}

func scaled(factor float64, base int, limit int) int {
	v := int(math.Round(factor * float64(base)))
	return max(0, min(v, limit))
}

// parseVoices reads the `espeak-ng --voices` table:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en
func parseVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		gender := fields[2]
		if i := strings.Index(gender, "/"); i >= 0 {
			gender = gender[i+1:]
		}
		voices = append(voices, Voice{
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
			Gender:   gender,
		})
	}
	return voices
}
