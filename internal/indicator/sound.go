package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/speech"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueComplete
	cueCancel
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	// cueRamp is the fade in and out applied to every tone.
	cueRamp = 5 * time.Millisecond
)

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

// cue pairs the built-in tones with the config field that overrides them.
type cue struct {
	tones []toneSpec
	file  func(config.IndicatorConfig) string
}

var cueTable = map[cueKind]cue{
	cueStart: {
		tones: []toneSpec{{660, 60 * time.Millisecond, 0.16}, {990, 80 * time.Millisecond, 0.16}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStartFile },
	},
	cueStop: {
		tones: []toneSpec{{990, 60 * time.Millisecond, 0.16}, {660, 80 * time.Millisecond, 0.16}},
		file:  func(c config.IndicatorConfig) string { return c.SoundStopFile },
	},
	cueComplete: {
		tones: []toneSpec{{880, 70 * time.Millisecond, 0.12}},
		file:  func(c config.IndicatorConfig) string { return c.SoundCompleteFile },
	},
	cueCancel: {
		tones: []toneSpec{{440, 90 * time.Millisecond, 0.18}, {330, 120 * time.Millisecond, 0.18}},
		file:  func(c config.IndicatorConfig) string { return c.SoundCancelFile },
	},
}

var (
	startCuePCM    = synthesizeCue(cueTable[cueStart].tones)
	stopCuePCM     = synthesizeCue(cueTable[cueStop].tones)
	completeCuePCM = synthesizeCue(cueTable[cueComplete].tones)
	cancelCuePCM   = synthesizeCue(cueTable[cueCancel].tones)
)

// emitCue plays the configured cue file when it decodes, otherwise the
// built-in tone. Decoded files are cached per path. Callers hold soundMu.
func (i *Indicator) emitCue(ctx context.Context, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := cuePath(kind, i.cfg); path != "" {
		audio, err := i.cueFile(path)
		if err == nil {
			return i.player.Play(ctx, audio)
		}
		i.log("indicator cue file unusable; using built-in tone", err)
	}

	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}
	return i.player.Play(ctx, speech.Audio{Samples: samples, SampleRate: cueSampleRate})
}

func (i *Indicator) cueFile(path string) (speech.Audio, error) {
	if audio, ok := i.cueFiles[path]; ok {
		return audio, nil
	}
	audio, err := loadCueFile(path)
	if err != nil {
		return speech.Audio{}, err
	}
	if i.cueFiles == nil {
		i.cueFiles = make(map[string]speech.Audio)
	}
	i.cueFiles[path] = audio
	return audio, nil
}

func cuePath(kind cueKind, cfg config.IndicatorConfig) string {
	c, ok := cueTable[kind]
	if !ok {
		return ""
	}
	return expandUserPath(c.file(cfg))
}

func expandUserPath(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw[1:], "/"))
}

func loadCueFile(path string) (speech.Audio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("read cue file %q: %w", path, err)
	}
	audio, err := speech.DecodeWAV(data)
	if err != nil {
		return speech.Audio{}, fmt.Errorf("decode cue file %q: %w", path, err)
	}
	return audio, nil
}

func cueSamples(kind cueKind) []int16 {
	switch kind {
	case cueStart:
		return startCuePCM
	case cueStop:
		return stopCuePCM
	case cueComplete:
		return completeCuePCM
	case cueCancel:
		return cancelCuePCM
	default:
		return nil
	}
}

// synthesizeCue joins tones with a short silence between them.
func synthesizeCue(tones []toneSpec) []int16 {
	var pcm []int16
	gap := make([]int16, samplesForDuration(cueGap))
	for n, tone := range tones {
		if n > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(tone)...)
	}
	return pcm
}

// synthesizeTone renders a sine with raised-cosine edges so cues do not click.
func synthesizeTone(tone toneSpec) []int16 {
	n := samplesForDuration(tone.duration)
	if n <= 0 || tone.frequencyHz <= 0 || tone.volume <= 0 {
		return nil
	}
	ramp := min(samplesForDuration(cueRamp), n/10)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range pcm {
		edge := min(i, n-1-i)
		gain := 1.0
		if edge < ramp {
			gain = 0.5 - 0.5*math.Cos(math.Pi*float64(edge)/float64(ramp))
		}
		phase := 2 * math.Pi * tone.frequencyHz * float64(i) / cueSampleRate
		pcm[i] = int16(math.Round(math.Sin(phase) * tone.volume * gain * math.MaxInt16))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
