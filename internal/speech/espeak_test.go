package speech

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func wavBytes(t *testing.T, channels int, samples []int16, declared int) []byte {
	t.Helper()
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	if declared < 0 {
		declared = len(data)
	}
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], 22050)
	binary.LittleEndian.PutUint32(header[28:32], uint32(22050*channels*2))
	binary.LittleEndian.PutUint16(header[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(declared))
	return append(header, data...)
}

func TestDecodeWAVMono(t *testing.T) {
	audio, err := DecodeWAV(wavBytes(t, 1, []int16{100, -200, 300}, -1))
	require.NoError(t, err)
	require.Equal(t, 22050, audio.SampleRate)
	require.Equal(t, []int16{100, -200, 300}, audio.Samples)
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	audio, err := DecodeWAV(wavBytes(t, 2, []int16{100, 300, -50, -150}, -1))
	require.NoError(t, err)
	require.Equal(t, []int16{200, -100}, audio.Samples)
}

func TestDecodeWAVStreamedLength(t *testing.T) {
	// espeak-ng writes 0x7fffffff as the data size when streaming to stdout.
	audio, err := DecodeWAV(wavBytes(t, 1, []int16{1, 2, 3, 4}, 0x7fffffff))
	require.NoError(t, err)
	require.Len(t, audio.Samples, 4)
}

func TestDecodeWAVRejectsInvalid(t *testing.T) {
	_, err := DecodeWAV([]byte("not audio at all"))
	require.Error(t, err)

	_, err = DecodeWAV(wavBytes(t, 1, nil, -1))
	require.ErrorIs(t, err, ErrNoAudio)
}

func TestParseVoices(t *testing.T) {
	out := []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 5  en-gb           --/M      English_(Great_Britain) gmw/en
 2  en-us           --/F      English_(America)  gmw/en-US
`)
	voices := parseVoices(out)
	require.Equal(t, []Voice{
		{Name: "Afrikaans", Language: "af", Gender: "M"},
		{Name: "English (Great Britain)", Language: "en-gb", Gender: "M"},
		{Name: "English (America)", Language: "en-us", Gender: "F"},
	}, voices)
}

func TestEspeakArgs(t *testing.T) {
	e := Espeak{RateWPM: 160, Volume: 1.5, Pitch: 3}
	require.Equal(t,
		[]string{"--stdout", "--stdin", "-v", "en-us", "-s", "160", "-a", "150", "-p", "99"},
		e.args("en-us"),
	)
	require.Equal(t, []string{"--stdout", "--stdin"}, Espeak{}.args(""))
	require.Equal(t, []string{"--punct", "--stdout", "--stdin"}, Espeak{Args: []string{"--punct"}}.args(""))
}

func TestEspeakSynthesizeRunsBinary(t *testing.T) {
	dir := t.TempDir()
	wavPath := filepath.Join(dir, "out.wav")
	require.NoError(t, os.WriteFile(wavPath, wavBytes(t, 1, []int16{7, 8, 9}, -1), 0o600))

	script := filepath.Join(dir, "fake-espeak")
	body := "#!/bin/sh\n" +
		"if [ \"$1\" = \"--voices\" ]; then\n" +
		"  echo 'Pty Language Age/Gender VoiceName File'\n" +
		"  echo ' 5  en-us --/F Samantha gmw/en-US'\n" +
		"  exit 0\n" +
		"fi\n" +
		"cat >/dev/null\n" +
		"cat '" + wavPath + "'\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o700))

	e := Espeak{Binary: script}
	voices, err := e.Voices(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Voice{{Name: "Samantha", Language: "en-us", Gender: "F"}}, voices)

	audio, err := e.Synthesize(context.Background(), "hello", "Samantha")
	require.NoError(t, err)
	require.Equal(t, []int16{7, 8, 9}, audio.Samples)
}

func TestEspeakSynthesizeSurfacesStderr(t *testing.T) {
	script := filepath.Join(t.TempDir(), "broken-espeak")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho 'voice not found' >&2\nexit 1\n"), 0o700))

	_, err := Espeak{Binary: script}.Synthesize(context.Background(), "hello", "nope")
	require.ErrorContains(t, err, "voice not found")
}
