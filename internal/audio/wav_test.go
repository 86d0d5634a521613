package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samples(values ...int16) []byte {
	b := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func TestWriteWAV(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name       string
		segments   [][]byte
		gap        time.Duration
		wantFrames int
	}{
		{
			name:       "single segment",
			segments:   [][]byte{make([]byte, 16000*2)},
			wantFrames: 16000,
		},
		{
			name:       "segments concatenated",
			segments:   [][]byte{make([]byte, 8000*2), make([]byte, 4000*2)},
			wantFrames: 12000,
		},
		{
			name:       "gap between segments only",
			segments:   [][]byte{make([]byte, 1600), make([]byte, 1600), make([]byte, 1600)},
			gap:        100 * time.Millisecond,
			wantFrames: 800*3 + 1600*2,
		},
		{
			name:       "odd trailing byte dropped",
			segments:   [][]byte{make([]byte, 101)},
			wantFrames: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, filepath.Base(t.Name())+".wav")

			d, err := WriteWAV(path, 16000, tt.segments, tt.gap)
			require.NoError(t, err)

			frames, format, err := Frames(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrames, frames)
			assert.Equal(t, 1, format.NumChannels)
			assert.Equal(t, 2, format.Precision)
			assert.Equal(t, 16000, int(format.SampleRate))

			fromFile, err := Duration(path)
			require.NoError(t, err)
			assert.Equal(t, d, fromFile)
		})
	}
}

func TestWriteWAVErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteWAV(filepath.Join(dir, "a.wav"), 22050, nil, 0)
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = WriteWAV(filepath.Join(dir, "b.wav"), 22050, [][]byte{{}, {}}, 0)
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = WriteWAV(filepath.Join(dir, "c.wav"), 0, [][]byte{make([]byte, 10)}, 0)
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no temp files left behind")
}

func TestWriteWAVSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	pcm := samples(0, 16384, -16384, 32767, -32768)

	_, err := WriteWAV(path, 8000, [][]byte{pcm}, 0)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)

	got := data[len(data)-len(pcm):]
	for i := 0; i < len(pcm); i += 2 {
		want := int16(binary.LittleEndian.Uint16(pcm[i:]))
		have := int16(binary.LittleEndian.Uint16(got[i:]))
		assert.InDelta(t, want, have, 1, "sample %d", i/2)
	}
}

func TestSilence(t *testing.T) {
	s := Silence(22050, time.Second)
	assert.Len(t, s, 44100)
	for _, b := range s {
		if b != 0 {
			t.Fatal("silence contains non-zero byte")
		}
	}
}

func TestDurationMissingFile(t *testing.T) {
	_, err := Duration(filepath.Join(t.TempDir(), "nope.wav"))
	assert.Error(t, err)
}
