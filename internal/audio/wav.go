package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// ErrNoAudio is returned when there is nothing to write.
var ErrNoAudio = errors.New("no audio segments")

// Format returns the beep format for 16-bit mono PCM at sampleRate.
func Format(sampleRate int) beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
}

// Silence returns d of 16-bit mono silence.
func Silence(sampleRate int, d time.Duration) []byte {
	return make([]byte, beep.SampleRate(sampleRate).N(d)*2)
}

// pcmStreamer streams 16-bit little-endian mono PCM as beep samples.
type pcmStreamer struct {
	data []byte
	pos  int
}

func newPCMStreamer(pcm []byte) *pcmStreamer {
	return &pcmStreamer{data: pcm[:len(pcm)&^1]}
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) && s.pos < len(s.data) {
		v := float64(int16(binary.LittleEndian.Uint16(s.data[s.pos:]))) / (math.MaxInt16 + 1)
		samples[n][0], samples[n][1] = v, v
		s.pos += 2
		n++
	}
	return n, n > 0
}

func (s *pcmStreamer) Err() error { return nil }

func (s *pcmStreamer) Len() int { return len(s.data) / 2 }

// WriteWAV concatenates PCM segments into a WAV file at path, inserting gap
// of silence between consecutive segments. It returns the file's duration.
// The file is written to a temporary name and renamed into place.
func WriteWAV(path string, sampleRate int, segments [][]byte, gap time.Duration) (time.Duration, error) {
	if len(segments) == 0 {
		return 0, ErrNoAudio
	}
	if sampleRate <= 0 {
		return 0, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	format := Format(sampleRate)
	gapSamples := 0
	if gap > 0 {
		gapSamples = format.SampleRate.N(gap)
	}

	var (
		parts []beep.Streamer
		total int
	)
	for i, seg := range segments {
		if i > 0 && gapSamples > 0 {
			parts = append(parts, beep.Silence(gapSamples))
			total += gapSamples
		}
		s := newPCMStreamer(seg)
		parts = append(parts, s)
		total += s.Len()
	}
	if total == 0 {
		return 0, ErrNoAudio
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wav-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := wav.Encode(tmp, beep.Seq(parts...), format); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("encode wav: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close wav: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename wav: %w", err)
	}

	return format.SampleRate.D(total), nil
}

// Duration reads the WAV header at path and returns the file's play time.
func Duration(path string) (time.Duration, error) {
	frames, format, err := Frames(path)
	if err != nil {
		return 0, err
	}
	return format.SampleRate.D(frames), nil
}

// Frames returns the number of sample frames in the WAV file at path.
func Frames(path string) (int, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, beep.Format{}, err
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return 0, beep.Format{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	defer streamer.Close()

	return streamer.Len(), format, nil
}
