package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrEmptyAudio is returned when Play is given no samples.
var ErrEmptyAudio = errors.New("audio data is empty")

// stream is the subset of *oto.Player the Player drives.
type stream interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// Player plays 16-bit mono PCM through the default output device.
type Player struct {
	newStream  func(r io.Reader) stream
	sampleRate int
	poll       time.Duration

	mu     sync.Mutex
	volume float64
}

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

// NewPlayer opens the audio device at sampleRate. The device can only be
// opened once per process, so later calls must use the same rate.
func NewPlayer(sampleRate int) (*Player, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		}
		var ready chan struct{}
		otoCtx, ready, otoErr = oto.NewContext(op)
		if otoErr == nil {
			<-ready
			otoRate = sampleRate
		}
	})
	if otoErr != nil {
		return nil, fmt.Errorf("open audio device: %w", otoErr)
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("audio device already opened at %d Hz", otoRate)
	}

	return newPlayer(sampleRate, func(r io.Reader) stream {
		return otoCtx.NewPlayer(r)
	}), nil
}

func newPlayer(sampleRate int, fn func(io.Reader) stream) *Player {
	return &Player{
		newStream:  fn,
		sampleRate: sampleRate,
		poll:       20 * time.Millisecond,
		volume:     1,
	}
}

// SampleRate returns the device rate.
func (p *Player) SampleRate() int {
	return p.sampleRate
}

// SetVolume sets the playback volume for subsequent calls to Play.
func (p *Player) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %g", v)
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	return nil
}

// Play blocks until pcm has finished playing or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) < 2 {
		return ErrEmptyAudio
	}

	// The device reads from the buffer asynchronously, so it gets its own copy.
	data := bytes.Clone(pcm[:len(pcm)&^1])

	p.mu.Lock()
	volume := p.volume
	p.mu.Unlock()

	s := p.newStream(bytes.NewReader(data))
	s.SetVolume(volume)
	s.Play()

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Pause()
			_ = s.Close()
			return ctx.Err()
		case <-ticker.C:
			if !s.IsPlaying() {
				return s.Close()
			}
		}
	}
}
