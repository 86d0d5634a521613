// Package mock provides a deterministic speech engine that renders a quiet
// sine tone sized to the text's spoken length. It backs tests and dry runs.
package mock

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/epub2m4b/tts"
)

const (
	toneHz    = 220.0
	amplitude = 0.1
)

// Config controls the generated audio and simulated behaviour.
type Config struct {
	WordsPerMinute int
	SampleRate     int
	Delay          time.Duration
	FailureRate    float64
	Seed           uint64
}

// ConfigFrom maps the user-facing mock settings onto a Config.
func ConfigFrom(c tts.MockConfig) Config {
	return Config{
		WordsPerMinute: c.WordsPerMinute,
		SampleRate:     c.SampleRate,
		Delay:          c.Delay,
		FailureRate:    c.FailureRate,
	}
}

// Engine implements tts.Engine. It is safe for concurrent use.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	rng     *rand.Rand
	failErr error
	closed  bool

	calls atomic.Int64
}

// New creates a mock engine. Zero values select 150 wpm at 22050 Hz.
func New(cfg Config) *Engine {
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 150
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Synthesize returns mono 16-bit PCM lasting as long as the text would take
// to read aloud at the configured pace, scaled by speed.
func (e *Engine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	e.calls.Add(1)

	words := len(strings.Fields(text))
	if words == 0 {
		return nil, tts.ErrEmptyText
	}
	if speed <= 0 {
		speed = 1
	}

	e.mu.Lock()
	closed, failErr := e.closed, e.failErr
	if failErr == nil && e.cfg.FailureRate > 0 && e.rng.Float64() < e.cfg.FailureRate {
		failErr = tts.NewTTSError(tts.ErrGenerationFailed, "mock", "synthesize").
			WithContext("words", words)
	}
	e.mu.Unlock()

	if closed {
		return nil, tts.ErrEngineClosed
	}

	if e.cfg.Delay > 0 {
		select {
		case <-time.After(e.cfg.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", tts.ErrCanceled, ctx.Err())
		}
	}
	if failErr != nil {
		return nil, failErr
	}

	seconds := float64(words) * 60.0 / float64(e.cfg.WordsPerMinute) / speed
	return Tone(e.cfg.SampleRate, time.Duration(seconds*float64(time.Second))), nil
}

// Tone renders d of a low-amplitude sine wave as 16-bit little-endian PCM.
func Tone(sampleRate int, d time.Duration) []byte {
	n := int(d.Seconds() * float64(sampleRate))
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*toneHz*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm
}

// GetInfo returns static engine information.
func (e *Engine) GetInfo() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        "mock",
		Version:     "1.0",
		SampleRate:  e.cfg.SampleRate,
		Channels:    1,
		BitDepth:    16,
		MaxTextSize: 0,
		Variant:     fmt.Sprintf("wpm=%d", e.cfg.WordsPerMinute),
	}
}

// Validate always succeeds.
func (e *Engine) Validate() error { return nil }

// Close marks the engine closed. Further synthesis fails.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// SetFailure makes every following call fail with err. A nil err restores
// normal operation.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failErr = err
}

// Calls returns the number of Synthesize calls so far.
func (e *Engine) Calls() int {
	return int(e.calls.Load())
}
