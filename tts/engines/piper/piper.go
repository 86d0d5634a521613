// Package piper runs the Piper neural speech synthesizer, one fresh process
// per chunk, with the text preset on stdin and raw PCM read from stdout.
package piper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/subprocess"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/tts/voice"
)

const (
	// MaxTextSize is the longest input accepted per call, in code points.
	MaxTextSize = 5000

	// DefaultSampleRate applies when the model config does not say.
	DefaultSampleRate = 22050
)

// Options configures an Engine.
type Options struct {
	Binary     string
	Voice      voice.Resource
	NoiseScale float64
	NoiseW     float64
	CUDA       bool
	Timeout    time.Duration
	Runner     subprocess.Runner
	Logger     *log.Logger
}

// OptionsFrom builds Options from user settings and a resolved voice.
func OptionsFrom(c tts.PiperConfig, v voice.Resource, cuda bool) Options {
	return Options{
		Binary:     c.Binary,
		Voice:      v,
		NoiseScale: c.NoiseScale,
		NoiseW:     c.NoiseW,
		CUDA:       cuda,
		Timeout:    c.Timeout,
	}
}

// WantCUDA decides whether to pass --cuda given the use_cuda setting and
// the detected device name.
func WantCUDA(mode, device string) bool {
	switch strings.ToLower(mode) {
	case "true":
		return true
	case "false":
		return false
	default:
		return device == "cuda"
	}
}

// Engine implements tts.Engine. It is safe for concurrent use; every call
// spawns its own process.
type Engine struct {
	opts       Options
	sampleRate int
	closed     atomic.Bool
}

// New creates an Engine. The model's sample rate is read from its JSON
// config, which defaults to the model path plus ".json".
func New(opts Options) (*Engine, error) {
	if opts.Voice.Model == "" {
		return nil, fmt.Errorf("%w: piper model", tts.ErrMissingConfig)
	}
	if opts.Binary == "" {
		opts.Binary = "piper"
	}
	if opts.Voice.Config == "" {
		opts.Voice.Config = opts.Voice.Model + ".json"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Runner == nil {
		opts.Runner = subprocess.New(opts.Timeout, opts.Logger)
	}

	e := &Engine{opts: opts, sampleRate: DefaultSampleRate}

	mc, err := ReadModelConfig(opts.Voice.Config)
	if err != nil {
		opts.Logger.Debug("Using default sample rate", "config", opts.Voice.Config, "err", err)
	} else if mc.Audio.SampleRate > 0 {
		e.sampleRate = mc.Audio.SampleRate
	}

	return e, nil
}

// Args returns the piper argument vector for the given speed.
func (e *Engine) Args(speed float64) []string {
	if speed <= 0 {
		speed = 1
	}
	args := []string{
		"--model", e.opts.Voice.Model,
		"--config", e.opts.Voice.Config,
		"--output-raw",
		"--length-scale", strconv.FormatFloat(1/speed, 'f', 3, 64),
	}
	if e.opts.Voice.Speaker > 0 {
		args = append(args, "--speaker", strconv.Itoa(e.opts.Voice.Speaker))
	}
	if e.opts.NoiseScale > 0 {
		args = append(args, "--noise-scale", strconv.FormatFloat(e.opts.NoiseScale, 'f', 3, 64))
	}
	if e.opts.NoiseW > 0 {
		args = append(args, "--noise-w", strconv.FormatFloat(e.opts.NoiseW, 'f', 3, 64))
	}
	if e.opts.CUDA {
		args = append(args, "--cuda")
	}
	return args
}

// Synthesize runs piper on text and returns 16-bit mono PCM.
func (e *Engine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	if e.closed.Load() {
		return nil, tts.ErrEngineClosed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	if n := utf8.RuneCountInString(text); n > MaxTextSize {
		return nil, tts.NewTTSError(tts.ErrTextTooLong, "piper", "synthesize").
			WithContext("length", n).
			WithContext("max", MaxTextSize)
	}

	pcm, err := e.opts.Runner.Run(ctx, subprocess.Request{
		Name:  e.opts.Binary,
		Args:  e.Args(speed),
		Input: []byte(text + "\n"),
	})
	if err != nil {
		return nil, tts.NewTTSError(fmt.Errorf("%w: %w", tts.ErrGenerationFailed, err), "piper", "synthesize").
			WithContext("voice", e.opts.Voice.ID)
	}
	if len(pcm) == 0 {
		return nil, tts.NewTTSError(fmt.Errorf("%w: no audio output", tts.ErrGenerationFailed), "piper", "synthesize")
	}

	// A trailing odd byte cannot form a sample.
	return pcm[:len(pcm)&^1], nil
}

// GetInfo returns engine information.
func (e *Engine) GetInfo() tts.EngineInfo {
	return tts.EngineInfo{
		Name:        "piper",
		Version:     "1",
		SampleRate:  e.sampleRate,
		Channels:    1,
		BitDepth:    16,
		MaxTextSize: MaxTextSize,
		Variant: fmt.Sprintf("model=%s config=%s speaker=%d noise=%g noise_w=%g",
			e.opts.Voice.Model, e.opts.Voice.Config, e.opts.Voice.Speaker, e.opts.NoiseScale, e.opts.NoiseW),
	}
}

// Validate checks the binary is on PATH and the model file exists.
func (e *Engine) Validate() error {
	if _, err := subprocess.LookPath(e.opts.Binary); err != nil {
		return err
	}
	if !fileExists(e.opts.Voice.Model) {
		return fmt.Errorf("%w: model %s does not exist", tts.ErrVoiceNotFound, e.opts.Voice.Model)
	}
	return nil
}

// Close marks the engine closed.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}
