// Package tts defines the text-to-speech engine contract shared by the
// conversion pipeline, along with its configuration and error types.
package tts

import (
	"context"
	"fmt"
	"time"
)

// Engine converts text into raw PCM audio.
//
// Audio returned by Synthesize is signed 16-bit little-endian PCM with the
// sample rate and channel count reported by GetInfo.
type Engine interface {
	// Synthesize converts text to audio. Speed is a multiplier where 1.0 is
	// the model's natural pace.
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)

	// GetInfo returns static information about the engine.
	GetInfo() EngineInfo

	// Validate checks that the engine can run in the current environment.
	Validate() error

	// Close releases engine resources.
	Close() error
}

// EngineInfo describes an engine and the audio it produces.
type EngineInfo struct {
	Name        string
	Version     string
	SampleRate  int
	Channels    int
	BitDepth    int
	MaxTextSize int // in code points, 0 means unlimited
	IsOnline    bool

	// Variant lists the settings that change the produced audio, such as
	// the model file and speaker.
	Variant string
}

// Fingerprint identifies the audio an engine produces. Two engines with
// the same fingerprint return the same PCM for the same text and speed.
func (i EngineInfo) Fingerprint() string {
	return fmt.Sprintf("%s/%s %s %dHz %dch %dbit", i.Name, i.Version, i.Variant, i.SampleRate, i.Channels, i.BitDepth)
}

// BytesPerSecond returns the PCM byte rate for the engine's output format.
func (i EngineInfo) BytesPerSecond() int {
	channels := i.Channels
	if channels <= 0 {
		channels = 1
	}
	depth := i.BitDepth
	if depth <= 0 {
		depth = 16
	}
	return i.SampleRate * channels * depth / 8
}

// AudioDuration returns the play time of pcm in the engine's output format.
func (i EngineInfo) AudioDuration(pcm []byte) time.Duration {
	bps := i.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(int64(len(pcm)) * int64(time.Second) / int64(bps))
}
