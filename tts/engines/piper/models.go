package piper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/tts/voice"
)

// ModelConfig is the subset of a piper model's JSON config we read.
type ModelConfig struct {
	Audio struct {
		SampleRate int    `json:"sample_rate"`
		Quality    string `json:"quality"`
	} `json:"audio"`
	NumSpeakers int `json:"num_speakers"`
	Language    struct {
		Code string `json:"code"`
	} `json:"language"`
}

// ReadModelConfig parses a model config file.
func ReadModelConfig(path string) (ModelConfig, error) {
	var mc ModelConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return mc, err
	}
	if err := json.Unmarshal(data, &mc); err != nil {
		return mc, fmt.Errorf("parse %s: %w", path, err)
	}
	return mc, nil
}

// ModelDir resolves voices to .onnx files. An id is either a path to a
// model file or a model name found in one of Dirs.
type ModelDir struct {
	Dirs []string
}

var _ voice.Lookup = ModelDir{}

// Resolve implements voice.Lookup.
func (m ModelDir) Resolve(id string) (voice.Resource, error) {
	if id == "" {
		return voice.Resource{}, fmt.Errorf("%w: empty voice", tts.ErrVoiceNotFound)
	}
	if strings.HasSuffix(id, ".onnx") && fileExists(id) {
		return voice.Resource{ID: modelName(id), Model: id, Config: id + ".json"}, nil
	}
	for _, dir := range m.Dirs {
		p := filepath.Join(dir, id+".onnx")
		if fileExists(p) {
			return voice.Resource{ID: id, Model: p, Config: p + ".json"}, nil
		}
	}
	return voice.Resource{}, fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, id)
}

// Names implements voice.Lookup.
func (m ModelDir) Names() []string {
	var names []string
	for _, dir := range m.Dirs {
		matches, _ := filepath.Glob(filepath.Join(dir, "*.onnx"))
		for _, p := range matches {
			names = append(names, modelName(p))
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func modelName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".onnx")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
