package sentence

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrModelUnavailable is returned when a sentence boundary model cannot be
// loaded from its resource.
var ErrModelUnavailable = errors.New("sentence model unavailable")

//go:embed models/english.yaml
var englishModel []byte

const (
	defaultClosing = "\"')]}”’»"
	defaultOpening = "\"'([{“‘«"
)

// Model holds the language resources used by the linguistic sentence
// boundary detector.
type Model struct {
	Name               string   `yaml:"name"`
	Language           string   `yaml:"language"`
	Abbreviations      []string `yaml:"abbreviations"`
	ClosingPunctuation string   `yaml:"closing_punctuation"`
	OpeningPunctuation string   `yaml:"opening_punctuation"`
}

// DefaultModel returns the built-in English model.
func DefaultModel() (*Model, error) {
	return ParseModel(englishModel)
}

// LoadModel loads a model from a YAML file. An empty path selects the
// built-in English model.
func LoadModel(path string) (*Model, error) {
	if path == "" {
		return DefaultModel()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	m, err := ParseModel(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseModel decodes a YAML model.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if len(m.Abbreviations) == 0 {
		return nil, fmt.Errorf("%w: model %q has no abbreviations", ErrModelUnavailable, m.Name)
	}
	if m.ClosingPunctuation == "" {
		m.ClosingPunctuation = defaultClosing
	}
	if m.OpeningPunctuation == "" {
		m.OpeningPunctuation = defaultOpening
	}

	for i, a := range m.Abbreviations {
		m.Abbreviations[i] = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(a)), ".")
	}

	return &m, nil
}
