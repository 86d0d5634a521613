package sentence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Strategy identifies how a Segmenter finds sentence boundaries.
type Strategy int

const (
	// StrategyLinguistic uses the rule based detector and its model.
	StrategyLinguistic Strategy = iota
	// StrategyPeriodSplit splits on literal periods only.
	StrategyPeriodSplit
)

// String returns the name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyLinguistic:
		return "linguistic"
	case StrategyPeriodSplit:
		return "period"
	default:
		return "unknown"
	}
}

// Mode selects how the strategy is resolved when a Segmenter is built.
type Mode string

const (
	// ModeAuto uses the linguistic model when it loads and falls back to
	// period splitting otherwise.
	ModeAuto Mode = "auto"
	// ModeModel requires the linguistic model.
	ModeModel Mode = "model"
	// ModePeriod always splits on periods.
	ModePeriod Mode = "period"
)

// ErrUnknownMode is returned for an unrecognized segmenter mode.
var ErrUnknownMode = errors.New("unknown segmenter mode")

// ParseMode parses a mode name. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeModel, ModePeriod:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want auto, model or period)", ErrUnknownMode, s)
	}
}

// Options configures a Segmenter.
type Options struct {
	Mode      Mode
	ModelPath string // empty selects the built-in model
	Logger    *log.Logger
}

// Segmenter splits normalized text into sentence units. The strategy is
// fixed when the Segmenter is created.
type Segmenter struct {
	strategy Strategy
	parser   *Parser
}

// NewSegmenter resolves the segmentation strategy once.
func NewSegmenter(opts Options) (*Segmenter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}

	switch mode {
	case ModePeriod:
		return &Segmenter{strategy: StrategyPeriodSplit}, nil
	case ModeModel, ModeAuto:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	model, err := LoadModel(opts.ModelPath)
	if err != nil {
		if mode == ModeModel {
			return nil, err
		}
		logger.Warn("Sentence model not available, splitting on periods", "path", opts.ModelPath, "err", err)
		return &Segmenter{strategy: StrategyPeriodSplit}, nil
	}

	logger.Debug("Sentence model loaded", "name", model.Name, "abbreviations", len(model.Abbreviations))
	return &Segmenter{strategy: StrategyLinguistic, parser: NewParser(model)}, nil
}

// Strategy returns the strategy selected at construction.
func (s *Segmenter) Strategy() Strategy {
	return s.strategy
}

// Segment returns the sentence units of text in reading order.
func (s *Segmenter) Segment(text string) []string {
	if s.strategy == StrategyLinguistic {
		return s.parser.Split(text)
	}
	return SplitPeriods(text)
}

// SplitPeriods splits text on every period, trims the pieces and appends a
// period to each non-empty one. Abbreviations, decimals and ellipses are
// not recognized.
func SplitPeriods(text string) []string {
	var sentences []string
	for _, piece := range strings.Split(text, ".") {
		if piece = strings.TrimSpace(piece); piece != "" {
			sentences = append(sentences, piece+".")
		}
	}
	return sentences
}
