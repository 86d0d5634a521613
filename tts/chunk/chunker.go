// Package chunk turns chapter text into bounded-length, sentence-respecting
// chunks, each small enough for one speech synthesis request.
package chunk

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/tts/sentence"
)

// DefaultMaxChars is the default upper bound on a chunk's length.
const DefaultMaxChars = 400

// Segmenter splits normalized text into sentence units.
type Segmenter interface {
	Segment(text string) []string
}

// Chunker composes normalization, segmentation and assembly.
type Chunker struct {
	normalizer *Normalizer
	segmenter  Segmenter
	maxChars   int
	logger     *log.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxChars sets the chunk bound.
func WithMaxChars(n int) Option {
	return func(c *Chunker) { c.maxChars = n }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *Normalizer) Option {
	return func(c *Chunker) { c.normalizer = n }
}

// WithLogger sets the logger used for oversized chunk warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Chunker) { c.logger = l }
}

// New creates a Chunker. It fails when the configured bound is not positive.
func New(seg Segmenter, opts ...Option) (*Chunker, error) {
	c := &Chunker{
		normalizer: NewNormalizer(defaultReplacements),
		segmenter:  seg,
		maxChars:   DefaultMaxChars,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxChars <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxChars, c.maxChars)
	}
	return c, nil
}

// MaxChars returns the chunk bound.
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// Process normalizes, segments and assembles text into chunks.
func (c *Chunker) Process(text string) []string {
	normalized := c.normalizer.Normalize(text)
	if normalized == "" {
		return nil
	}

	// The bound was validated in New.
	chunks, _ := Assemble(c.segmenter.Segment(normalized), c.maxChars)

	for _, i := range Oversized(chunks, c.maxChars) {
		c.logger.Warn("Chunk exceeds limit, a single word is longer than max chars",
			"chunk", i, "length", utf8.RuneCountInString(chunks[i]), "max", c.maxChars)
	}

	return chunks
}

var defaultSegmenter = sync.OnceValue(func() Segmenter {
	seg, err := sentence.NewSegmenter(sentence.Options{Mode: sentence.ModeAuto})
	if err != nil {
		// ModeAuto only fails on an unknown mode.
		return segmenterFunc(sentence.SplitPeriods)
	}
	return seg
})

// DefaultSegmenter returns the shared auto-mode segmenter.
func DefaultSegmenter() Segmenter {
	return defaultSegmenter()
}

type segmenterFunc func(string) []string

func (f segmenterFunc) Segment(text string) []string { return f(text) }

// Process chunks chapter text with the default normalizer and segmenter.
func Process(text string, maxChars int) ([]string, error) {
	c, err := New(defaultSegmenter(), WithMaxChars(maxChars))
	if err != nil {
		return nil, err
	}
	return c.Process(text), nil
}
