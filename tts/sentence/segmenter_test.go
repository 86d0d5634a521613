package sentence

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeAuto},
		{in: "auto", want: ModeAuto},
		{in: " Model ", want: ModeModel},
		{in: "period", want: ModePeriod},
		{in: "punkt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSegmenterStrategy(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name     string
		opts     Options
		want     Strategy
		wantErr  error
		warnings bool
	}{
		{name: "auto with built-in model", opts: Options{}, want: StrategyLinguistic},
		{name: "model with built-in model", opts: Options{Mode: ModeModel}, want: StrategyLinguistic},
		{name: "forced period split", opts: Options{Mode: ModePeriod}, want: StrategyPeriodSplit},
		{name: "auto falls back when model is missing", opts: Options{Mode: ModeAuto, ModelPath: missing}, want: StrategyPeriodSplit, warnings: true},
		{name: "model mode fails when model is missing", opts: Options{Mode: ModeModel, ModelPath: missing}, wantErr: ErrModelUnavailable},
		{name: "unknown mode", opts: Options{Mode: "nltk"}, wantErr: ErrUnknownMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.opts.Logger = log.New(&buf)

			seg, err := NewSegmenter(tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, seg.Strategy())
			if tt.warnings {
				assert.Contains(t, buf.String(), "splitting on periods")
			}
		})
	}
}

func TestSegmenterCustomModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: tiny\nabbreviations: [approx]\n"), 0o600))

	seg, err := NewSegmenter(Options{Mode: ModeModel, ModelPath: path, Logger: log.New(&bytes.Buffer{})})
	require.NoError(t, err)

	// "Mr." is not in the custom model, so it now ends a sentence.
	assert.Equal(t,
		[]string{"It is approx. Ten miles.", "Mr.", "Smith agrees."},
		seg.Segment("It is approx. Ten miles. Mr. Smith agrees."),
	)
}

func TestSplitPeriods(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "One. Two. Three.", want: []string{"One.", "Two.", "Three."}},
		{name: "no trailing period", input: "One. Two", want: []string{"One.", "Two."}},
		{name: "decimals are split", input: "Pi is 3.14.", want: []string{"Pi is 3.", "14."}},
		{name: "other punctuation kept inside", input: "Hi! Are you there? Yes.", want: []string{"Hi! Are you there? Yes."}},
		{name: "only periods", input: "...", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPeriods(tt.input))
		})
	}
}

func TestFallbackNonEmptyForTerminatedInput(t *testing.T) {
	seg, err := NewSegmenter(Options{Mode: ModePeriod})
	require.NoError(t, err)

	for _, in := range []string{"a.", "Hello there!", "Is it?", "x y z."} {
		assert.NotEmpty(t, seg.Segment(in), in)
	}
}

func TestLoadModel(t *testing.T) {
	m, err := LoadModel("")
	require.NoError(t, err)
	assert.Equal(t, "english", m.Name)
	assert.Contains(t, m.Abbreviations, "e.g")
	assert.Contains(t, m.ClosingPunctuation, "”")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: [unterminated"), 0o600))
	_, err = LoadModel(bad)
	assert.ErrorIs(t, err, ErrModelUnavailable)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: empty\n"), 0o600))
	_, err = LoadModel(empty)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestParseModelNormalizesAbbreviations(t *testing.T) {
	m, err := ParseModel([]byte("name: x\nabbreviations: [' Mr. ', 'E.G.']\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"mr", "e.g"}, m.Abbreviations)
	assert.NotEmpty(t, m.OpeningPunctuation)
}
