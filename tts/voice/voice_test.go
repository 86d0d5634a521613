package voice

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup map[string]Resource

func (f fakeLookup) Resolve(id string) (Resource, error) {
	if r, ok := f[id]; ok {
		return r, nil
	}
	return Resource{}, fmt.Errorf("%w: %s", tts.ErrVoiceNotFound, id)
}

func (f fakeLookup) Names() []string {
	names := make([]string, 0, len(f))
	for k := range f {
		names = append(names, k)
	}
	return names
}

func newLookup() fakeLookup {
	return fakeLookup{
		"en_US-lessac-medium": {ID: "en_US-lessac-medium", Model: "/v/en_US-lessac-medium.onnx"},
		"en_US-amy-medium":    {ID: "en_US-amy-medium", Model: "/v/en_US-amy-medium.onnx"},
		"en_GB-alba-medium":   {ID: "en_GB-alba-medium", Model: "/v/en_GB-alba-medium.onnx"},
	}
}

func TestParseFormula(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Component
		wantErr bool
	}{
		{
			name:  "even blend",
			input: "af_sarah*0.5+am_adam*0.5",
			want:  []Component{{ID: "af_sarah", Weight: 0.5}, {ID: "am_adam", Weight: 0.5}},
		},
		{
			name:  "weights normalized",
			input: "a*3 + b*1",
			want:  []Component{{ID: "a", Weight: 0.75}, {ID: "b", Weight: 0.25}},
		},
		{
			name:  "default weight",
			input: "a+b",
			want:  []Component{{ID: "a", Weight: 0.5}, {ID: "b", Weight: 0.5}},
		},
		{name: "empty term", input: "a*0.5+", wantErr: true},
		{name: "missing voice", input: "*0.5+b", wantErr: true},
		{name: "bad weight", input: "a*x+b", wantErr: true},
		{name: "negative weight", input: "a*-1+b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormula(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormula)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.Equal(t, tt.want[i].ID, got[i].ID)
				assert.InDelta(t, tt.want[i].Weight, got[i].Weight, 1e-9)
			}
		})
	}
}

func TestDominant(t *testing.T) {
	assert.Equal(t, "b", Dominant([]Component{{"a", 0.3}, {"b", 0.7}}).ID)
	assert.Equal(t, "a", Dominant([]Component{{"a", 0.5}, {"b", 0.5}}).ID)
}

func TestRegistryResolve(t *testing.T) {
	custom := map[string]Resource{
		"Narrator": {Model: "/custom/narrator.onnx", Speaker: 3},
	}
	var buf bytes.Buffer
	r := NewRegistry(newLookup(), custom, log.New(&buf))

	tests := []struct {
		name      string
		id        string
		wantModel string
	}{
		{name: "custom alias", id: "narrator", wantModel: "/custom/narrator.onnx"},
		{name: "custom alias any case", id: " NARRATOR ", wantModel: "/custom/narrator.onnx"},
		{name: "delegated", id: "en_US-amy-medium", wantModel: "/v/en_US-amy-medium.onnx"},
		{name: "blend uses dominant", id: "en_US-amy-medium*0.3+en_GB-alba-medium*0.7", wantModel: "/v/en_GB-alba-medium.onnx"},
		{name: "blend of alias", id: "narrator*1", wantModel: "/custom/narrator.onnx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, res.Model)
		})
	}

	assert.Contains(t, buf.String(), "Voice blends are not supported")

	res, err := r.Resolve("narrator")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Speaker)
	assert.Equal(t, "narrator", res.ID)
}

func TestRegistryNotFound(t *testing.T) {
	r := NewRegistry(newLookup(), nil, nil)

	_, err := r.Resolve("lessac")
	require.ErrorIs(t, err, tts.ErrVoiceNotFound)
	assert.Contains(t, err.Error(), "did you mean en_US-lessac-medium")

	_, err = r.Resolve("zzzzqqq")
	require.ErrorIs(t, err, tts.ErrVoiceNotFound)
	assert.NotContains(t, err.Error(), "did you mean")

	_, err = r.Resolve("a*oops")
	assert.ErrorIs(t, err, ErrInvalidFormula)
}

func TestRegistryWithoutBase(t *testing.T) {
	r := NewRegistry(nil, map[string]Resource{"solo": {Model: "/m.onnx"}}, nil)

	_, err := r.Resolve("solo")
	assert.NoError(t, err)

	_, err = r.Resolve("other")
	assert.ErrorIs(t, err, tts.ErrVoiceNotFound)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(newLookup(), map[string]Resource{"narrator": {Model: "/m"}, "en_GB-alba-medium": {Model: "/x"}}, nil)
	assert.Equal(t, []string{"en_GB-alba-medium", "en_US-amy-medium", "en_US-lessac-medium", "en_gb-alba-medium", "narrator"}, r.Names())
}

func TestSuggest(t *testing.T) {
	names := []string{"en_US-lessac-medium", "en_US-amy-medium", "en_GB-alba-medium"}

	assert.Equal(t, []string{"en_US-amy-medium"}, Suggest("amy", names, 3))
	assert.Len(t, Suggest("en", names, 2), 2)
	assert.Empty(t, Suggest("xyz", names, 3))
}
