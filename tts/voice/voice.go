// Package voice resolves user-facing voice identifiers to concrete model
// resources. A Registry layers custom aliases and blend formulas over an
// engine's native lookup without modifying it.
package voice

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/sahilm/fuzzy"
)

// ErrInvalidFormula is returned for malformed blend formulas.
var ErrInvalidFormula = errors.New("invalid voice formula")

// Resource is a resolved voice.
type Resource struct {
	ID      string
	Model   string
	Config  string
	Speaker int
}

// Lookup is an engine's native voice resolver.
type Lookup interface {
	// Resolve returns the resource for id or an error wrapping
	// tts.ErrVoiceNotFound.
	Resolve(id string) (Resource, error)
	// Names lists the identifiers the lookup knows about.
	Names() []string
}

// Component is one weighted term of a blend formula.
type Component struct {
	ID     string
	Weight float64
}

// IsFormula reports whether s looks like a blend formula rather than a
// plain identifier.
func IsFormula(s string) bool {
	return strings.ContainsAny(s, "*+")
}

// ParseFormula parses "a*0.5+b*0.5". Terms without a weight count as 1.0.
// Weights are normalized to sum to 1.
func ParseFormula(s string) ([]Component, error) {
	var (
		comps []Component
		total float64
	)
	for _, term := range strings.Split(s, "+") {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, fmt.Errorf("%w: empty term in %q", ErrInvalidFormula, s)
		}

		id, weightStr, hasWeight := strings.Cut(term, "*")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("%w: missing voice in %q", ErrInvalidFormula, term)
		}

		weight := 1.0
		if hasWeight {
			w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil || w <= 0 {
				return nil, fmt.Errorf("%w: bad weight in %q", ErrInvalidFormula, term)
			}
			weight = w
		}

		comps = append(comps, Component{ID: id, Weight: weight})
		total += weight
	}

	for i := range comps {
		comps[i].Weight /= total
	}
	return comps, nil
}

// Dominant returns the highest-weight component. Ties go to the first.
func Dominant(comps []Component) Component {
	var best Component
	for _, c := range comps {
		if c.Weight > best.Weight {
			best = c
		}
	}
	return best
}

// Registry wraps a Lookup with a fixed set of custom resources.
type Registry struct {
	base   Lookup
	custom map[string]Resource
	logger *log.Logger
}

// NewRegistry creates a Registry. Custom keys are matched case-insensitively.
func NewRegistry(base Lookup, custom map[string]Resource, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	c := make(map[string]Resource, len(custom))
	for k, v := range custom {
		k = strings.ToLower(strings.TrimSpace(k))
		if v.ID == "" {
			v.ID = k
		}
		c[k] = v
	}
	return &Registry{base: base, custom: c, logger: logger}
}

// Resolve returns the resource for id. Custom entries win over the wrapped
// lookup. A blend formula resolves to its dominant component since piper
// models cannot be mixed.
func (r *Registry) Resolve(id string) (Resource, error) {
	id = strings.TrimSpace(id)

	if res, ok := r.custom[strings.ToLower(id)]; ok {
		return res, nil
	}

	if IsFormula(id) {
		comps, err := ParseFormula(id)
		if err != nil {
			return Resource{}, err
		}
		dom := Dominant(comps)
		if len(comps) > 1 {
			r.logger.Warn("Voice blends are not supported, using dominant voice",
				"formula", id, "voice", dom.ID, "weight", fmt.Sprintf("%.2f", dom.Weight))
		}
		return r.Resolve(dom.ID)
	}

	if r.base == nil {
		return Resource{}, r.notFound(id)
	}
	res, err := r.base.Resolve(id)
	if errors.Is(err, tts.ErrVoiceNotFound) {
		return Resource{}, r.notFound(id)
	}
	return res, err
}

func (r *Registry) notFound(id string) error {
	if s := Suggest(id, r.Names(), 3); len(s) > 0 {
		return fmt.Errorf("%w: %q (did you mean %s?)", tts.ErrVoiceNotFound, id, strings.Join(s, ", "))
	}
	return fmt.Errorf("%w: %q", tts.ErrVoiceNotFound, id)
}

// Names lists custom identifiers followed by the wrapped lookup's, sorted
// and deduplicated.
func (r *Registry) Names() []string {
	names := slices.Collect(maps.Keys(r.custom))
	if r.base != nil {
		names = append(names, r.base.Names()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Suggest returns up to n names that fuzzily match id, best first.
func Suggest(id string, names []string, n int) []string {
	matches := fuzzy.Find(strings.ToLower(id), names)
	out := make([]string, 0, min(n, len(matches)))
	for _, m := range matches {
		if len(out) == n {
			break
		}
		out = append(out, m.Str)
	}
	return out
}
