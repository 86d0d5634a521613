package chunk

import "strings"

// Replacement rewrites one literal symbol into its spoken form.
type Replacement struct {
	Symbol string
	Spoken string
}

var defaultReplacements = []Replacement{
	{Symbol: "&", Spoken: "and"},
	{Symbol: "%", Spoken: "percent"},
	{Symbol: "@", Spoken: "at"},
	{Symbol: "#", Spoken: "hashtag"},
	{Symbol: "$", Spoken: "dollars"},
	{Symbol: "£", Spoken: "pounds"},
	{Symbol: "€", Spoken: "euros"},
	{Symbol: "~", Spoken: ""},
	{Symbol: "_", Spoken: " "},
	{Symbol: "*", Spoken: ""},
}

// DefaultReplacements returns a copy of the built-in symbol table.
func DefaultReplacements() []Replacement {
	return append([]Replacement(nil), defaultReplacements...)
}

// Normalizer rewrites symbols a speech model would mispronounce and
// collapses whitespace. It is safe for concurrent use.
type Normalizer struct {
	replacer *strings.Replacer
	table    []Replacement
}

// NewNormalizer creates a Normalizer owning a private copy of table.
func NewNormalizer(table []Replacement) *Normalizer {
	table = append([]Replacement(nil), table...)

	pairs := make([]string, 0, len(table)*2)
	for _, r := range table {
		pairs = append(pairs, r.Symbol, r.Spoken)
	}

	return &Normalizer{
		replacer: strings.NewReplacer(pairs...),
		table:    table,
	}
}

// Table returns a copy of the replacement table.
func (n *Normalizer) Table() []Replacement {
	return append([]Replacement(nil), n.table...)
}

// Normalize applies the replacement table, then collapses every run of
// whitespace to a single space and trims both ends.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(n.replacer.Replace(text)), " ")
}
