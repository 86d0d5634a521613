// Package sentence provides sentence boundary detection for narrative text.
package sentence

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	numberRegex      = regexp.MustCompile(`\d+`)
	punctuationRegex = regexp.MustCompile(`[,;:\-()]`)
)

// Parser splits plain text into sentences using the rules of a Model.
type Parser struct {
	abbreviations map[string]bool
	closing       map[rune]bool
	opening       map[rune]bool
}

// NewParser creates a parser for the given model.
func NewParser(m *Model) *Parser {
	p := &Parser{
		abbreviations: make(map[string]bool, len(m.Abbreviations)),
		closing:       runeSet(m.ClosingPunctuation),
		opening:       runeSet(m.OpeningPunctuation),
	}
	for _, a := range m.Abbreviations {
		p.abbreviations[a] = true
	}
	return p
}

// Split returns the trimmed, non-empty sentences of text in reading order.
// Every non-space character of text ends up in exactly one sentence.
func (p *Parser) Split(text string) []string {
	runes := []rune(text)
	var sentences []string

	emit := func(start, end int) {
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			sentences = append(sentences, s)
		}
	}

	lastStart := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || !p.isSentenceEnd(runes, i) {
			continue
		}

		end := i + 1
		for end < len(runes) && p.closing[runes[end]] {
			end++
		}
		emit(lastStart, end)

		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		lastStart = end
		i = end - 1
	}

	if lastStart < len(runes) {
		emit(lastStart, len(runes))
	}

	return sentences
}

// isSentenceEnd checks if the terminal punctuation at pos closes a sentence.
func (p *Parser) isSentenceEnd(runes []rune, pos int) bool {
	punct := runes[pos]

	if punct == '.' {
		// part of an ellipsis or a run like "?.."
		if pos+1 < len(runes) && runes[pos+1] == '.' {
			return false
		}

		word := p.wordBefore(runes, pos)
		bare := strings.TrimSuffix(word, ".")
		if p.abbreviations[bare] {
			return false
		}

		// Multi-part abbreviations like "Ph.D." and trailing ellipses.
		if strings.Count(word, ".") > 1 {
			return false
		}

		// Decimal numbers.
		if pos > 0 && pos+1 < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
			return false
		}

		// Initials such as "J. R. R. Tolkien".
		if utf8.RuneCountInString(bare) == 1 && unicode.IsUpper(runes[pos-1]) {
			return false
		}
	}

	next := pos + 1
	for next < len(runes) && p.closing[runes[next]] {
		next++
	}
	if next >= len(runes) {
		return true
	}

	// Must have whitespace after punctuation
	if !unicode.IsSpace(runes[next]) {
		return false
	}
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	for next < len(runes) && p.opening[runes[next]] {
		next++
	}
	if next >= len(runes) {
		return true
	}

	if unicode.IsUpper(runes[next]) {
		return true
	}

	// For exclamation and question marks, be more lenient
	return punct == '!' || punct == '?'
}

// wordBefore returns the lowercased word ending at pos, including the
// punctuation at pos and without leading opening punctuation.
func (p *Parser) wordBefore(runes []rune, pos int) string {
	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	for start < pos && p.opening[runes[start]] {
		start++
	}
	return strings.ToLower(string(runes[start : pos+1]))
}

// EstimateDuration estimates the speaking duration for text.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}

	// Base rate: 150 words per minute, slowed down for complex text.
	adjustedRate := 150.0 * (1.0 - calculateComplexity(text)*0.2)

	seconds := float64(words) * 60.0 / adjustedRate
	return time.Duration(seconds * float64(time.Second))
}

// calculateComplexity estimates text complexity for duration adjustment.
func calculateComplexity(text string) float64 {
	complexity := 0.0

	// Numbers are slower to read
	complexity += float64(len(numberRegex.FindAllString(text, -1))) * 0.02

	// Punctuation requires pauses
	complexity += float64(len(punctuationRegex.FindAllString(text, -1))) * 0.01

	words := strings.Fields(text)
	longWords := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) > 10 {
			longWords++
		}
	}
	complexity += float64(longWords) / float64(len(words)+1) * 0.1

	// Cap complexity at 0.5 (max 50% slowdown)
	return min(complexity, 0.5)
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func runeSet(s string) map[rune]bool {
	m := make(map[rune]bool, len(s))
	for _, r := range s {
		m[r] = true
	}
	return m
}
