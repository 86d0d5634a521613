package chunk

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgnsrekt/epub2m4b/tts"
)

// ErrInvalidMaxChars is returned when the chunk bound is not positive.
var ErrInvalidMaxChars = fmt.Errorf("%w: max chars must be positive", tts.ErrInvalidConfig)

// Assemble greedily packs sentences into chunks of at most maxChars code
// points, in order. A sentence is only split when it alone exceeds
// maxChars, in which case it is cut at spaces. A single word longer than
// maxChars is emitted as its own oversized chunk; see Oversized.
func Assemble(sentences []string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxChars, maxChars)
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)

	flush := func(b *strings.Builder, n *int) {
		if s := strings.TrimSpace(b.String()); s != "" {
			chunks = append(chunks, s)
		}
		b.Reset()
		*n = 0
	}

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		sLen := utf8.RuneCountInString(s)

		if sLen > maxChars {
			flush(&current, &curLen)

			var mega strings.Builder
			megaLen := 0
			for _, word := range strings.Split(s, " ") {
				wLen := utf8.RuneCountInString(word)
				if megaLen+wLen+1 > maxChars {
					flush(&mega, &megaLen)
				}
				mega.WriteString(word)
				mega.WriteByte(' ')
				megaLen += wLen + 1
			}
			flush(&mega, &megaLen)
			continue
		}

		if curLen+sLen+1 > maxChars {
			flush(&current, &curLen)
		}
		current.WriteString(s)
		current.WriteByte(' ')
		curLen += sLen + 1
	}
	flush(&current, &curLen)

	return chunks, nil
}

// Oversized returns the indexes of chunks longer than maxChars. This only
// happens for a single word that exceeds the bound.
func Oversized(chunks []string, maxChars int) []int {
	var idx []int
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > maxChars {
			idx = append(idx, i)
		}
	}
	return idx
}
