// Package epubtext extracts spine-ordered chapters of plain narrative text
// from EPUB files.
//
// Container parsing, DRM detection and archive safety (path traversal and
// the 256 MiB per-entry bound) are delegated to github.com/simp-lee/epub.
// This package decides what counts as narrative text.
package epubtext

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/simp-lee/epub"
)

// DefaultMinChars is the length a chapter must exceed to be kept.
const DefaultMinChars = 50

var (
	// ErrNotFound is returned when the EPUB path does not exist.
	ErrNotFound = errors.New("epub not found")

	// ErrInvalidEPUB is returned for files that are not readable EPUB archives.
	ErrInvalidEPUB = errors.New("invalid epub")

	// ErrDRMProtected is returned for encrypted books.
	ErrDRMProtected = errors.New("epub is DRM protected")

	// ErrNoChapters is returned when no chapter survives extraction.
	ErrNoChapters = errors.New("no readable chapters")
)

// Chapter is one spine document reduced to plain text.
type Chapter struct {
	Index int
	Title string
	Href  string
	Text  string
}

// Chars returns the text length in code points.
func (c Chapter) Chars() int {
	return utf8.RuneCountInString(c.Text)
}

// Book holds the metadata and chapters of an EPUB.
type Book struct {
	Path     string
	Title    string
	Authors  []string
	Language string
	Chapters []Chapter

	// Warnings collects non-fatal problems found while reading.
	Warnings []string
}

// Chars returns the total text length in code points.
func (b *Book) Chars() int {
	n := 0
	for _, c := range b.Chapters {
		n += c.Chars()
	}
	return n
}

// Options controls extraction.
type Options struct {
	// Chapters with MinChars code points or fewer are dropped.
	MinChars int
	Logger   *log.Logger
}

// Open extracts the chapters of the EPUB at path with default options.
func Open(path string) (*Book, error) {
	return OpenWith(path, Options{MinChars: DefaultMinChars})
}

// OpenWith extracts the chapters of the EPUB at path.
func OpenWith(filename string, opts Options) (*Book, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	if _, err := os.Stat(filename); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidEPUB, err)
	}

	eb, err := epub.Open(filename)
	if err != nil {
		if errors.Is(err, epub.ErrDRMProtected) {
			return nil, fmt.Errorf("%w: %s", ErrDRMProtected, filename)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidEPUB, err)
	}
	defer func() { _ = eb.Close() }()

	md := eb.Metadata()
	book := &Book{
		Path:     filename,
		Title:    stem(filename),
		Warnings: eb.Warnings(),
	}
	if len(md.Titles) > 0 && strings.TrimSpace(md.Titles[0]) != "" {
		book.Title = strings.TrimSpace(md.Titles[0])
	}
	for _, a := range md.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			book.Authors = append(book.Authors, name)
		}
	}
	if len(md.Language) > 0 {
		book.Language = md.Language[0]
	}

	types := manifestTypes(eb)
	for _, ch := range eb.ContentChapters() {
		if !isContent(ch.ID, ch.Href, types) {
			logger.Debug("Skipping non-document spine item", "href", ch.Href, "type", types[ch.ID])
			continue
		}

		raw, err := ch.RawContent()
		if err != nil {
			logger.Warn("Skipping unreadable chapter", "href", ch.Href, "err", err)
			book.Warnings = append(book.Warnings, fmt.Sprintf("%s: %v", ch.Href, err))
			continue
		}

		doc, err := parseDocument(raw)
		if err != nil {
			logger.Warn("Skipping unparsable chapter", "href", ch.Href, "err", err)
			book.Warnings = append(book.Warnings, fmt.Sprintf("%s: %v", ch.Href, err))
			continue
		}

		if utf8.RuneCountInString(doc.text) <= opts.MinChars {
			logger.Debug("Dropping short chapter", "href", ch.Href, "chars", utf8.RuneCountInString(doc.text))
			continue
		}

		book.Chapters = append(book.Chapters, Chapter{
			Index: len(book.Chapters),
			Title: chapterTitle(doc, ch.Title, ch.Href),
			Href:  ch.Href,
			Text:  doc.text,
		})
	}

	logger.Debug("Extracted book", "title", book.Title, "chapters", len(book.Chapters))
	return book, nil
}

// chapterTitle prefers an in-document heading, then the table of contents
// entry, then <title>, then the file name.
func chapterTitle(doc document, toc, href string) string {
	for _, t := range []string{doc.heading, toc, doc.title} {
		if t = strings.Join(strings.Fields(t), " "); t != "" {
			return t
		}
	}
	return stem(href)
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
