package epubtext

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/epubtext/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const longParagraph = "The old house stood at the end of the lane, its windows dark and its garden overgrown with ivy."

func writeBook(t *testing.T, b fixture.Book) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.epub")
	require.NoError(t, fixture.Write(path, b))
	return path
}

func quietOptions() Options {
	return Options{MinChars: DefaultMinChars, Logger: log.New(&bytes.Buffer{})}
}

func TestOpen(t *testing.T) {
	path := writeBook(t, fixture.Book{
		Title:    "The Lane",
		Authors:  []string{"A. Writer", "B. Editor"},
		Language: "en",
		Chapters: []fixture.Chapter{
			{Title: "Cover", Body: "<p>Cover</p>"},
			{Title: "One", Body: "<h1>Chapter 1</h1>" + fixture.Paragraphs(longParagraph)},
			{Title: "Two Title", Body: fixture.Paragraphs(longParagraph, "It rained.")},
		},
	})

	book, err := OpenWith(path, quietOptions())
	require.NoError(t, err)

	assert.Equal(t, "The Lane", book.Title)
	assert.Equal(t, []string{"A. Writer", "B. Editor"}, book.Authors)
	assert.Equal(t, "en", book.Language)

	// The cover is too short and is dropped; indexes are contiguous.
	require.Len(t, book.Chapters, 2)

	assert.Equal(t, 0, book.Chapters[0].Index)
	assert.Equal(t, "Chapter 1", book.Chapters[0].Title)
	assert.Equal(t, "Chapter 1 "+longParagraph, book.Chapters[0].Text)
	assert.True(t, strings.HasSuffix(book.Chapters[0].Href, "ch002.xhtml"))

	assert.Equal(t, 1, book.Chapters[1].Index)
	assert.Equal(t, "Two Title", book.Chapters[1].Title)
	assert.Equal(t, longParagraph+" It rained.", book.Chapters[1].Text)

	assert.Equal(t, book.Chapters[0].Chars()+book.Chapters[1].Chars(), book.Chars())
}

func TestOpenTitleFallsBackToFileStem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "untitled-novel.epub")
	require.NoError(t, fixture.Write(path, fixture.Book{
		Chapters: []fixture.Chapter{{Body: fixture.Paragraphs(longParagraph)}},
	}))

	book, err := OpenWith(path, quietOptions())
	require.NoError(t, err)

	assert.Equal(t, "untitled-novel", book.Title)
	assert.Empty(t, book.Authors)
	require.Len(t, book.Chapters, 1)
	assert.Equal(t, "ch001", book.Chapters[0].Title)
}

func TestOpenMinChars(t *testing.T) {
	path := writeBook(t, fixture.Book{
		Title: "Short",
		Chapters: []fixture.Chapter{
			{Body: fixture.Paragraphs(strings.Repeat("a", 50))},
			{Body: fixture.Paragraphs(strings.Repeat("b", 51))},
		},
	})

	book, err := OpenWith(path, quietOptions())
	require.NoError(t, err)
	require.Len(t, book.Chapters, 1)
	assert.Equal(t, strings.Repeat("b", 51), book.Chapters[0].Text)

	book, err = OpenWith(path, Options{MinChars: 0, Logger: log.New(&bytes.Buffer{})})
	require.NoError(t, err)
	assert.Len(t, book.Chapters, 2)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "plain.epub")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip"), 0o644))

	drm := filepath.Join(dir, "drm.epub")
	require.NoError(t, fixture.Write(drm, fixture.Book{
		Title:    "Locked",
		Chapters: []fixture.Chapter{{Body: fixture.Paragraphs(longParagraph)}},
		Extra: map[string]string{
			"META-INF/encryption.xml": `<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#">
    <EncryptionMethod Algorithm="http://www.w3.org/2001/04/xmlenc#aes128-cbc"/>
    <KeyInfo><resource xmlns="http://ns.adobe.com/adept"/></KeyInfo>
  </EncryptedData>
</encryption>`,
		},
	}))

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.epub"), want: ErrNotFound},
		{name: "not an archive", path: notZip, want: ErrInvalidEPUB},
		{name: "drm", path: drm, want: ErrDRMProtected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenWith(tt.path, quietOptions())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenFontObfuscationIsNotDRM(t *testing.T) {
	path := writeBook(t, fixture.Book{
		Title:    "Fonts",
		Chapters: []fixture.Chapter{{Body: fixture.Paragraphs(longParagraph)}},
		Extra: map[string]string{
			"META-INF/encryption.xml": `<encryption xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <EncryptedData xmlns="http://www.w3.org/2001/04/xmlenc#">
    <EncryptionMethod Algorithm="http://www.idpf.org/2008/embedding"/>
  </EncryptedData>
</encryption>`,
		},
	})

	book, err := OpenWith(path, quietOptions())
	require.NoError(t, err)
	assert.Len(t, book.Chapters, 1)
}

func TestOpenFiltersSpineByMediaType(t *testing.T) {
	path := writeBook(t, fixture.Book{
		Title: "Types",
		Chapters: []fixture.Chapter{
			{Title: "No Extension", Href: "part1", Body: fixture.Paragraphs(longParagraph)},
			{Title: "Drawing", Href: "plate.xml", MediaType: "image/svg+xml", Body: fixture.Paragraphs(longParagraph)},
			{Title: "Legacy", Href: "part2.xml", MediaType: "text/html; charset=utf-8", Body: fixture.Paragraphs(longParagraph)},
		},
	})

	book, err := OpenWith(path, quietOptions())
	require.NoError(t, err)

	var titles []string
	for _, ch := range book.Chapters {
		titles = append(titles, ch.Title)
	}
	assert.Equal(t, []string{"No Extension", "Legacy"}, titles)
}

func TestIsContent(t *testing.T) {
	types := map[string]string{
		"a": "application/xhtml+xml",
		"b": "image/svg+xml",
		"c": "TEXT/HTML",
		"d": "",
	}
	tests := []struct {
		name string
		id   string
		href string
		want bool
	}{
		{name: "xhtml type", id: "a", href: "text/a", want: true},
		{name: "svg type with xml extension", id: "b", href: "plate.xml", want: false},
		{name: "html type any case", id: "c", href: "c.txt", want: true},
		{name: "empty type uses extension", id: "d", href: "d.htm", want: true},
		{name: "unknown id uses extension", id: "z", href: "z.css", want: false},
		{name: "unknown id html extension", id: "z", href: "z.XHTML", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isContent(tt.id, tt.href, types))
		})
	}

	assert.True(t, isContent("a", "ch.xhtml", nil), "no manifest falls back to the extension")
	assert.False(t, isContent("a", "style.css", nil))
}
