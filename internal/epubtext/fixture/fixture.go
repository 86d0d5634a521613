// Package fixture writes small EPUB archives for tests.
package fixture

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"strings"
)

// Chapter is one XHTML document in the spine.
type Chapter struct {
	Title string
	// Body is inserted verbatim inside <body>.
	Body string
	// Href overrides the default chNNN.xhtml file name.
	Href string
	// MediaType overrides application/xhtml+xml in the manifest.
	MediaType string
}

// Book describes the archive to write.
type Book struct {
	Title    string
	Authors  []string
	Language string
	Chapters []Chapter

	// Extra entries written as-is, keyed by archive path.
	Extra map[string]string
}

const container = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// Write creates the EPUB at path.
func Write(path string, b Book) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(f)
	write := func(name, content string) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(content))
		return err
	}

	entries := [][2]string{
		{"mimetype", "application/epub+zip"},
		{"META-INF/container.xml", container},
		{"OEBPS/content.opf", opf(b)},
	}
	for i, ch := range b.Chapters {
		entries = append(entries, [2]string{"OEBPS/" + ch.href(i), xhtml(ch)})
	}
	for name, content := range b.Extra {
		entries = append(entries, [2]string{name, content})
	}

	for _, e := range entries {
		if err := write(e[0], e[1]); err != nil {
			_ = zw.Close()
			_ = f.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Paragraphs wraps each string in <p>.
func Paragraphs(ps ...string) string {
	var sb strings.Builder
	for _, p := range ps {
		fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(p))
	}
	return sb.String()
}

func (ch Chapter) href(i int) string {
	if ch.Href != "" {
		return ch.Href
	}
	return fmt.Sprintf("ch%03d.xhtml", i+1)
}

func (ch Chapter) mediaType() string {
	if ch.MediaType != "" {
		return ch.MediaType
	}
	return "application/xhtml+xml"
}

func opf(b Book) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="id">fixture</dc:identifier>
`)
	if b.Title != "" {
		fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", html.EscapeString(b.Title))
	}
	for _, a := range b.Authors {
		fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", html.EscapeString(a))
	}
	if b.Language != "" {
		fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", b.Language)
	}
	sb.WriteString("  </metadata>\n  <manifest>\n")
	for i, ch := range b.Chapters {
		fmt.Fprintf(&sb, "    <item id=\"c%d\" href=\"%s\" media-type=\"%s\"/>\n", i+1, ch.href(i), ch.mediaType())
	}
	sb.WriteString("  </manifest>\n  <spine>\n")
	for i := range b.Chapters {
		fmt.Fprintf(&sb, "    <itemref idref=\"c%d\"/>\n", i+1)
	}
	sb.WriteString("  </spine>\n</package>\n")
	return sb.String()
}

func xhtml(ch Chapter) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>%s</title></head>
<body>
%s
</body>
</html>`, html.EscapeString(ch.Title), ch.Body)
}
