package epubtext

import (
	"bytes"
	"encoding/xml"
	"mime"
	"path"
	"strings"

	"github.com/simp-lee/epub"
)

// containerFile locates the package document.
type containerFile struct {
	RootFiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

// packageManifest is the part of the package document read here.
type packageManifest struct {
	Items []struct {
		ID        string `xml:"id,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
}

// manifestTypes maps manifest item IDs to their media types. It returns nil
// when the package document cannot be read, leaving callers to fall back to
// file extensions.
func manifestTypes(eb *epub.Book) map[string]string {
	data, err := eb.ReadFile("META-INF/container.xml")
	if err != nil {
		return nil
	}
	var c containerFile
	if err := xml.Unmarshal(stripBOM(data), &c); err != nil || len(c.RootFiles) == 0 {
		return nil
	}

	data, err = eb.ReadFile(c.RootFiles[0].FullPath)
	if err != nil {
		return nil
	}
	var p packageManifest
	if err := xml.Unmarshal(stripBOM(data), &p); err != nil {
		return nil
	}

	types := make(map[string]string, len(p.Items))
	for _, it := range p.Items {
		types[it.ID] = it.MediaType
	}
	return types
}

// isContent reports whether a spine item is an (X)HTML document. The
// manifest media type decides when it is known; otherwise the extension does.
func isContent(id, href string, types map[string]string) bool {
	if mt, ok := types[id]; ok && mt != "" {
		base, _, err := mime.ParseMediaType(mt)
		if err != nil {
			base = strings.ToLower(strings.TrimSpace(mt))
		}
		return base == "application/xhtml+xml" || base == "text/html"
	}
	return isHTML(href)
}

func isHTML(href string) bool {
	switch strings.ToLower(path.Ext(href)) {
	case ".xhtml", ".html", ".htm", ".xml":
		return true
	}
	return false
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
}
