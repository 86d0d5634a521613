package epubtext

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Subtrees that never carry narrative text.
var droppedElements = map[string]bool{
	"script": true, "style": true, "meta": true, "link": true,
	"img": true, "image": true, "svg": true, "math": true,
	"table": true, "tr": true, "td": true, "th": true,
	"col": true, "colgroup": true, "thead": true, "tbody": true, "tfoot": true,
	"pre": true, "code": true, "samp": true, "kbd": true, "var": true,
	"figure": true, "figcaption": true,
	"sup": true, "sub": true,
	"head": true,
}

type document struct {
	text    string
	heading string
	title   string
}

// Sanitize reduces an XHTML document to NFC-normalized plain text. Text
// nodes are joined with single spaces.
func Sanitize(doc []byte) (string, error) {
	d, err := parseDocument(doc)
	if err != nil {
		return "", err
	}
	return d.text, nil
}

func parseDocument(raw []byte) (document, error) {
	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return document{}, err
	}

	var (
		d     document
		parts []string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			name := strings.ToLower(n.Data)
			if name == "head" {
				d.title = findTitle(n)
				return
			}
			if droppedElements[name] {
				return
			}
			if d.heading == "" && (name == "h1" || name == "h2" || name == "h3") {
				d.heading = clean(textOf(n))
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	d.text = clean(strings.Join(parts, " "))
	d.title = clean(d.title)
	return d, nil
}

func findTitle(head *html.Node) string {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "title") {
			return textOf(c)
		}
	}
	return ""
}

// textOf returns the concatenated text below n, skipping dropped subtrees.
func textOf(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && droppedElements[strings.ToLower(n.Data)] {
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
