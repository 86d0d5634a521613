// Package mdtext reduces Markdown to the plain prose a narrator would read.
package mdtext

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// IsMarkdownFile reports whether a path has a Markdown extension.
func IsMarkdownFile(path string) bool {
	p := strings.ToLower(path)
	for _, ext := range []string{".md", ".markdown", ".mdown", ".mkd"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// PlainText returns the readable text of a Markdown document, one block per
// paragraph. Code, raw HTML and images are dropped; links keep their label.
// Headings and list items gain a closing period so they segment as sentences.
func PlainText(src []byte) string {
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		blocks []string
		cur    strings.Builder
	)
	flush := func(terminate bool) {
		s := strings.Join(strings.Fields(cur.String()), " ")
		cur.Reset()
		if s == "" {
			return
		}
		if terminate && !endsSentence(s) {
			s += "."
		}
		blocks = append(blocks, s)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Heading:
			if !entering {
				flush(true)
			}
		case *ast.Paragraph:
			if !entering {
				flush(false)
			}
		case *ast.TextBlock:
			// Tight list items hold a TextBlock instead of a Paragraph.
			if !entering {
				flush(true)
			}
		case *ast.Text:
			if entering {
				cur.Write(n.Value(src))
				if n.SoftLineBreak() || n.HardLineBreak() {
					cur.WriteByte(' ')
				}
			}
		case *ast.String:
			if entering {
				cur.Write(n.Value)
			}
		}
		return ast.WalkContinue, nil
	})
	flush(false)

	return strings.Join(blocks, "\n\n")
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, `"')]”’`)
	return s != "" && strings.ContainsAny(s[len(s)-1:], ".!?:;") || strings.HasSuffix(s, "…")
}
