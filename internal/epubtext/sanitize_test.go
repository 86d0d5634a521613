package epubtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "paragraphs joined with spaces",
			html: "<html><body><p>First line.</p><p>Second   line.</p></body></html>",
			want: "First line. Second line.",
		},
		{
			name: "head and scripts dropped",
			html: "<html><head><title>T</title><style>p{}</style></head><body><script>x()</script><p>Text.</p></body></html>",
			want: "Text.",
		},
		{
			name: "tables and code dropped",
			html: "<body><p>Before.</p><table><tr><td>cell</td></tr></table><pre>code</pre><code>x</code><p>After.</p></body>",
			want: "Before. After.",
		},
		{
			name: "footnote markers dropped",
			html: "<body><p>A claim<sup>1</sup> and H<sub>2</sub>O.</p></body>",
			want: "A claim and H O.",
		},
		{
			name: "figures and images dropped",
			html: `<body><figure><img src="a.png"/><figcaption>Caption</figcaption></figure><p>Story.</p></body>`,
			want: "Story.",
		},
		{
			name: "svg and math dropped",
			html: `<body><svg><text>drawn</text></svg><math><mi>x</mi></math><p>Plain.</p></body>`,
			want: "Plain.",
		},
		{
			name: "entities decoded",
			html: "<body><p>Fish &amp; chips&#8230; caf&eacute;</p></body>",
			want: "Fish & chips… café",
		},
		{
			name: "decomposed accents composed",
			html: "<body><p>cafe\u0301</p></body>",
			want: "café",
		},
		{
			name: "empty body",
			html: "<html><body></body></html>",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize([]byte(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDocumentTitles(t *testing.T) {
	doc, err := parseDocument([]byte(`<html><head><title> Page
	Title </title></head><body><table><tr><td><h1>Hidden</h1></td></tr></table><h2>Chapter  One</h2><h1>Later</h1><p>Text</p></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, "Page Title", doc.title)
	assert.Equal(t, "Chapter One", doc.heading)
	assert.Equal(t, "Chapter One Later Text", doc.text)
}
