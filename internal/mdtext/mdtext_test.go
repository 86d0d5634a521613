package mdtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "empty", src: "", want: ""},
		{
			name: "heading gets a period",
			src:  "# Chapter One\n\nIt was a *dark* and **stormy** night.",
			want: "Chapter One.\n\nIt was a dark and stormy night.",
		},
		{
			name: "heading punctuation kept",
			src:  "## Why?\n\nBecause.",
			want: "Why?\n\nBecause.",
		},
		{
			name: "soft breaks joined",
			src:  "one line\nand the next",
			want: "one line and the next",
		},
		{
			name: "links keep their label",
			src:  "See [the docs](https://example.com) for more.",
			want: "See the docs for more.",
		},
		{
			name: "code and html dropped",
			src:  "Before.\n\n```go\nfmt.Println(1)\n```\n\n<div>raw</div>\n\nAfter.",
			want: "Before.\n\nAfter.",
		},
		{
			name: "images dropped",
			src:  "Look ![a cat](cat.png) here.",
			want: "Look here.",
		},
		{
			name: "tight list items become sentences",
			src:  "- apples\n- pears!\n",
			want: "apples.\n\npears!",
		},
		{
			name: "inline code read as text",
			src:  "Run `make` now.",
			want: "Run make now.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText([]byte(tt.src)))
		})
	}
}

func TestIsMarkdownFile(t *testing.T) {
	assert.True(t, IsMarkdownFile("notes.md"))
	assert.True(t, IsMarkdownFile("README.MARKDOWN"))
	assert.False(t, IsMarkdownFile("book.epub"))
	assert.False(t, IsMarkdownFile("md"))
}
