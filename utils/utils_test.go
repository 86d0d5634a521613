package utils

import (
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	t.Setenv("BOOKS_DIR", "/srv/books")
	home, err := homedir.Dir()
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: "/tmp/out", want: "/tmp/out"},
		{name: "home", in: "~/voices", want: filepath.Join(home, "voices")},
		{name: "env", in: "$BOOKS_DIR/in", want: "/srv/books/in"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "moby-dick", Stem("/books/moby-dick.epub"))
	assert.Equal(t, "notes", Stem("notes"))
	assert.Equal(t, "a.b", Stem("a.b.epub"))
}
