package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgnsrekt/epub2m4b/internal/subprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	out  string
	err  error
	reqs []subprocess.Request
}

func (f *fakeRunner) Run(_ context.Context, req subprocess.Request) ([]byte, error) {
	f.reqs = append(f.reqs, req)
	return []byte(f.out), f.err
}

func fakeHost(goos string, bins map[string]string, osRelease string, r subprocess.Runner) Host {
	return Host{
		GOOS: goos,
		LookPath: func(name string) (string, error) {
			if p, ok := bins[name]; ok {
				return p, nil
			}
			return "", errors.New("not found")
		},
		ReadFile: func(string) ([]byte, error) {
			if osRelease == "" {
				return nil, os.ErrNotExist
			}
			return []byte(osRelease), nil
		},
		Runner: r,
	}
}

func TestBinaryFound(t *testing.T) {
	r := &fakeRunner{out: "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc\n"}
	b := Binary{
		Host:         fakeHost("linux", map[string]string{"ffmpeg": "/usr/bin/ffmpeg"}, "", r),
		Name:         "ffmpeg",
		Command:      "ffmpeg",
		Required:     true,
		VersionArgs:  []string{"-version"},
		VersionField: 2,
	}

	s := b.Check(context.Background())
	assert.True(t, s.OK)
	assert.Equal(t, "/usr/bin/ffmpeg", s.Path)
	assert.Equal(t, "6.1.1-3ubuntu5", s.Version)
	require.Len(t, r.reqs, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", r.reqs[0].Name)
	assert.Equal(t, []string{"-version"}, r.reqs[0].Args)
}

func TestBinaryMissing(t *testing.T) {
	b := Binary{
		Host:     fakeHost("linux", nil, "NAME=\"Fedora Linux\"\nID=fedora\n", nil),
		Name:     "ffmpeg",
		Command:  "ffmpeg",
		Required: true,
	}

	s := b.Check(context.Background())
	assert.False(t, s.OK)
	assert.Contains(t, s.Detail, "not found")
	assert.Equal(t, "Install with: sudo dnf install ffmpeg", s.Instructions)
}

func TestBinaryVersionCheckFails(t *testing.T) {
	r := &fakeRunner{err: errors.New("boom")}
	b := Binary{
		Host:        fakeHost("darwin", map[string]string{"piper": "/opt/piper"}, "", r),
		Name:        "piper",
		Command:     "piper",
		VersionArgs: []string{"--version"},
	}

	s := b.Check(context.Background())
	assert.True(t, s.OK, "a present binary passes even when the version check fails")
	assert.Contains(t, s.Detail, "boom")
	assert.Empty(t, s.Version)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name  string
		out   string
		field int
		want  string
	}{
		{name: "empty", out: "", field: 2, want: ""},
		{name: "whole line", out: "1.2.0\n", field: -1, want: "1.2.0"},
		{name: "field", out: "ffmpeg version 7.0 Copyright", field: 2, want: "7.0"},
		{name: "field out of range", out: "v1", field: 3, want: "v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseVersion([]byte(tt.out), tt.field))
		})
	}
}

func TestVoice(t *testing.T) {
	ok := Voice{
		Name:    "voice",
		Resolve: func() (string, error) { return "/voices/en_US-amy-medium.onnx", nil },
		Exists:  func(string) bool { return true },
	}
	s := ok.Check(context.Background())
	assert.True(t, s.OK)
	assert.Equal(t, "en_US-amy-medium", s.Version)

	missing := ok
	missing.Exists = func(string) bool { return false }
	s = missing.Check(context.Background())
	assert.False(t, s.OK)
	assert.Equal(t, "model file is missing", s.Detail)

	unknown := Voice{Name: "voice", Resolve: func() (string, error) { return "", errors.New("unknown voice") }}
	s = unknown.Check(context.Background())
	assert.False(t, s.OK)
	assert.NotEmpty(t, s.Instructions)
}

func TestWritableDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache", "audio")
	s := WritableDir{Name: "cache", Dir: dir}.Check(context.Background())
	assert.True(t, s.OK)
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file is removed")

	s = WritableDir{Name: "cache"}.Check(context.Background())
	assert.False(t, s.OK)
}

func TestReport(t *testing.T) {
	r := Run(context.Background(),
		Audio{HasAudio: false},
		WritableDir{Name: "cache", Dir: t.TempDir(), Required: true},
		Voice{Name: "voice", Required: true, Resolve: func() (string, error) { return "", errors.New("none") }},
	)

	require.Len(t, r.Results, 3)
	assert.False(t, r.OK())
	assert.Equal(t, []string{"voice"}, r.Missing())

	r = Run(context.Background(), Audio{HasAudio: false})
	assert.True(t, r.OK(), "optional failures do not fail the report")
}

func TestDetectLinuxDistro(t *testing.T) {
	read := func(s string) func(string) ([]byte, error) {
		return func(string) ([]byte, error) { return []byte(s), nil }
	}
	assert.Equal(t, "ubuntu", DetectLinuxDistro(read("NAME=Ubuntu\nID=ubuntu\nID_LIKE=debian\n")))
	assert.Equal(t, "opensuse-tumbleweed", DetectLinuxDistro(read(`ID="opensuse-tumbleweed"`)))
	assert.Empty(t, DetectLinuxDistro(func(string) ([]byte, error) { return nil, os.ErrNotExist }))
}

func TestInstructions(t *testing.T) {
	assert.Contains(t, Instructions("ffmpeg", "linux", "arch"), "pacman")
	assert.Contains(t, Instructions("ffmpeg", "darwin", ""), "brew")
	assert.Contains(t, Instructions("piper", "windows", ""), "releases")
	assert.Empty(t, Instructions("unknown", "linux", ""))
}
