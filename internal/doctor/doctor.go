// Package doctor checks that the host has what a conversion needs: the
// speech engine, a voice, ffmpeg, an audio device and a writable cache.
package doctor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dgnsrekt/epub2m4b/internal/subprocess"
)

const versionTimeout = 10 * time.Second

// Status is the outcome of one check.
type Status struct {
	Name         string
	Required     bool
	OK           bool
	Version      string
	Path         string
	Detail       string
	Instructions string
}

// Checker inspects one dependency.
type Checker interface {
	Check(ctx context.Context) Status
}

// Report is the result of running every checker.
type Report struct {
	Results []Status
}

// OK reports whether every required dependency is present.
func (r Report) OK() bool {
	for _, s := range r.Results {
		if s.Required && !s.OK {
			return false
		}
	}
	return true
}

// Missing returns the names of required dependencies that failed.
func (r Report) Missing() []string {
	var out []string
	for _, s := range r.Results {
		if s.Required && !s.OK {
			out = append(out, s.Name)
		}
	}
	return out
}

// Run executes the checkers in order.
func Run(ctx context.Context, checkers ...Checker) Report {
	r := Report{Results: make([]Status, 0, len(checkers))}
	for _, c := range checkers {
		r.Results = append(r.Results, c.Check(ctx))
	}
	return r
}

// Host abstracts the parts of the system the checks read.
type Host struct {
	GOOS     string
	LookPath func(string) (string, error)
	ReadFile func(string) ([]byte, error)
	Runner   subprocess.Runner
}

// System returns a Host backed by the real machine.
func System(runner subprocess.Runner) Host {
	return Host{
		GOOS:     runtime.GOOS,
		LookPath: exec.LookPath,
		ReadFile: os.ReadFile,
		Runner:   runner,
	}
}

// Binary checks for an executable and optionally reads its version.
type Binary struct {
	Host     Host
	Name     string
	Command  string
	Required bool
	// VersionArgs are passed to the binary; empty skips the version check.
	VersionArgs []string
	// VersionField picks a whitespace field from the first output line,
	// or the whole line when negative.
	VersionField int
}

func (b Binary) Check(ctx context.Context) Status {
	s := Status{Name: b.Name, Required: b.Required}

	path, err := b.Host.LookPath(b.Command)
	if err != nil {
		s.Detail = fmt.Sprintf("%q not found in PATH", b.Command)
		s.Instructions = Instructions(b.Name, b.Host.GOOS, b.distro())
		return s
	}
	s.OK = true
	s.Path = path

	if len(b.VersionArgs) == 0 || b.Host.Runner == nil {
		return s
	}
	out, err := b.Host.Runner.Run(ctx, subprocess.Request{
		Name:    path,
		Args:    b.VersionArgs,
		Timeout: versionTimeout,
	})
	if err != nil {
		s.Detail = "version check failed: " + err.Error()
		return s
	}
	s.Version = parseVersion(out, b.VersionField)
	return s
}

func (b Binary) distro() string {
	if b.Host.GOOS != "linux" || b.Host.ReadFile == nil {
		return ""
	}
	return DetectLinuxDistro(b.Host.ReadFile)
}

// parseVersion extracts a version from the first line of output.
// "ffmpeg version 6.1.1 Copyright ..." with field 2 yields "6.1.1".
func parseVersion(out []byte, field int) string {
	sc := bufio.NewScanner(bytes.NewReader(out))
	if !sc.Scan() {
		return ""
	}
	line := strings.TrimSpace(sc.Text())
	if field < 0 {
		return line
	}
	fields := strings.Fields(line)
	if field >= len(fields) {
		return line
	}
	return fields[field]
}

// Voice checks that the configured voice resolves to a model on disk.
type Voice struct {
	Name     string
	Required bool
	// Resolve returns the model path for the configured voice.
	Resolve func() (string, error)
	Exists  func(string) bool
}

func (v Voice) Check(context.Context) Status {
	s := Status{Name: v.Name, Required: v.Required}

	model, err := v.Resolve()
	if err != nil {
		s.Detail = err.Error()
		s.Instructions = "Download a voice from https://huggingface.co/rhasspy/piper-voices\n" +
			"and place the .onnx and .onnx.json files in a voices directory."
		return s
	}
	s.Path = model

	exists := v.Exists
	if exists == nil {
		exists = fileExists
	}
	if !exists(model) {
		s.Detail = "model file is missing"
		return s
	}
	s.OK = true
	s.Version = strings.TrimSuffix(filepath.Base(model), ".onnx")
	return s
}

// Audio reports whether the host can play sound. It is never required.
type Audio struct {
	HasAudio bool
	Device   string
}

func (a Audio) Check(context.Context) Status {
	s := Status{Name: "audio", OK: a.HasAudio, Detail: a.Device}
	if !a.HasAudio {
		s.Instructions = "Previews need an audio device; use 'preview --out' to write a WAV instead."
	}
	return s
}

// WritableDir checks that a directory exists or can be created and accepts writes.
type WritableDir struct {
	Name     string
	Dir      string
	Required bool
}

func (w WritableDir) Check(context.Context) Status {
	s := Status{Name: w.Name, Required: w.Required, Path: w.Dir}
	if err := tryWrite(w.Dir); err != nil {
		s.Detail = err.Error()
		return s
	}
	s.OK = true
	return s
}

func tryWrite(dir string) error {
	if dir == "" {
		return errors.New("no directory configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// DetectLinuxDistro returns the ID from /etc/os-release, or "" when unknown.
func DetectLinuxDistro(readFile func(string) ([]byte, error)) string {
	data, err := readFile("/etc/os-release")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "ID="); ok {
			return strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return ""
}

// Instructions returns install hints for a dependency on the given platform.
func Instructions(name, goos, distro string) string {
	switch name {
	case "piper":
		if goos == "darwin" {
			return "Install with: brew install piper-tts\n" +
				"Or download from: https://github.com/rhasspy/piper/releases"
		}
		return "Download from: https://github.com/rhasspy/piper/releases\n" +
			"Extract it and add the directory to PATH"
	case "ffmpeg":
		switch goos {
		case "darwin":
			return "Install with: brew install ffmpeg"
		case "windows":
			return "Install with: winget install ffmpeg\n" +
				"Or download from: https://ffmpeg.org/download.html"
		case "linux":
			switch distro {
			case "ubuntu", "debian", "linuxmint", "pop":
				return "Install with: sudo apt install ffmpeg"
			case "fedora", "rhel", "centos":
				return "Install with: sudo dnf install ffmpeg"
			case "arch", "manjaro":
				return "Install with: sudo pacman -S ffmpeg"
			case "opensuse", "opensuse-leap", "opensuse-tumbleweed":
				return "Install with: sudo zypper install ffmpeg"
			case "alpine":
				return "Install with: sudo apk add ffmpeg"
			}
			return "Install ffmpeg with your package manager"
		}
		return "Download from: https://ffmpeg.org/download.html"
	}
	return ""
}
