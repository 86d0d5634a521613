// Package subprocess runs external tools (speech engines, ffmpeg) with stdin
// wired before start, a default timeout and captured stderr.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/tts"
)

// DefaultTimeout applies when neither the request nor the context sets one.
const DefaultTimeout = 5 * time.Minute

// maxStderr caps how much stderr is kept for error messages.
const maxStderr = 2048

// Request describes one command invocation.
type Request struct {
	Name    string
	Args    []string
	Input   []byte
	Env     []string
	Dir     string
	Timeout time.Duration
}

func (r Request) String() string {
	return strings.Join(append([]string{r.Name}, r.Args...), " ")
}

// Runner executes a request and returns its stdout.
type Runner interface {
	Run(ctx context.Context, req Request) ([]byte, error)
}

// ExitError is returned when a command ran but exited unsuccessfully.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Manager is the exec-backed Runner. It is safe for concurrent use.
type Manager struct {
	timeout time.Duration
	logger  *log.Logger
}

// New creates a Manager. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration, logger *log.Logger) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{timeout: timeout, logger: logger}
}

// Run executes req. Stdin is attached before the process starts.
func (m *Manager) Run(ctx context.Context, req Request) ([]byte, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = m.timeout
	}
	if _, ok := ctx.Deadline(); !ok || req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, req.Name, req.Args...)
	if req.Input != nil {
		cmd.Stdin = bytes.NewReader(req.Input)
	}
	if len(req.Env) > 0 {
		cmd.Env = append(cmd.Environ(), req.Env...)
	}
	cmd.Dir = req.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	m.logger.Debug("Running command", "cmd", req.Name, "args", len(req.Args), "input", len(req.Input))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", req.Name, err)
	}
	err := cmd.Wait()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %s after %v", tts.ErrTimeout, req.Name, timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, fmt.Errorf("%w: %s", tts.ErrCanceled, req.Name)
	}

	if err != nil {
		exitErr := &ExitError{
			Command:  req.Name,
			ExitCode: -1,
			Stderr:   tail(stderr.String(), maxStderr),
			Err:      err,
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			exitErr.ExitCode = ee.ExitCode()
		}
		return nil, exitErr
	}

	m.logger.Debug("Command finished", "cmd", req.Name, "took", time.Since(start), "stdout", stdout.Len())
	return stdout.Bytes(), nil
}

// LookPath resolves a binary, returning tts.ErrEngineNotAvailable when it
// cannot be found.
func LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q not found in PATH", tts.ErrEngineNotAvailable, name)
	}
	return p, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
