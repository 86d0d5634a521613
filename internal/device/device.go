// Package device picks the inference device for the speech engine and
// reports what the host offers.
package device

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/cpu"
)

// Device is an inference target.
type Device string

const (
	CPU  Device = "cpu"
	CUDA Device = "cuda"
	MPS  Device = "mps"
)

// Info describes the host.
type Info struct {
	Device      Device
	OS          string
	Arch        string
	CPUFeatures []string
	HasAudio    bool
	IsCI        bool
}

func (i Info) String() string {
	return fmt.Sprintf("Device{%s, %s/%s, features: %s}", i.Device, i.OS, i.Arch, strings.Join(i.CPUFeatures, ","))
}

// hostView abstracts the host so detection can be tested.
type hostView struct {
	goos     string
	goarch   string
	lookPath func(string) (string, error)
	exists   func(string) bool
	readFile func(string) ([]byte, error)
	getenv   func(string) string
}

var host = hostView{
	goos:     runtime.GOOS,
	goarch:   runtime.GOARCH,
	lookPath: exec.LookPath,
	exists: func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	},
	readFile: os.ReadFile,
	getenv:   os.Getenv,
}

// Detect inspects the current host.
func Detect() Info {
	info := host.detect()
	log.Debug("Device detected",
		"device", info.Device,
		"os", info.OS,
		"arch", info.Arch,
		"features", strings.Join(info.CPUFeatures, ","),
		"audio", info.HasAudio)
	return info
}

func (p hostView) detect() Info {
	return Info{
		Device:      p.device(),
		OS:          p.goos,
		Arch:        p.goarch,
		CPUFeatures: cpuFeatures(),
		HasAudio:    p.hasAudio(),
		IsCI:        p.isCI(),
	}
}

// device prefers CUDA, then Apple Silicon, then CPU.
func (p hostView) device() Device {
	if _, err := p.lookPath("nvidia-smi"); err == nil {
		return CUDA
	}
	if p.exists("/dev/nvidia0") {
		return CUDA
	}
	if p.goos == "darwin" && p.goarch == "arm64" {
		return MPS
	}
	return CPU
}

func (p hostView) hasAudio() bool {
	switch p.goos {
	case "linux":
		if p.exists("/dev/snd") {
			return true
		}
		if data, err := p.readFile("/proc/asound/cards"); err == nil {
			return len(data) > 0 && !strings.Contains(string(data), "no soundcards")
		}
		_, err := p.lookPath("pactl")
		return err == nil
	case "darwin", "windows":
		return true
	default:
		return false
	}
}

func (p hostView) isCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "BUILDKITE", "JENKINS_URL"} {
		if p.getenv(v) != "" {
			return true
		}
	}
	return false
}

func cpuFeatures() []string {
	var fs []string
	add := func(ok bool, name string) {
		if ok {
			fs = append(fs, name)
		}
	}

	add(cpu.X86.HasSSE42, "sse4.2")
	add(cpu.X86.HasAVX, "avx")
	add(cpu.X86.HasAVX2, "avx2")
	add(cpu.X86.HasFMA, "fma")
	add(cpu.X86.HasAVX512F, "avx512f")
	add(cpu.ARM64.HasASIMD, "neon")
	add(cpu.ARM64.HasSVE, "sve")
	return fs
}
