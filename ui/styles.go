package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

const ellipsis = "…"

var (
	green   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	red     = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	gray    = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	fuchsia = lipgloss.Color("#EE6FF8")
	cream   = lipgloss.AdaptiveColor{Light: "#FFFDF5", Dark: "#FFFDF5"}
)

var (
	logoStyle = lipgloss.NewStyle().
			Foreground(cream).
			Background(lipgloss.Color("#5A56E0")).
			Bold(true).
			Padding(0, 1)

	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(gray)
	doneStyle    = lipgloss.NewStyle().Foreground(green)
	errStyle     = lipgloss.NewStyle().Foreground(red)
	spinnerStyle = lipgloss.NewStyle().Foreground(fuchsia)
)

var spinners = map[string]spinner.Spinner{
	"dot":       spinner.Dot,
	"line":      spinner.Line,
	"minidot":   spinner.MiniDot,
	"jump":      spinner.Jump,
	"pulse":     spinner.Pulse,
	"points":    spinner.Points,
	"meter":     spinner.Meter,
	"ellipsis":  spinner.Ellipsis,
	"hamburger": spinner.Hamburger,
}

func spinnerFor(name string) spinner.Spinner {
	if s, ok := spinners[name]; ok {
		return s
	}
	return spinner.Dot
}

// fit truncates s to width terminal cells and pads it on the right so
// columns line up regardless of wide runes.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		s = truncate.StringWithTail(s, uint(width), ellipsis)
	}
	return runewidth.FillRight(s, width)
}
