// Package ui renders conversion progress in the terminal.
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/muesli/termenv"
)

// ConvertFunc runs one conversion, sending progress to r.
type ConvertFunc func(ctx context.Context, r pipeline.Reporter) (*pipeline.Result, error)

// Reporter forwards pipeline events into a running program.
type Reporter struct {
	send func(tea.Msg)
}

// NewReporter returns a Reporter that sends to p.
func NewReporter(p *tea.Program) *Reporter {
	return &Reporter{send: p.Send}
}

func (r *Reporter) Report(e pipeline.Event) {
	r.send(eventMsg(e))
}

type outcome struct {
	result *pipeline.Result
	err    error
}

// Run shows a progress view while convert runs. Quitting the view cancels
// the conversion; Run always waits for convert to return.
func Run(ctx context.Context, cfg Config, label string, convert ConvertFunc, opts ...tea.ProgramOption) (*pipeline.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	log.Debug("Starting progress view", "label", label, "alt_screen", cfg.AltScreen)

	p := tea.NewProgram(newModel(cfg, label, cancel), opts...)

	outcomes := make(chan outcome, 1)
	go func() {
		res, err := convert(ctx, NewReporter(p))
		outcomes <- outcome{res, err}
		p.Send(doneMsg{result: res, err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-outcomes
		return nil, err
	}

	o := <-outcomes
	return o.result, o.err
}
