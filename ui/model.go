package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
)

type (
	eventMsg pipeline.Event

	doneMsg struct {
		result *pipeline.Result
		err    error
	}
)

type chapterLine struct {
	n      int
	title  string
	audio  time.Duration
	failed int
}

type model struct {
	cfg    Config
	label  string
	cancel context.CancelFunc

	spinner spinner.Model
	bar     progress.Model

	last      pipeline.Event
	started   bool
	merging   bool
	history   []chapterLine
	prevAudio time.Duration

	quitting bool
	done     bool
	result   *pipeline.Result
	err      error
}

func newModel(cfg Config, label string, cancel context.CancelFunc) model {
	barOpts := []progress.Option{progress.WithDefaultGradient(), progress.WithWidth(cfg.Width)}
	if cfg.NoColor {
		barOpts = append(barOpts, progress.WithColorProfile(termenv.Ascii))
	}
	if cancel == nil {
		cancel = func() {}
	}

	return model{
		cfg:     cfg,
		label:   label,
		cancel:  cancel,
		spinner: spinner.New(spinner.WithSpinner(spinnerFor(cfg.Spinner)), spinner.WithStyle(spinnerStyle)),
		bar:     progress.New(barOpts...),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.quitting {
				m.quitting = true
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = max(10, min(msg.Width-4, m.cfg.Width))
		return m, nil

	case eventMsg:
		m.apply(pipeline.Event(msg))
		return m, nil

	case doneMsg:
		m.done = true
		m.result, m.err = msg.result, msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) apply(e pipeline.Event) {
	m.last = e
	switch e.Kind {
	case pipeline.EventStart:
		m.started = true
	case pipeline.EventChapterDone:
		m.history = append(m.history, chapterLine{
			n:      e.Chapter + 1,
			title:  e.Title,
			audio:  e.Audio - m.prevAudio,
			failed: e.Failed,
		})
		m.prevAudio = e.Audio
		if extra := len(m.history) - m.cfg.History; extra > 0 {
			m.history = m.history[extra:]
		}
	case pipeline.EventMerge:
		m.merging = true
	}
}

func (m model) percent() float64 {
	if m.last.ChunksTotal <= 0 {
		return 0
	}
	return float64(m.last.ChunksDone) / float64(m.last.ChunksTotal)
}

func (m model) titleWidth() int {
	return max(10, m.bar.Width-16)
}

func (m model) View() string {
	var b strings.Builder

	header := m.label
	if m.last.Book != "" {
		header = m.last.Book
	}
	fmt.Fprintf(&b, "\n  %s %s\n\n", logoStyle.Render("epub2m4b"), titleStyle.Render(header))

	for _, h := range m.history {
		mark := doneStyle.Render("✓")
		if h.failed > 0 {
			mark = errStyle.Render("!")
		}
		fmt.Fprintf(&b, "  %s %3d  %s %s\n", mark, h.n, fit(h.title, m.titleWidth()),
			subtleStyle.Render(h.audio.Round(time.Second).String()))
	}

	switch {
	case m.done:
		m.resultView(&b)
		return b.String()
	case !m.started:
		fmt.Fprintf(&b, "  %s Reading %s\n", m.spinner.View(), filepath.Base(m.label))
	case m.merging:
		fmt.Fprintf(&b, "  %s Merging into %s\n", m.spinner.View(), filepath.Base(m.last.Output))
	default:
		fmt.Fprintf(&b, "  %s Chapter %d/%d  %s\n", m.spinner.View(),
			m.last.Chapter+1, m.last.Chapters, fit(m.last.Title, m.titleWidth()))
	}

	fmt.Fprintf(&b, "\n  %s\n", m.bar.ViewAs(m.percent()))
	fmt.Fprintf(&b, "  %s\n", subtleStyle.Render(m.stats()))

	if m.quitting {
		b.WriteString("\n  " + subtleStyle.Render("Stopping…") + "\n")
	} else {
		b.WriteString("\n  " + subtleStyle.Render("q quit") + "\n")
	}
	return b.String()
}

func (m model) stats() string {
	parts := []string{fmt.Sprintf("chunks %d/%d", m.last.ChunksDone, m.last.ChunksTotal)}
	if m.last.RTF > 0 {
		parts = append(parts, fmt.Sprintf("RTF %.2f", m.last.RTF))
	}
	if m.last.ETA > 0 {
		parts = append(parts, "ETA "+pipeline.FormatETA(m.last.ETA))
	}
	if failed := m.failed(); failed > 0 {
		parts = append(parts, fmt.Sprintf("failed %d", failed))
	}
	return strings.Join(parts, " · ")
}

func (m model) failed() int {
	n := 0
	for _, h := range m.history {
		n += h.failed
	}
	return n
}

func (m model) resultView(b *strings.Builder) {
	if m.err != nil {
		fmt.Fprintf(b, "\n  %s %v\n\n", errStyle.Render("✗"), m.err)
		return
	}
	if m.result == nil {
		return
	}
	r := m.result
	fmt.Fprintf(b, "\n  %s %s\n", doneStyle.Render("✓"), r.Output)
	fmt.Fprintf(b, "  %s\n\n", subtleStyle.Render(fmt.Sprintf("%d chapters · %s audio · %s · RTF %.2f",
		len(r.Chapters), r.Audio.Round(time.Second), humanize.Bytes(uint64(r.Size)), r.RTF())))
}
