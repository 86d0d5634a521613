package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/epub2m4b/internal/cache"
	"github.com/dgnsrekt/epub2m4b/internal/device"
	"github.com/dgnsrekt/epub2m4b/internal/doctor"
	"github.com/dgnsrekt/epub2m4b/internal/subprocess"
	"github.com/dgnsrekt/epub2m4b/tts"
)

var errDoctor = errors.New("missing required dependencies")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that piper, a voice, ffmpeg and the cache are usable",
	Long: paragraph(fmt.Sprintf("\n%s the tools a conversion depends on and print install hints for anything missing.",
		keyword("Check"))),
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		expandPaths(&cfg)

		host := doctor.System(subprocess.New(0, log.Default()))
		report := doctor.Run(cmd.Context(), doctorChecks(cfg, host, device.Detect())...)
		fmt.Println(doctorReport(report))

		if !report.OK() {
			return fmt.Errorf("%w: %s", errDoctor, strings.Join(report.Missing(), ", "))
		}
		return nil
	},
}

func doctorChecks(cfg tts.Config, host doctor.Host, dev device.Info) []doctor.Checker {
	needPiper := cfg.Engine == "piper"
	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir, _ = cache.DefaultDir()
	}

	return []doctor.Checker{
		doctor.Binary{
			Host:        host,
			Name:        "piper",
			Command:     cfg.Piper.Binary,
			Required:    needPiper,
			VersionArgs: []string{"--version"},
			// piper prints a bare version number.
			VersionField: -1,
		},
		doctor.Voice{
			Name:     "voice",
			Required: needPiper,
			Resolve: func() (string, error) {
				id := cfg.Voice
				if id == "" {
					id = cfg.Piper.Model
				}
				if id == "" {
					return "", fmt.Errorf("%w: set voice or piper.model", tts.ErrMissingConfig)
				}
				res, err := voiceRegistry(cfg, log.Default()).Resolve(id)
				if err != nil {
					return "", err
				}
				return res.Model, nil
			},
		},
		doctor.Binary{
			Host:         host,
			Name:         "ffmpeg",
			Command:      cfg.FFmpeg,
			Required:     true,
			VersionArgs:  []string{"-version"},
			VersionField: 2,
		},
		doctor.Audio{HasAudio: dev.HasAudio, Device: string(dev.Device)},
		doctor.WritableDir{Name: "cache", Dir: cacheDir, Required: cfg.Cache.Enabled},
	}
}

var (
	okMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render("✓")
	failMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4672")).Render("✗")
	warnMark = lipgloss.NewStyle().Foreground(lipgloss.Color("#ECFD65")).Render("!")
	hint     = lipgloss.NewStyle().PaddingLeft(4).Render
)

func doctorReport(r doctor.Report) string {
	var b strings.Builder
	b.WriteString(heading("Dependencies") + "\n\n")

	for _, s := range r.Results {
		mark := okMark
		switch {
		case !s.OK && s.Required:
			mark = failMark
		case !s.OK:
			mark = warnMark
		}

		line := fmt.Sprintf("  %s %-7s", mark, s.Name)
		if s.Version != "" {
			line += " " + s.Version
		}
		if s.Path != "" {
			line += " " + subtle(s.Path)
		}
		if s.Detail != "" {
			line += " " + subtle("("+s.Detail+")")
		}
		b.WriteString(line + "\n")

		if !s.OK && s.Instructions != "" {
			b.WriteString(hint(s.Instructions) + "\n")
		}
	}

	if r.OK() {
		b.WriteString("\nReady to convert.")
	} else {
		b.WriteString("\nInstall the missing dependencies above, then run doctor again.")
	}
	return b.String()
}
