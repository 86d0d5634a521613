package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/utils"
)

var (
	benchEngines []string
	benchOut     string

	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Compare speech engines on a fixed literary corpus",
		Long: paragraph(fmt.Sprintf("\n%s each engine on the same chunks of classic prose and report generation time, "+
			"audio length and real-time factor. Use engine:voice to compare piper voices.", keyword("Benchmark"))),
		Example: paragraph("epub2m4b bench\nepub2m4b bench --engines mock,piper:en_US-lessac-medium,piper:en_GB-alba-medium"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			expandPaths(&cfg)

			engines, err := benchTargets(cfg, benchEngines, log.Default())
			if err != nil {
				return err
			}
			chunker, err := newChunker(cfg, log.Default())
			if err != nil {
				return err
			}
			chunks := pipeline.CorpusChunks(chunker)

			out := benchOut
			if out == "" {
				out = filepath.Join(cfg.Output, "bench")
			}
			log.Info("Benchmarking", "engines", len(engines), "chunks", len(chunks), "output", out)

			results, err := pipeline.Benchmark(cmd.Context(), engines, chunks, out, log.Default())
			if err != nil {
				return err
			}

			fmt.Println(benchTable(results))
			if fastest, slowest, factor, ok := pipeline.Speedup(results); ok {
				fmt.Printf("\n%s is %.1fx faster than %s\n", heading(fastest.Name), factor, slowest.Name)
			}
			return nil
		},
	}
)

func init() {
	benchCmd.Flags().StringSliceVarP(&benchEngines, "engines", "e", []string{"mock", "piper"}, "engines to compare, optionally engine:voice")
	benchCmd.Flags().StringVarP(&benchOut, "out", "o", "", "directory for the bench_<engine>.wav files")
}

// benchTargets turns engine specs into lazily constructed engines so
// initialization time is part of the measurement.
func benchTargets(cfg tts.Config, specs []string, logger *log.Logger) ([]pipeline.NamedEngine, error) {
	engines := make([]pipeline.NamedEngine, 0, len(specs))
	for _, spec := range specs {
		name, voiceID, _ := strings.Cut(strings.TrimSpace(spec), ":")
		name = strings.ToLower(name)
		if name != "piper" && name != "mock" {
			return nil, fmt.Errorf("%w: unknown engine %q", tts.ErrInvalidConfig, name)
		}

		c := cfg
		label := name
		if voiceID != "" {
			c.Voice = voiceID
			label = name + "-" + utils.Stem(voiceID)
		}
		engines = append(engines, pipeline.NamedEngine{
			Name: label,
			New:  func() (tts.Engine, error) { return newEngine(name, c, logger) },
		})
	}
	return engines, nil
}

func benchTable(results []pipeline.BenchResult) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	failed := cellStyle.Foreground(lipgloss.Color("204"))

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Engine", "Init", "Generation", "Audio", "RTF", "Failed")

	for _, r := range results {
		if r.Err != nil {
			t.Row(r.Name, r.Init.Round(time.Millisecond).String(), "error", r.Err.Error(), "-", "-")
			continue
		}
		t.Row(
			r.Name,
			r.Init.Round(time.Millisecond).String(),
			r.Gen.Round(time.Millisecond).String(),
			r.Audio.Round(time.Second).String(),
			fmt.Sprintf("%.3f", r.RTF()),
			fmt.Sprintf("%d/%d", r.Failed, r.Chunks),
		)
	}

	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return header
		case row >= 0 && row < len(results) && results[row].Err != nil:
			return failed
		default:
			return cellStyle
		}
	})
	return t.String()
}
