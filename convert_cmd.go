package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/dgnsrekt/epub2m4b/internal/watch"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/ui"
)

// progressInterval throttles chunk progress lines without the TUI.
const progressInterval = 5 * time.Second

var convertCmd = &cobra.Command{
	Use:   "convert EPUB|DIR...",
	Short: "Convert EPUB files to M4B audiobooks",
	Long: paragraph(fmt.Sprintf("\n%s each EPUB into a chaptered M4B. Chapters are read in spine order, "+
		"split into sentence-sized chunks, synthesized and merged with ffmpeg. "+
		"Directories are searched recursively, honoring .gitignore unless --all is set.", keyword("Convert"))),
	Example: paragraph("epub2m4b convert book.epub\nepub2m4b convert --engine mock --output /tmp/out *.epub\nepub2m4b convert ~/Books"),
	Args:    cobra.MinimumNArgs(1),
	PreRun:  func(cmd *cobra.Command, _ []string) { applyConversionFlags(cmd) },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		expandPaths(&cfg)

		paths, err := expandBookArgs(args, convertAll)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return errors.New("no EPUB files found")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var failed []string
		for _, path := range paths {
			if err := convertOne(ctx, cfg, path); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Error("Conversion failed", "file", path, "err", err)
				failed = append(failed, path)
			}
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d books failed", len(failed), len(paths))
		}
		return nil
	},
}

// conversionFlags maps flag names to config keys.
var conversionFlags = map[string]string{
	"output":    "output",
	"engine":    "engine",
	"voice":     "voice",
	"speed":     "speed",
	"workers":   "workers",
	"max-chars": "max_chars",
	"keep-temp": "keep_temp",
}

var convertAll bool

func init() {
	convertCmd.Flags().AddFlagSet(conversionFlagSet())
	convertCmd.Flags().BoolVarP(&convertAll, "all", "a", false, "include EPUBs ignored by .gitignore when searching directories")
}

// expandBookArgs replaces directory arguments with the EPUBs found beneath
// them, sorted by path. File arguments pass through unchanged.
func expandBookArgs(args []string, all bool) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}

		find := gitcha.FindFilesExcept
		if all {
			find = gitcha.FindAllFilesExcept
		}
		ch, err := find(arg, []string{"*.epub"}, nil)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", arg, err)
		}
		var found []string
		for res := range ch {
			if watch.Eligible(res.Path) {
				found = append(found, res.Path)
			}
		}
		sort.Strings(found)
		log.Debug("Found books", "dir", arg, "count", len(found))
		out = append(out, found...)
	}
	return out, nil
}

// conversionFlagSet declares the flags shared by convert and watch.
func conversionFlagSet() *pflag.FlagSet {
	f := pflag.NewFlagSet("conversion", pflag.ContinueOnError)
	f.StringP("output", "o", "", "output directory")
	f.StringP("engine", "e", "", "speech engine (piper or mock)")
	f.StringP("voice", "v", "", "voice name, model path or alias")
	f.Float64P("speed", "s", 0, "speaking speed multiplier")
	f.IntP("workers", "w", 0, "chunks synthesized in parallel")
	f.Int("max-chars", 0, "longest chunk in characters")
	f.Bool("keep-temp", false, "keep per-chapter WAV files")
	f.Bool("no-cache", false, "disable the synthesis cache")
	return f
}

// applyConversionFlags binds the running command's conversion flags.
func applyConversionFlags(cmd *cobra.Command) {
	bindFlags(cmd, conversionFlags)
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		viper.Set("cache.enabled", false)
	}
}

// convertOne converts a single book, with the progress view when stdout is
// a terminal.
func convertOne(ctx context.Context, cfg tts.Config, path string) error {
	if noTUI {
		conv, closer, err := newConverter(cfg, pipeline.NewLogReporter(log.Default(), progressInterval), log.Default())
		if err != nil {
			return err
		}
		defer closer()

		res, err := conv.Convert(ctx, path)
		if err != nil {
			return err
		}
		printResult(res)
		return nil
	}

	logPath, err := logToFile()
	if err != nil {
		return err
	}

	uiCfg, err := ui.LoadConfig()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	res, err := ui.Run(ctx, uiCfg, path, func(ctx context.Context, r pipeline.Reporter) (*pipeline.Result, error) {
		conv, closer, err := newConverter(cfg, r, log.Default())
		if err != nil {
			return nil, err
		}
		defer closer()
		return conv.Convert(ctx, path)
	})
	if err != nil {
		return fmt.Errorf("%w (log: %s)", err, logPath)
	}
	printResult(res)
	return nil
}

func printResult(res *pipeline.Result) {
	fmt.Printf("%s %s\n", heading("Wrote"), res.Output)
	fmt.Println(subtle(fmt.Sprintf("  %d chapters, %s of audio, %s, RTF %.2f, took %s",
		len(res.Chapters),
		res.Audio.Round(time.Second),
		humanize.Bytes(uint64(res.Size)), //nolint:gosec
		res.RTF(),
		res.Elapsed.Round(time.Second))))
	if len(res.Skipped) > 0 {
		fmt.Println(subtle(fmt.Sprintf("  skipped %d without speakable text: %s",
			len(res.Skipped), strings.Join(res.Skipped, ", "))))
	}
}
