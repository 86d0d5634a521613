package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/epub2m4b/internal/audio"
	"github.com/dgnsrekt/epub2m4b/internal/device"
	"github.com/dgnsrekt/epub2m4b/internal/mdtext"
	"github.com/dgnsrekt/epub2m4b/tts"
)

// previewAhead is how many synthesized chunks may wait for playback.
const previewAhead = 2

const previewText = "It was the best of times, it was the worst of times. " +
	"Call me Ishmael. Some years ago, never mind how long precisely, I thought I would sail about a little."

var (
	previewOut      string
	previewVolume   float64
	previewFile     string
	previewMarkdown bool

	previewCmd = &cobra.Command{
		Use:   "preview [TEXT]",
		Short: "Speak a short text with the configured voice",
		Long: paragraph(fmt.Sprintf("\n%s the current engine and voice settings before converting a whole book. "+
			"Text comes from --file, the arguments, stdin when it is a pipe, or a built-in sample. "+
			"Markdown files are read as plain prose.", keyword("Try"))),
		Example: paragraph("epub2m4b preview\nepub2m4b preview --voice narrator \"Chapter one.\"\necho hello | epub2m4b preview --out hello.wav\nepub2m4b preview --file notes.md"),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			expandPaths(&cfg)

			text, err := previewSource(previewFile, args, os.Stdin)
			if err != nil {
				return err
			}

			if previewOut == "" && !device.Detect().HasAudio {
				return errors.New("no audio output device found, use --out to write a WAV file instead")
			}

			chunker, err := newChunker(cfg, log.Default())
			if err != nil {
				return err
			}
			engine, err := newEngine(cfg.Engine, cfg, log.Default())
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			chunks := chunker.Process(text)
			rate := engine.GetInfo().SampleRate
			segments := audio.Prefetch(ctx, len(chunks), previewAhead, func(ctx context.Context, i int) ([]byte, error) {
				return engine.Synthesize(ctx, chunks[i], cfg.Speed)
			})

			if previewOut != "" {
				pcm := make([][]byte, 0, len(chunks))
				for s := range segments {
					if s.Err != nil {
						return s.Err
					}
					pcm = append(pcm, s.PCM)
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				d, err := audio.WriteWAV(previewOut, rate, pcm, cfg.ChunkGap)
				if err != nil {
					return err
				}
				fmt.Printf("%s %s (%s)\n", heading("Wrote"), previewOut, d.Round(time.Millisecond))
				return nil
			}

			player, err := audio.NewPlayer(rate)
			if err != nil {
				return err
			}
			if err := player.SetVolume(previewVolume); err != nil {
				return err
			}
			played, err := playSegments(ctx, player.Play, segments, audio.Silence(rate, cfg.ChunkGap), engine.GetInfo())
			if err != nil {
				return err
			}
			log.Debug("Preview finished", "chunks", len(chunks), "audio", played.Round(time.Millisecond))
			return nil
		},
	}
)

// playSegments plays each segment followed by gap and returns the audio
// time played, not counting gaps.
func playSegments(ctx context.Context, play func(context.Context, []byte) error, segments <-chan audio.Segment, gap []byte, info tts.EngineInfo) (time.Duration, error) {
	var played time.Duration
	for s := range segments {
		if s.Err != nil {
			return played, s.Err
		}
		if err := play(ctx, append(s.PCM, gap...)); err != nil {
			return played, err
		}
		played += info.AudioDuration(s.PCM)
	}
	return played, nil
}

func init() {
	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "", "write a WAV file instead of playing")
	previewCmd.Flags().Float64Var(&previewVolume, "volume", 1.0, "playback volume between 0 and 1")
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "read the text from a file")
	previewCmd.Flags().BoolVar(&previewMarkdown, "markdown", false, "treat the input as Markdown")
	previewCmd.Flags().StringP("voice", "v", "", "voice name, model path or alias")
	previewCmd.Flags().StringP("engine", "e", "", "speech engine (piper or mock)")

	previewCmd.PreRun = func(cmd *cobra.Command, _ []string) {
		bindFlags(cmd, map[string]string{"voice": "voice", "engine": "engine"})
	}
}

// previewSource reads the preview text, reducing Markdown to prose when
// the file extension or --markdown says so.
func previewSource(file string, args []string, stdin *os.File) (string, error) {
	var (
		text     string
		markdown = previewMarkdown
	)
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		text = string(b)
		markdown = markdown || mdtext.IsMarkdownFile(file)
	} else {
		t, err := previewInput(args, stdin)
		if err != nil {
			return "", err
		}
		text = t
	}

	if markdown {
		text = mdtext.PlainText([]byte(text))
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("nothing to speak")
	}
	return text, nil
}

// previewInput picks the text to speak.
func previewInput(args []string, stdin *os.File) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	if pipe, err := isPipe(stdin); err == nil && pipe {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	}
	return previewText, nil
}

func isPipe(f *os.File) (bool, error) {
	stat, err := f.Stat()
	if err != nil {
		return false, err
	}
	return stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0, nil
}
