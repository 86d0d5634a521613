// Package pipeline converts an EPUB into a chaptered M4B: chapter
// extraction, chunking, synthesis, chapter WAVs, metadata and the final
// merge. It also runs engine benchmarks on a fixed chunk set.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/audio"
	"github.com/dgnsrekt/epub2m4b/internal/cache"
	"github.com/dgnsrekt/epub2m4b/internal/epubtext"
	"github.com/dgnsrekt/epub2m4b/internal/m4b"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/tts/chunk"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// ErrChapterFailed is returned when every chunk of a chapter failed.
var ErrChapterFailed = errors.New("chapter synthesis failed")

// DefaultRetryBase is the first backoff delay between synthesis attempts.
const DefaultRetryBase = 500 * time.Millisecond

// Merger joins chapter WAVs into the final audiobook.
type Merger interface {
	Merge(ctx context.Context, wavs []string, metadataPath, out string) error
}

// Options controls a conversion.
type Options struct {
	OutputDir       string
	Voice           string
	Speed           float64
	Workers         int
	Retries         int
	RetryBase       time.Duration
	ChunkGap        time.Duration
	MinChapterChars int
	KeepTemp        bool
}

// OptionsFrom maps the application config.
func OptionsFrom(cfg tts.Config) Options {
	return Options{
		OutputDir:       cfg.Output,
		Voice:           cfg.Voice,
		Speed:           cfg.Speed,
		Workers:         cfg.Workers,
		Retries:         cfg.Retries,
		RetryBase:       DefaultRetryBase,
		ChunkGap:        cfg.ChunkGap,
		MinChapterChars: cfg.MinChapterChars,
		KeepTemp:        cfg.KeepTemp,
	}
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}

func (o Options) speed() float64 {
	if o.Speed <= 0 {
		return 1.0
	}
	return o.Speed
}

func (o Options) retryBase() time.Duration {
	if o.RetryBase <= 0 {
		return DefaultRetryBase
	}
	return o.RetryBase
}

// ChapterAudio is one rendered chapter.
type ChapterAudio struct {
	Index    int
	Path     string
	Title    string
	Duration time.Duration
	Chunks   int
	Failed   int
	GenTime  time.Duration
}

// Result summarizes a finished conversion.
type Result struct {
	JobID    string
	Output   string
	Title    string
	Chapters []ChapterAudio
	// Skipped holds the titles of chapters that normalized to nothing.
	Skipped []string
	Audio   time.Duration
	Gen     time.Duration
	Elapsed time.Duration
	Size    int64
}

// RTF is total generation time over total audio time.
func (r *Result) RTF() float64 {
	return Progress{Audio: r.Audio, Gen: r.Gen}.RTF()
}

// Converter runs conversions. Engine, Chunker and Merger are required.
type Converter struct {
	Engine   tts.Engine
	Chunker  *chunk.Chunker
	Cache    cache.Store
	Merger   Merger
	Options  Options
	Reporter Reporter
	Logger   *log.Logger
}

func (c *Converter) logger() *log.Logger {
	if c.Logger == nil {
		return log.Default()
	}
	return c.Logger
}

func (c *Converter) store() cache.Store {
	if c.Cache == nil {
		return cache.Nop{}
	}
	return c.Cache
}

func (c *Converter) reporter() Reporter {
	if c.Reporter == nil {
		return Discard
	}
	return c.Reporter
}

// Paths returns the output file and temp directory for an EPUB.
func (c *Converter) Paths(epubPath string) (out, tempDir string) {
	base := filepath.Base(epubPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(c.Options.OutputDir, stem+".m4b"), filepath.Join(c.Options.OutputDir, stem+"_temp")
}

// Convert turns the EPUB at epubPath into an M4B in Options.OutputDir.
func (c *Converter) Convert(ctx context.Context, epubPath string) (*Result, error) {
	started := time.Now()
	jobID := uuid.NewString()
	logger := c.logger().With("job", jobID[:8])
	report := c.reporter().Report

	book, err := epubtext.OpenWith(epubPath, epubtext.Options{
		MinChars: c.Options.MinChapterChars,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	if len(book.Chapters) == 0 {
		return nil, fmt.Errorf("%w: %s", epubtext.ErrNoChapters, epubPath)
	}

	var (
		chapters []epubtext.Chapter
		chunks   [][]string
		skipped  []string
		progress Progress
	)
	for _, ch := range book.Chapters {
		cs := c.Chunker.Process(ch.Text)
		if len(cs) == 0 {
			logger.Warn("Chapter has no speakable text, skipping", "chapter", ch.Index+1, "title", ch.Title)
			skipped = append(skipped, ch.Title)
			continue
		}
		chapters = append(chapters, ch)
		chunks = append(chunks, cs)
		progress.ChunksTotal += len(cs)
	}
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: %s has no speakable text", epubtext.ErrNoChapters, epubPath)
	}

	out, tempDir := c.Paths(epubPath)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	logger.Info("Starting conversion",
		"book", book.Title,
		"chapters", len(chapters),
		"chunks", progress.ChunksTotal,
		"engine", c.Engine.GetInfo().Name)

	event := func(kind EventKind) Event {
		return Event{
			Kind:        kind,
			JobID:       jobID,
			Book:        book.Title,
			Chapters:    len(chapters),
			ChunksDone:  progress.ChunksDone,
			ChunksTotal: progress.ChunksTotal,
			Audio:       progress.Audio,
			Gen:         progress.Gen,
			RTF:         progress.RTF(),
			ETA:         progress.ETA(),
			Output:      out,
		}
	}
	report(event(EventStart))

	sampleRate := c.Engine.GetInfo().SampleRate
	result := &Result{JobID: jobID, Output: out, Title: book.Title, Skipped: skipped}

	for i, ch := range chapters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e := event(EventChapterStart)
		e.Chapter, e.Title = i, ch.Title
		report(e)

		chapterStart := time.Now()
		done := progress.ChunksDone
		segments, failed, err := c.SynthesizeChunks(ctx, chunks[i], func(bool) {
			done++
			e := event(EventChunk)
			e.Chapter, e.Title = i, ch.Title
			e.ChunksDone = done
			e.Gen = progress.Gen + time.Since(chapterStart)
			e.ETA = Progress{ChunksDone: done, ChunksTotal: progress.ChunksTotal, Gen: e.Gen}.ETA()
			report(e)
		})
		if err != nil {
			return nil, err
		}
		if len(segments) == 0 {
			return nil, fmt.Errorf("%w: chapter %d (%s): %d of %d chunks failed",
				ErrChapterFailed, i+1, ch.Title, failed, len(chunks[i]))
		}

		wavPath := filepath.Join(tempDir, fmt.Sprintf("chapter_%03d.wav", i+1))
		if _, err := audio.WriteWAV(wavPath, sampleRate, segments, c.Options.ChunkGap); err != nil {
			return nil, fmt.Errorf("write chapter %d: %w", i+1, err)
		}
		dur, err := audio.Duration(wavPath)
		if err != nil {
			return nil, fmt.Errorf("measure chapter %d: %w", i+1, err)
		}
		gen := time.Since(chapterStart)

		progress.ChunksDone += len(chunks[i])
		progress.Audio += dur
		progress.Gen += gen

		result.Chapters = append(result.Chapters, ChapterAudio{
			Index:    i,
			Path:     wavPath,
			Title:    ch.Title,
			Duration: dur,
			Chunks:   len(chunks[i]),
			Failed:   failed,
			GenTime:  gen,
		})

		e = event(EventChapterDone)
		e.Chapter, e.Title, e.Failed = i, ch.Title, failed
		report(e)
	}

	metadataPath := filepath.Join(tempDir, "metadata.txt")
	marks := make([]m4b.ChapterMark, len(result.Chapters))
	wavs := make([]string, len(result.Chapters))
	for i, ch := range result.Chapters {
		marks[i] = m4b.ChapterMark{Title: ch.Title, Duration: ch.Duration}
		wavs[i] = ch.Path
	}
	if err := m4b.WriteMetadataFile(metadataPath, m4b.Meta{Title: book.Title, Authors: book.Authors}, marks); err != nil {
		return nil, err
	}

	report(event(EventMerge))
	if err := c.Merger.Merge(ctx, wavs, metadataPath, out); err != nil {
		return nil, err
	}

	if !c.Options.KeepTemp {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warn("Could not remove temp files", "dir", tempDir, "err", err)
		}
	}

	if info, err := os.Stat(out); err == nil {
		result.Size = info.Size()
	}
	result.Audio = progress.Audio
	result.Gen = progress.Gen
	result.Elapsed = time.Since(started)

	logger.Info("Conversion complete",
		"output", out,
		"size", humanize.Bytes(uint64(result.Size)),
		"audio", result.Audio.Round(time.Second),
		"elapsed", result.Elapsed.Round(time.Second),
		"rtf", fmt.Sprintf("%.2f", result.RTF()))

	report(event(EventDone))
	return result, nil
}
