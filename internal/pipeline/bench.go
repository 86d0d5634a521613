package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/audio"
	"github.com/dgnsrekt/epub2m4b/internal/corpus"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/tts/chunk"
)

// NamedEngine is a benchmark candidate. New is timed as the engine's
// initialization cost.
type NamedEngine struct {
	Name string
	New  func() (tts.Engine, error)
}

// BenchResult is the outcome for one engine.
type BenchResult struct {
	Name   string
	Init   time.Duration
	Gen    time.Duration
	Audio  time.Duration
	Chunks int
	Failed int
	Path   string
	Err    error
}

// RTF is generation time over audio time.
func (r BenchResult) RTF() float64 {
	return Progress{Audio: r.Audio, Gen: r.Gen}.RTF()
}

// Corpus returns the benchmark text.
func Corpus() string {
	return corpus.Text()
}

// CorpusChunks chunks the benchmark text with c so every engine sees the
// same input a conversion would send.
func CorpusChunks(c *chunk.Chunker) []string {
	return c.Process(Corpus())
}

// Benchmark synthesizes chunks with each engine in turn and writes one WAV
// per engine to outDir. Audio duration is measured from the written file.
// A failing engine is reported in its result and does not stop the run.
func Benchmark(ctx context.Context, engines []NamedEngine, chunks []string, outDir string, logger *log.Logger) ([]BenchResult, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create benchmark dir: %w", err)
	}

	results := make([]BenchResult, 0, len(engines))
	for _, ne := range engines {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		r := benchEngine(ctx, ne, chunks, outDir, logger)
		if r.Err != nil {
			logger.Error("Benchmark failed", "engine", ne.Name, "err", r.Err)
		} else {
			logger.Info("Benchmark", "engine", ne.Name, "audio", r.Audio.Round(time.Millisecond), "rtf", fmt.Sprintf("%.3f", r.RTF()))
		}
		results = append(results, r)
	}
	return results, nil
}

func benchEngine(ctx context.Context, ne NamedEngine, chunks []string, outDir string, logger *log.Logger) BenchResult {
	r := BenchResult{Name: ne.Name, Chunks: len(chunks)}

	start := time.Now()
	engine, err := ne.New()
	r.Init = time.Since(start)
	if err != nil {
		r.Err = fmt.Errorf("init: %w", err)
		return r
	}
	defer func() { _ = engine.Close() }()

	segments := make([][]byte, 0, len(chunks))
	start = time.Now()
	for i, text := range chunks {
		pcm, err := engine.Synthesize(ctx, text, 1.0)
		if err != nil {
			if ctx.Err() != nil {
				r.Err = ctx.Err()
				return r
			}
			logger.Warn("Benchmark chunk failed", "engine", ne.Name, "chunk", i, "err", err)
			r.Failed++
			continue
		}
		segments = append(segments, pcm)
	}
	r.Gen = time.Since(start)

	r.Path = filepath.Join(outDir, fmt.Sprintf("bench_%s.wav", ne.Name))
	if _, err := audio.WriteWAV(r.Path, engine.GetInfo().SampleRate, segments, 0); err != nil {
		r.Err = err
		return r
	}
	r.Audio, r.Err = audio.Duration(r.Path)
	return r
}

// Speedup compares the fastest and slowest successful results by RTF.
// ok is false when fewer than two engines succeeded.
func Speedup(results []BenchResult) (fastest, slowest BenchResult, factor float64, ok bool) {
	n := 0
	for _, r := range results {
		if r.Err != nil || r.Audio <= 0 {
			continue
		}
		if n == 0 || r.RTF() < fastest.RTF() {
			fastest = r
		}
		if n == 0 || r.RTF() > slowest.RTF() {
			slowest = r
		}
		n++
	}
	if n < 2 || fastest.RTF() <= 0 {
		return fastest, slowest, 0, false
	}
	return fastest, slowest, slowest.RTF() / fastest.RTF(), true
}
