package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/epub2m4b/internal/cache"
	"github.com/dgnsrekt/epub2m4b/internal/epubtext"
	"github.com/dgnsrekt/epub2m4b/internal/epubtext/fixture"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/dgnsrekt/epub2m4b/tts/chunk"
	"github.com/dgnsrekt/epub2m4b/tts/engines/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRate = 8000

var storyBook = fixture.Book{
	Title:   "The Lane",
	Authors: []string{"A. Writer"},
	Chapters: []fixture.Chapter{
		{Title: "Cover", Body: "<p>Cover</p>"},
		{Title: "Arrival", Body: "<h1>Arrival</h1>" + fixture.Paragraphs(
			"The old house stood at the end of the lane. Its windows were dark.",
			"Nobody had lived there for years. The garden was overgrown with ivy.",
		)},
		{Title: "Departure", Body: "<h1>Departure</h1>" + fixture.Paragraphs(
			"In the morning the fog lifted. She packed her bag and left the key under the mat.",
		)},
	},
}

type fakeMerger struct {
	mu       sync.Mutex
	wavs     []string
	metadata string
	err      error
}

func (m *fakeMerger) Merge(_ context.Context, wavs []string, metadataPath, out string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.wavs = append([]string(nil), wavs...)
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return err
	}
	m.metadata = string(data)
	return os.WriteFile(out, []byte("m4b"), 0o644)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// flakyEngine fails selected calls before delegating to the mock.
type flakyEngine struct {
	*mock.Engine

	mu       sync.Mutex
	failures int
	failErr  error
	failText string
}

func (f *flakyEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	f.mu.Lock()
	if f.failText != "" && strings.Contains(text, f.failText) {
		f.mu.Unlock()
		_, _ = f.Engine.Synthesize(ctx, text, speed)
		return nil, f.failErr
	}
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		_, _ = f.Engine.Synthesize(ctx, text, speed)
		return nil, f.failErr
	}
	f.mu.Unlock()
	return f.Engine.Synthesize(ctx, text, speed)
}

func newConverter(t *testing.T, engine tts.Engine, merger Merger) (*Converter, *recorder) {
	t.Helper()

	ch, err := chunk.New(chunk.DefaultSegmenter(), chunk.WithMaxChars(60), chunk.WithLogger(log.New(&bytes.Buffer{})))
	require.NoError(t, err)

	rec := &recorder{}
	return &Converter{
		Engine:  engine,
		Chunker: ch,
		Merger:  merger,
		Options: Options{
			OutputDir:       t.TempDir(),
			Voice:           "test",
			Speed:           1.0,
			Workers:         3,
			Retries:         2,
			RetryBase:       time.Millisecond,
			MinChapterChars: epubtext.DefaultMinChars,
		},
		Reporter: rec,
		Logger:   log.New(&bytes.Buffer{}),
	}, rec
}

func writeEPUB(t *testing.T, b fixture.Book) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "the-lane.epub")
	require.NoError(t, fixture.Write(path, b))
	return path
}

func newMock() *mock.Engine {
	return mock.New(mock.Config{WordsPerMinute: 600, SampleRate: sampleRate})
}

func TestConvert(t *testing.T) {
	engine := newMock()
	merger := &fakeMerger{}
	c, rec := newConverter(t, engine, merger)

	res, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
	require.NoError(t, err)

	out, tempDir := c.Paths("the-lane.epub")
	assert.Equal(t, out, res.Output)
	assert.Equal(t, filepath.Join(c.Options.OutputDir, "the-lane.m4b"), out)
	assert.FileExists(t, out)
	assert.NoDirExists(t, tempDir)
	assert.Equal(t, int64(3), res.Size)
	assert.Len(t, res.JobID, 36)

	require.Len(t, res.Chapters, 2)
	assert.Equal(t, "Arrival", res.Chapters[0].Title)
	assert.Equal(t, "Departure", res.Chapters[1].Title)
	for i, ch := range res.Chapters {
		assert.Equal(t, filepath.Join(tempDir, fmt.Sprintf("chapter_%03d.wav", i+1)), ch.Path)
		assert.Greater(t, ch.Duration, time.Duration(0))
		assert.Greater(t, ch.Chunks, 0)
		assert.Zero(t, ch.Failed)
	}
	assert.Equal(t, res.Chapters[0].Duration+res.Chapters[1].Duration, res.Audio)
	assert.Greater(t, res.RTF(), 0.0)

	assert.Equal(t, []string{res.Chapters[0].Path, res.Chapters[1].Path}, merger.wavs)
	assert.True(t, strings.HasPrefix(merger.metadata, ";FFMETADATA1\ntitle=The Lane\nartist=A. Writer\n\n[CHAPTER]\n"))
	assert.Contains(t, merger.metadata, "title=Arrival\n")
	assert.Contains(t, merger.metadata, "title=Departure\n")

	total := res.Chapters[0].Chunks + res.Chapters[1].Chunks
	assert.Equal(t, total, engine.Calls())

	require.NotEmpty(t, rec.events)
	assert.Equal(t, EventStart, rec.events[0].Kind)
	assert.Equal(t, total, rec.events[0].ChunksTotal)
	last := rec.events[len(rec.events)-1]
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, total, last.ChunksDone)
	assert.Zero(t, last.ETA)
	assert.Equal(t, 2, rec.count(EventChapterStart))
	assert.Equal(t, 2, rec.count(EventChapterDone))
	assert.Equal(t, total, rec.count(EventChunk))
	assert.Equal(t, 1, rec.count(EventMerge))
}

func TestConvertUsesCache(t *testing.T) {
	store, err := cache.NewManager(cache.Config{Dir: t.TempDir(), DiskCapacity: 64 << 20, CompressionLevel: 3}, log.New(&bytes.Buffer{}))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	engine := newMock()
	c, _ := newConverter(t, engine, &fakeMerger{})
	c.Cache = store
	path := writeEPUB(t, storyBook)

	first, err := c.Convert(context.Background(), path)
	require.NoError(t, err)
	calls := engine.Calls()

	second, err := c.Convert(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, calls, engine.Calls(), "second run served from cache")
	assert.Equal(t, first.Audio, second.Audio)
	assert.Greater(t, store.Stats().Hits, int64(0))
}

func TestCacheKeyedOnEngineFormat(t *testing.T) {
	store := cache.NewMemoryCache(64 << 20)
	chunks := []string{"The fog lifted in the morning."}

	narrow := mock.New(mock.Config{WordsPerMinute: 600, SampleRate: 22050})
	c1, _ := newConverter(t, narrow, &fakeMerger{})
	c1.Cache = store
	first, _, err := c1.SynthesizeChunks(context.Background(), chunks, nil)
	require.NoError(t, err)

	wide := mock.New(mock.Config{WordsPerMinute: 600, SampleRate: 48000})
	c2, _ := newConverter(t, wide, &fakeMerger{})
	c2.Cache = store
	second, _, err := c2.SynthesizeChunks(context.Background(), chunks, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, wide.Calls(), "a different sample rate must not hit the cache")
	require.Len(t, second, 1)
	assert.NotEqual(t, len(first[0]), len(second[0]))

	// Same format again is served from the cache.
	again := mock.New(mock.Config{WordsPerMinute: 600, SampleRate: 48000})
	c3, _ := newConverter(t, again, &fakeMerger{})
	c3.Cache = store
	_, _, err = c3.SynthesizeChunks(context.Background(), chunks, nil)
	require.NoError(t, err)
	assert.Zero(t, again.Calls())
}

func TestConvertKeepTemp(t *testing.T) {
	c, _ := newConverter(t, newMock(), &fakeMerger{})
	c.Options.KeepTemp = true
	c.Options.ChunkGap = 100 * time.Millisecond

	res, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
	require.NoError(t, err)

	_, tempDir := c.Paths("the-lane.epub")
	assert.FileExists(t, filepath.Join(tempDir, "metadata.txt"))
	assert.FileExists(t, filepath.Join(tempDir, "chapter_001.wav"))
	assert.FileExists(t, filepath.Join(tempDir, "chapter_002.wav"))
	assert.Len(t, res.Chapters, 2)
}

func TestConvertRetriesRecoverableErrors(t *testing.T) {
	engine := &flakyEngine{
		Engine:   newMock(),
		failures: 2,
		failErr:  tts.NewTTSError(tts.ErrGenerationFailed, "mock", "synthesize"),
	}
	c, _ := newConverter(t, engine, &fakeMerger{})
	c.Options.Workers = 1

	res, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
	require.NoError(t, err)

	total := res.Chapters[0].Chunks + res.Chapters[1].Chunks
	assert.Equal(t, total+2, engine.Calls())
	assert.Zero(t, res.Chapters[0].Failed)
}

func TestConvertSkipsPermanentFailures(t *testing.T) {
	engine := &flakyEngine{
		Engine:   newMock(),
		failText: "fog",
		failErr:  tts.ErrTextTooLong,
	}
	c, _ := newConverter(t, engine, &fakeMerger{})

	res, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
	require.NoError(t, err)

	total := res.Chapters[0].Chunks + res.Chapters[1].Chunks
	assert.Equal(t, total, engine.Calls(), "permanent errors are not retried")
	assert.Equal(t, 1, res.Chapters[1].Failed)
}

func TestChunkFailureLogsErrorContext(t *testing.T) {
	engine := &flakyEngine{
		Engine:   newMock(),
		failText: "fog",
		failErr:  tts.NewTTSError(tts.ErrTextTooLong, "piper", "synthesize").WithContext("length", 6000),
	}
	c, _ := newConverter(t, engine, &fakeMerger{})
	var logs bytes.Buffer
	c.Logger = log.New(&logs)

	_, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "Chunk failed, skipping")
	assert.Contains(t, out, "component=piper")
	assert.Contains(t, out, "length=6000")
}

func TestConvertSkipsUnspeakableChapters(t *testing.T) {
	divider := fixture.Chapter{Title: "Divider", Body: "<p>" + strings.Repeat("~~ ** __ ", 10) + "</p>"}

	tests := []struct {
		name     string
		chapters []fixture.Chapter
		wantErr  error
		kept     []string
		skipped  []string
	}{
		{
			name:     "symbol-only chapter between prose",
			chapters: []fixture.Chapter{storyBook.Chapters[1], divider, storyBook.Chapters[2]},
			kept:     []string{"Arrival", "Departure"},
			skipped:  []string{"Divider"},
		},
		{
			name:     "nothing speakable",
			chapters: []fixture.Chapter{divider},
			wantErr:  epubtext.ErrNoChapters,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := &fakeMerger{}
			c, _ := newConverter(t, newMock(), merger)

			book := storyBook
			book.Chapters = tt.chapters
			res, err := c.Convert(context.Background(), writeEPUB(t, book))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NoDirExists(t, filepath.Join(c.Options.OutputDir, "the-lane_temp"))
				return
			}
			require.NoError(t, err)

			var titles []string
			for _, ch := range res.Chapters {
				titles = append(titles, ch.Title)
			}
			assert.Equal(t, tt.kept, titles)
			assert.Equal(t, tt.skipped, res.Skipped)
			assert.Len(t, merger.wavs, len(tt.kept))
		})
	}
}

func TestConvertChapterFailure(t *testing.T) {
	engine := newMock()
	engine.SetFailure(tts.ErrVoiceNotFound)
	c, _ := newConverter(t, engine, &fakeMerger{})

	_, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
	assert.ErrorIs(t, err, ErrChapterFailed)
}

func TestConvertErrors(t *testing.T) {
	t.Run("no chapters", func(t *testing.T) {
		c, _ := newConverter(t, newMock(), &fakeMerger{})
		_, err := c.Convert(context.Background(), writeEPUB(t, fixture.Book{
			Title:    "Empty",
			Chapters: []fixture.Chapter{{Body: "<p>Too short.</p>"}},
		}))
		assert.ErrorIs(t, err, epubtext.ErrNoChapters)
	})

	t.Run("missing file", func(t *testing.T) {
		c, _ := newConverter(t, newMock(), &fakeMerger{})
		_, err := c.Convert(context.Background(), filepath.Join(t.TempDir(), "nope.epub"))
		assert.ErrorIs(t, err, epubtext.ErrNotFound)
	})

	t.Run("merge failure", func(t *testing.T) {
		boom := fmt.Errorf("merge exploded")
		c, _ := newConverter(t, newMock(), &fakeMerger{err: boom})
		_, err := c.Convert(context.Background(), writeEPUB(t, storyBook))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled", func(t *testing.T) {
		c, _ := newConverter(t, newMock(), &fakeMerger{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Convert(ctx, writeEPUB(t, storyBook))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSynthesizeChunksKeepsOrder(t *testing.T) {
	engine := mock.New(mock.Config{WordsPerMinute: 60, SampleRate: sampleRate, Delay: time.Millisecond})
	c, _ := newConverter(t, engine, &fakeMerger{})
	c.Options.Workers = 4

	chunks := []string{"one", "one two", "one two three", "one two three four"}
	var done int
	segments, failed, err := c.SynthesizeChunks(context.Background(), chunks, func(bool) { done++ })
	require.NoError(t, err)

	assert.Zero(t, failed)
	assert.Equal(t, len(chunks), done)
	require.Len(t, segments, 4)
	for i := range segments {
		// One second per word at 60 wpm.
		assert.Equal(t, (i+1)*sampleRate*2, len(segments[i]))
	}
}

func TestOptionsFrom(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Workers = 4
	cfg.KeepTemp = true

	o := OptionsFrom(cfg)
	assert.Equal(t, cfg.Output, o.OutputDir)
	assert.Equal(t, 4, o.workers())
	assert.Equal(t, DefaultRetryBase, o.retryBase())
	assert.True(t, o.KeepTemp)

	assert.Equal(t, 1, Options{}.workers())
	assert.Equal(t, 1.0, Options{}.speed())
}
