package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// EventKind identifies a progress event.
type EventKind int

const (
	EventStart EventKind = iota
	EventChapterStart
	EventChunk
	EventChapterDone
	EventMerge
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventChapterStart:
		return "chapter-start"
	case EventChunk:
		return "chunk"
	case EventChapterDone:
		return "chapter-done"
	case EventMerge:
		return "merge"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event reports conversion progress.
type Event struct {
	Kind  EventKind
	JobID string
	Book  string

	Chapter  int // zero-based
	Chapters int
	Title    string

	ChunksDone  int
	ChunksTotal int
	Failed      int

	Audio time.Duration
	Gen   time.Duration
	RTF   float64
	ETA   time.Duration

	Output string
}

// Reporter receives progress events. Implementations must be safe for
// concurrent use.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// LogReporter logs events. Chunk events are throttled.
type LogReporter struct {
	logger *log.Logger

	mu        sync.Mutex
	sometimes rate.Sometimes
}

// NewLogReporter logs to logger, reporting chunk progress at most once per
// interval.
func NewLogReporter(logger *log.Logger, interval time.Duration) *LogReporter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogReporter{
		logger:    logger,
		sometimes: rate.Sometimes{First: 1, Interval: interval},
	}
}

func (r *LogReporter) Report(e Event) {
	switch e.Kind {
	case EventStart:
		r.logger.Info("Converting", "book", e.Book, "chapters", e.Chapters, "chunks", e.ChunksTotal)
	case EventChapterStart:
		r.logger.Info("Chapter", "n", fmt.Sprintf("%d/%d", e.Chapter+1, e.Chapters), "title", e.Title)
	case EventChunk:
		r.mu.Lock()
		defer r.mu.Unlock()
		r.sometimes.Do(func() {
			r.logger.Info("Progress", "chunks", fmt.Sprintf("%d/%d", e.ChunksDone, e.ChunksTotal), "eta", FormatETA(e.ETA))
		})
	case EventChapterDone:
		r.logger.Info("Chapter done",
			"n", e.Chapter+1,
			"audio", e.Audio.Round(time.Second),
			"rtf", fmt.Sprintf("%.2f", e.RTF),
			"eta", FormatETA(e.ETA),
			"failed", e.Failed)
	case EventMerge:
		r.logger.Info("Merging", "output", e.Output)
	case EventDone:
		r.logger.Info("Done", "output", e.Output, "audio", e.Audio.Round(time.Second), "rtf", fmt.Sprintf("%.2f", e.RTF))
	}
}

// Progress accumulates running totals for RTF and ETA.
type Progress struct {
	ChunksDone  int
	ChunksTotal int
	Audio       time.Duration
	Gen         time.Duration
}

// RTF is generation time over audio time. Below 1 is faster than real time.
func (p Progress) RTF() float64 {
	if p.Audio <= 0 {
		return 0
	}
	return p.Gen.Seconds() / p.Audio.Seconds()
}

// ETA is the remaining chunk count times the mean generation time per
// chunk so far.
func (p Progress) ETA() time.Duration {
	if p.ChunksDone <= 0 || p.ChunksDone >= p.ChunksTotal {
		return 0
	}
	avg := p.Gen / time.Duration(p.ChunksDone)
	return avg * time.Duration(p.ChunksTotal-p.ChunksDone)
}

// FormatETA renders d as HHhMMm from one hour up and MMmSSs below.
func FormatETA(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02dh%02dm", h, m)
	}
	return fmt.Sprintf("%02dm%02ds", m, s)
}
