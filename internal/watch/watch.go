// Package watch reports EPUB files that land in a directory once they have
// stopped changing.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file must be quiet before it is reported.
const DefaultSettle = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	Settle time.Duration
	Logger *log.Logger
}

// Watcher watches one directory.
type Watcher struct {
	dir    string
	settle time.Duration
	logger *log.Logger

	fsw   *fsnotify.Watcher
	ready chan string
	done  chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// New starts watching dir.
func New(dir string, opts Options) (*Watcher, error) {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	opts.Logger.Info("Watching directory", "dir", dir)

	return &Watcher{
		dir:    dir,
		settle: opts.Settle,
		logger: opts.Logger,
		fsw:    fsw,
		ready:  make(chan string, 16),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}, nil
}

// Eligible reports whether path names a finished, visible EPUB.
func Eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".epub")
}

// Existing lists eligible files already in the directory, sorted by name.
func (w *Watcher) Existing() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && Eligible(e.Name()) {
			paths = append(paths, filepath.Join(w.dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Run sends each settled EPUB path on out until ctx ends. It stops every
// pending timer, closes the underlying watcher and closes out before
// returning. Run must be called at most once.
func (w *Watcher) Run(ctx context.Context, out chan<- string) error {
	defer close(out)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "dir", w.dir, "err", err)

		case path := <-w.ready:
			if _, err := os.Stat(path); err != nil {
				w.logger.Debug("Settled file vanished", "file", path)
				continue
			}
			select {
			case out <- path:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !Eligible(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if t, ok := w.timers[event.Name]; ok {
			t.Stop()
			delete(w.timers, event.Name)
		}
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.logger.Debug("File changed", "file", event.Name, "op", event.Op)

	if t, ok := w.timers[event.Name]; ok {
		t.Reset(w.settle)
		return
	}
	path := event.Name
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	close(w.done)
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	w.mu.Unlock()
	_ = w.fsw.Close()
}
