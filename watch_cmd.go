package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/epub2m4b/internal/pipeline"
	"github.com/dgnsrekt/epub2m4b/internal/queue"
	"github.com/dgnsrekt/epub2m4b/internal/watch"
	"github.com/dgnsrekt/epub2m4b/utils"
)

// watchQueueSize bounds the books waiting for conversion.
const watchQueueSize = 256

var (
	watchSettle        time.Duration
	watchExisting      bool
	watchForce         bool
	watchSmallestFirst bool

	watchCmd = &cobra.Command{
		Use:   "watch DIR",
		Short: "Convert every EPUB dropped into a directory",
		Long: paragraph(fmt.Sprintf("\n%s a directory and convert each EPUB once it stops changing. "+
			"Books are converted one at a time; partial downloads and hidden files are ignored.", keyword("Watch"))),
		Example: paragraph("epub2m4b watch ~/Downloads/books\nepub2m4b watch --smallest-first --output ~/Audiobooks inbox"),
		Args:    cobra.ExactArgs(1),
		PreRun:  func(cmd *cobra.Command, _ []string) { applyConversionFlags(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			expandPaths(&cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conv, closer, err := newConverter(cfg, pipeline.NewLogReporter(log.Default(), progressInterval), log.Default())
			if err != nil {
				return err
			}
			defer closer()

			err = runWatch(ctx, utils.ExpandPath(args[0]), conv)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
)

func init() {
	watchCmd.Flags().AddFlagSet(conversionFlagSet())
	watchCmd.Flags().DurationVar(&watchSettle, "settle", watch.DefaultSettle, "quiet time before a file counts as complete")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", true, "also convert books already in the directory")
	watchCmd.Flags().BoolVar(&watchForce, "force", false, "convert books whose audiobook already exists")
	watchCmd.Flags().BoolVar(&watchSmallestFirst, "smallest-first", false, "convert smaller books first")
}

// bookConverter is the part of pipeline.Converter the watch loop needs.
type bookConverter interface {
	Convert(ctx context.Context, epubPath string) (*pipeline.Result, error)
	Paths(epubPath string) (out, tempDir string)
}

func runWatch(ctx context.Context, dir string, conv bookConverter) error {
	w, err := watch.New(dir, watch.Options{Settle: watchSettle, Logger: log.Default()})
	if err != nil {
		return err
	}

	q := queue.New(watchQueueSize)
	enqueue := func(path string) {
		if !watchForce {
			if out, _ := conv.Paths(path); newerThan(out, path) {
				log.Info("Already converted, skipping", "file", path, "output", out)
				return
			}
		}
		added, err := q.Enqueue(queue.Job{Path: path, Priority: priority(path)})
		switch {
		case err != nil:
			log.Warn("Could not queue book", "file", path, "err", err)
		case added:
			log.Info("Queued", "file", path, "waiting", q.Size())
		}
	}

	if watchExisting {
		existing, err := w.Existing()
		if err != nil {
			return err
		}
		for _, p := range existing {
			enqueue(p)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	paths := make(chan string)

	g.Go(func() error {
		return w.Run(ctx, paths)
	})
	g.Go(func() error {
		defer func() { _ = q.Close() }()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case p, ok := <-paths:
				if !ok {
					return nil
				}
				enqueue(p)
			}
		}
	})
	g.Go(func() error {
		for {
			job, err := q.Dequeue(ctx)
			if err != nil {
				return err
			}
			log.Info("Converting", "file", job.Path, "waited", time.Since(job.Added).Round(time.Second))
			if _, err := conv.Convert(ctx, job.Path); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error("Conversion failed", "file", job.Path, "err", err)
			}
			st := q.Stats()
			log.Debug("Queue", "done", st.TotalDequeued, "waiting", st.CurrentSize, "avg_wait", st.AverageWaitTime.Round(time.Second))
		}
	})

	return g.Wait()
}

// priority orders the queue. Everything is equal unless smaller books
// should go first.
func priority(path string) int {
	if !watchSmallestFirst {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return -int(info.Size() >> 10)
}

// newerThan reports whether a exists and was modified after b.
func newerThan(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return true
	}
	return ai.ModTime().After(bi.ModTime())
}
