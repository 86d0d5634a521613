package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgnsrekt/epub2m4b/internal/cache"
	"github.com/dgnsrekt/epub2m4b/tts"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
)

// SynthesizeChunks synthesizes chunks with up to Options.Workers requests in
// flight. Segments are returned in chunk order; chunks that failed after
// retries are logged and left out. onDone is called after every chunk.
func (c *Converter) SynthesizeChunks(ctx context.Context, chunks []string, onDone func(failed bool)) ([][]byte, int, error) {
	results := make([][]byte, len(chunks))
	var failed atomic.Int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Options.workers())

	for i, text := range chunks {
		g.Go(func() error {
			pcm, err := c.synthesizeChunk(gctx, text)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				kv := append([]any{"chunk", i, "chars", len([]rune(text)), "err", err}, tts.ErrorFields(err)...)
				c.logger().Warn("Chunk failed, skipping", kv...)
				failed.Add(1)
			}

			mu.Lock()
			results[i] = pcm
			if onDone != nil {
				onDone(err != nil)
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, int(failed.Load()), err
	}

	segments := make([][]byte, 0, len(results))
	for _, pcm := range results {
		if len(pcm) > 0 {
			segments = append(segments, pcm)
		}
	}
	return segments, int(failed.Load()), nil
}

// synthesizeChunk serves text from the cache or the engine, retrying
// recoverable engine failures with exponential backoff.
func (c *Converter) synthesizeChunk(ctx context.Context, text string) ([]byte, error) {
	key := cache.Key(c.Engine.GetInfo().Fingerprint(), c.Options.Voice, c.Options.speed(), text)
	if pcm, ok := c.store().Get(key); ok {
		return pcm, nil
	}

	backoff := retry.WithMaxRetries(uint64(c.Options.Retries), retry.NewExponential(c.Options.retryBase()))
	pcm, err := retry.DoValue(ctx, backoff, func(ctx context.Context) ([]byte, error) {
		pcm, err := c.Engine.Synthesize(ctx, text, c.Options.speed())
		if err == nil && len(pcm) == 0 {
			err = fmt.Errorf("%w: engine returned no audio", tts.ErrGenerationFailed)
		}
		if err != nil {
			if ctx.Err() == nil && tts.IsRecoverableError(err) {
				c.logger().Debug("Retrying chunk", append([]any{"err", err}, tts.ErrorFields(err)...)...)
				return nil, retry.RetryableError(err)
			}
			return nil, err
		}
		return pcm, nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.store().Put(key, pcm); err != nil && !errors.Is(err, cache.ErrItemTooLarge) {
		c.logger().Debug("Cache write failed", "err", err)
	}
	return pcm, nil
}
