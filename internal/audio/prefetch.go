package audio

import "context"

// Segment is one synthesized chunk handed from the producer to the player.
type Segment struct {
	Index int
	PCM   []byte
	Err   error
}

// ProduceFunc synthesizes the i-th segment.
type ProduceFunc func(ctx context.Context, i int) ([]byte, error)

// Prefetch produces segments 0..n-1 in order on its own goroutine, keeping
// at most ahead finished segments waiting, so playback of one segment
// overlaps synthesis of the next. The channel is closed after the last
// segment, after the first error (delivered as a Segment with Err set), or
// when ctx is done.
func Prefetch(ctx context.Context, n, ahead int, produce ProduceFunc) <-chan Segment {
	if ahead < 0 {
		ahead = 0
	}
	out := make(chan Segment, ahead)

	go func() {
		defer close(out)
		for i := 0; i < n && ctx.Err() == nil; i++ {
			pcm, err := produce(ctx, i)
			select {
			case out <- Segment{Index: i, PCM: pcm, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return out
}
