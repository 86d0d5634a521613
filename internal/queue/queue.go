package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// Job is one book waiting for conversion.
type Job struct {
	Path     string
	Priority int // higher runs first
	Added    time.Time
}

// Stats tracks queue metrics.
type Stats struct {
	TotalEnqueued   int64
	TotalDequeued   int64
	TotalDuplicates int64
	CurrentSize     int
	PeakSize        int
	LastEnqueue     time.Time
	LastDequeue     time.Time
	AverageWaitTime time.Duration
}

// Queue is a bounded, deduplicating priority queue of jobs. It is safe for
// concurrent use.
type Queue struct {
	items   jobHeap
	pending map[string]bool
	seq     uint64
	maxSize int

	mu       sync.Mutex
	notEmpty *sync.Cond

	closed    bool
	stats     Stats
	totalWait time.Duration
}

// New creates a queue holding at most maxSize jobs.
func New(maxSize int) *Queue {
	q := &Queue{
		pending: make(map[string]bool),
		maxSize: maxSize,
	}
	heap.Init(&q.items)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a job. It reports false when the path is already waiting.
func (q *Queue) Enqueue(job Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, ErrQueueClosed
	}
	if q.pending[job.Path] {
		q.stats.TotalDuplicates++
		return false, nil
	}
	if q.items.Len() >= q.maxSize {
		return false, ErrQueueFull
	}

	if job.Added.IsZero() {
		job.Added = time.Now()
	}
	q.seq++
	heap.Push(&q.items, &item{job: job, seq: q.seq})
	q.pending[job.Path] = true

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if n := q.items.Len(); n > q.stats.PeakSize {
		q.stats.PeakSize = n
	}
	q.stats.CurrentSize = q.items.Len()

	q.notEmpty.Signal()
	return true, nil
}

// Dequeue blocks until a job is available, the queue is closed or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.notEmpty.Broadcast()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Len() == 0 && !q.closed && ctx.Err() == nil {
		q.notEmpty.Wait()
	}
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if q.closed {
		return Job{}, ErrQueueClosed
	}

	it := heap.Pop(&q.items).(*item)
	delete(q.pending, it.job.Path)

	now := time.Now()
	q.stats.TotalDequeued++
	q.stats.LastDequeue = now
	q.stats.CurrentSize = q.items.Len()
	q.totalWait += now.Sub(it.job.Added)
	q.stats.AverageWaitTime = q.totalWait / time.Duration(q.stats.TotalDequeued)

	return it.job, nil
}

// Size returns the number of waiting jobs.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Stats returns queue metrics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// Close wakes every waiter. Further operations fail with ErrQueueClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.notEmpty.Broadcast()
	return nil
}

type item struct {
	job   Job
	seq   uint64
	index int
}

type jobHeap []*item

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
