package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestQueue_BasicOperations(t *testing.T) {
	q := New(10)
	defer q.Close()

	if size := q.Size(); size != 0 {
		t.Errorf("Expected empty queue, got size %d", size)
	}

	added, err := q.Enqueue(Job{Path: "a.epub"})
	if err != nil || !added {
		t.Fatalf("Enqueue failed: added=%v err=%v", added, err)
	}

	if size := q.Size(); size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}

	job, err := q.Dequeue(context.Background())
	if err != nil {
		t.Errorf("Dequeue failed: %v", err)
	}
	if job.Path != "a.epub" {
		t.Errorf("Dequeued wrong job: %v", job)
	}
	if job.Added.IsZero() {
		t.Error("Expected Added to be set")
	}

	if size := q.Size(); size != 0 {
		t.Errorf("Expected empty queue after dequeue, got size %d", size)
	}
}

func TestQueue_PriorityThenArrival(t *testing.T) {
	q := New(10)
	defer q.Close()

	for _, j := range []Job{
		{Path: "first.epub"},
		{Path: "urgent.epub", Priority: 5},
		{Path: "second.epub"},
		{Path: "later-urgent.epub", Priority: 5},
		{Path: "low.epub", Priority: -1},
	} {
		if _, err := q.Enqueue(j); err != nil {
			t.Fatalf("Enqueue %s: %v", j.Path, err)
		}
	}

	want := []string{"urgent.epub", "later-urgent.epub", "first.epub", "second.epub", "low.epub"}
	for i, w := range want {
		job, err := q.Dequeue(context.Background())
		if err != nil {
			t.Fatalf("Dequeue %d: %v", i, err)
		}
		if job.Path != w {
			t.Errorf("position %d: expected %s, got %s", i, w, job.Path)
		}
	}
}

func TestQueue_Deduplicates(t *testing.T) {
	q := New(10)
	defer q.Close()

	if added, _ := q.Enqueue(Job{Path: "book.epub"}); !added {
		t.Fatal("first enqueue should add")
	}
	if added, _ := q.Enqueue(Job{Path: "book.epub"}); added {
		t.Error("duplicate enqueue should not add")
	}
	if q.Size() != 1 {
		t.Errorf("Expected size 1, got %d", q.Size())
	}

	if _, err := q.Dequeue(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Once taken, the same path may be queued again.
	if added, _ := q.Enqueue(Job{Path: "book.epub"}); !added {
		t.Error("path should be accepted again after dequeue")
	}
	if got := q.Stats().TotalDuplicates; got != 1 {
		t.Errorf("Expected 1 duplicate, got %d", got)
	}
}

func TestQueue_Full(t *testing.T) {
	q := New(2)
	defer q.Close()

	for i := 0; i < 2; i++ {
		if _, err := q.Enqueue(Job{Path: fmt.Sprintf("%d.epub", i)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := q.Enqueue(Job{Path: "overflow.epub"}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(10)
	defer q.Close()

	got := make(chan Job, 1)
	go func() {
		job, err := q.Dequeue(context.Background())
		if err == nil {
			got <- job
		}
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := q.Enqueue(Job{Path: "late.epub"}); err != nil {
		t.Fatal(err)
	}

	select {
	case job := <-got:
		if job.Path != "late.epub" {
			t.Errorf("unexpected job %v", job)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not wake up")
	}
}

func TestQueue_DequeueContext(t *testing.T) {
	q := New(10)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestQueue_CloseHandling(t *testing.T) {
	q := New(10)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Dequeue(context.Background())
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("Expected ErrQueueClosed, got %v", err)
		}
	}

	if _, err := q.Enqueue(Job{Path: "x.epub"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed on enqueue, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestQueue_Stats(t *testing.T) {
	q := New(10)
	defer q.Close()

	past := time.Now().Add(-time.Second)
	_, _ = q.Enqueue(Job{Path: "a.epub", Added: past})
	_, _ = q.Enqueue(Job{Path: "b.epub", Added: past})
	_, _ = q.Dequeue(context.Background())

	s := q.Stats()
	if s.TotalEnqueued != 2 || s.TotalDequeued != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.PeakSize != 2 || s.CurrentSize != 1 {
		t.Errorf("unexpected sizes: %+v", s)
	}
	if s.AverageWaitTime < time.Second {
		t.Errorf("expected wait of at least 1s, got %v", s.AverageWaitTime)
	}
}
