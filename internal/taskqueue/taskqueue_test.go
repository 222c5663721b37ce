package taskqueue_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicecast/internal/logging"
	"voicecast/internal/taskqueue"
)

func TestProcessesJobsInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int64
	done := make(chan struct{})

	queue := taskqueue.New(func(_ context.Context, jobID int64) {
		mu.Lock()
		got = append(got, jobID)
		finished := len(got) == 3
		mu.Unlock()
		if finished {
			close(done)
		}
	}, 8, logging.NewNop())

	for _, id := range []int64{7, 3, 9} {
		if err := queue.Enqueue(id); err != nil {
			t.Fatalf("enqueue %d: %v", id, err)
		}
	}

	queue.Start(context.Background())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs not processed")
	}
	queue.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i, want := range []int64{7, 3, 9} {
		if got[i] != want {
			t.Fatalf("order = %v", got)
		}
	}
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	queue := taskqueue.New(func(context.Context, int64) {}, 1, logging.NewNop())

	if err := queue.Enqueue(1); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := queue.Enqueue(2); !errors.Is(err, taskqueue.ErrQueueFull) {
		t.Fatalf("expected full queue error, got %v", err)
	}
	if queue.Len() != 1 {
		t.Fatalf("len = %d", queue.Len())
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	queue := taskqueue.New(func(context.Context, int64) {}, 4, logging.NewNop())
	queue.Stop()
	if err := queue.Enqueue(1); !errors.Is(err, taskqueue.ErrStopped) {
		t.Fatalf("expected stopped error, got %v", err)
	}
}

func TestStopWithoutStartReturns(t *testing.T) {
	queue := taskqueue.New(func(context.Context, int64) {}, 4, logging.NewNop())

	finished := make(chan struct{})
	go func() {
		queue.Stop()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked without a started worker")
	}
}

func TestStopDrainsAcceptedJobs(t *testing.T) {
	var mu sync.Mutex
	var count int

	queue := taskqueue.New(func(_ context.Context, _ int64) {
		mu.Lock()
		count++
		mu.Unlock()
	}, 8, logging.NewNop())

	for i := int64(1); i <= 5; i++ {
		if err := queue.Enqueue(i); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	queue.Start(context.Background())
	queue.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Fatalf("processed %d of 5 accepted jobs", count)
	}
}
