// Package taskqueue provides the in-process work queue that feeds job
// identifiers to the runner. Jobs execute one at a time in enqueue order;
// durability comes from the job store, not from this queue.
package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"voicecast/internal/logging"
)

// ErrQueueFull is returned when the pending buffer has no room.
var ErrQueueFull = errors.New("task queue full")

// ErrStopped is returned when enqueueing after shutdown.
var ErrStopped = errors.New("task queue stopped")

// Handler processes one job identifier.
type Handler func(ctx context.Context, jobID int64)

// Queue is a buffered single-worker dispatch loop.
type Queue struct {
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	pending chan int64
	started bool
	stopped bool
	done    chan struct{}
}

// New builds a queue with the given buffer capacity.
func New(handler Handler, capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		handler: handler,
		logger:  logging.NewComponentLogger(logger, "taskqueue"),
		pending: make(chan int64, capacity),
		done:    make(chan struct{}),
	}
}

// Start launches the worker loop. It runs until the context is canceled
// or Stop is called, draining jobs already accepted.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case jobID, ok := <-q.pending:
				if !ok {
					return
				}
				q.logger.Debug("dispatching job", logging.Int64(logging.FieldJobID, jobID))
				q.handler(ctx, jobID)
			}
		}
	}()
}

// Enqueue accepts a job identifier for processing. It never blocks: a
// full buffer is reported as an error so callers can surface it instead
// of stalling an HTTP handler.
func (q *Queue) Enqueue(jobID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return ErrStopped
	}
	select {
	case q.pending <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for a started worker to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	started := q.started
	if !q.stopped {
		q.stopped = true
		close(q.pending)
	}
	q.mu.Unlock()
	if started {
		<-q.done
	}
}

// Len reports how many jobs are waiting.
func (q *Queue) Len() int {
	return len(q.pending)
}
