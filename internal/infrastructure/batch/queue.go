// Package batch coalesces a high-frequency stream of work items into batches
// delivered after a quiescence window.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
)

// Processor consumes one delivered batch. It runs on its own goroutine with a
// context bound to the queue's lifetime and must tolerate cancellation.
type Processor[T any] func(ctx context.Context, batchID string, items []T)

// Queue accumulates items and flushes them as one ordered batch once the
// quiescence window has elapsed. Add never blocks and never loses an item.
// At most one processor invocation is in flight at a time: items arriving
// while a batch is processed accumulate and are delivered in the next batch.
//
// A panic escaping the processor is fatal-reported but does not stop the
// queue; the next batch is still delivered.
type Queue[T any] struct {
	window  time.Duration
	process Processor[T]
	log     *logging.Logger

	// ctx bounds processor runs to the owning engine's lifetime.
	ctx context.Context

	mu      sync.Mutex
	pending []T
	timer   *time.Timer
	armed   bool
	running bool
	// flushDue records a window that elapsed while the processor was
	// running; the accumulated items are delivered as soon as it finishes.
	flushDue bool
	closed   bool
}

// NewQueue creates a queue delivering to process after window of quiescence.
func NewQueue[T any](ctx context.Context, window time.Duration, process Processor[T], log *logging.Logger) *Queue[T] {
	return &Queue[T]{
		window:  window,
		process: process,
		log:     log,
		ctx:     ctx,
	}
}

// Add enqueues one item. Safe from any goroutine; returns immediately. Items
// added after Close are dropped.
func (q *Queue[T]) Add(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.ctx.Err() != nil {
		return
	}

	q.pending = append(q.pending, item)
	if !q.armed {
		q.armed = true
		q.timer = time.AfterFunc(q.window, q.flush)
	}
}

// Close stops the queue. A batch already being processed finishes on its own;
// pending items are discarded.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.pending = nil
	if q.timer != nil {
		q.timer.Stop()
	}
}

// flush fires when the quiescence window elapses.
func (q *Queue[T]) flush() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.armed = false
	if q.closed {
		return
	}
	if q.running {
		q.flushDue = true
		return
	}
	q.deliver()
}

// deliver hands the accumulated batch to the processor. Callers hold q.mu and
// have checked that no processor run is in flight.
func (q *Queue[T]) deliver() {
	if len(q.pending) == 0 {
		return
	}
	items := q.pending
	q.pending = nil
	q.running = true
	go q.run(items)
}

func (q *Queue[T]) run(items []T) {
	batchID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			q.log.DPanic("batch processor panicked",
				zap.String("batch_id", batchID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}

		q.mu.Lock()
		q.running = false
		if q.flushDue && !q.closed {
			q.flushDue = false
			q.deliver()
		}
		q.mu.Unlock()
	}()

	q.process(q.ctx, batchID, items)
}
