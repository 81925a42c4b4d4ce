package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]int
}

func (r *recorder) record(items []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make([]int, len(items))
	copy(batch, items)
	r.batches = append(r.batches, batch)
}

func (r *recorder) snapshot() [][]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]int, len(r.batches))
	copy(out, r.batches)
	return out
}

func waitForBatches(t *testing.T, r *recorder, n int) [][]int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d batches, got %v", n, r.snapshot())
	return nil
}

func TestItemsWithinWindowCoalesce(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(context.Background(), 50*time.Millisecond, func(_ context.Context, _ string, items []int) {
		rec.record(items)
	}, logging.NewNop())
	defer q.Close()

	q.Add(1)
	q.Add(2)
	q.Add(3)

	batches := waitForBatches(t, rec, 1)
	require.Len(t, batches, 1)
	assert.Equal(t, []int{1, 2, 3}, batches[0], "items delivered together, in order")
}

func TestItemsAcrossWindowsSplit(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(context.Background(), 30*time.Millisecond, func(_ context.Context, _ string, items []int) {
		rec.record(items)
	}, logging.NewNop())
	defer q.Close()

	q.Add(1)
	waitForBatches(t, rec, 1)
	q.Add(2)

	batches := waitForBatches(t, rec, 2)
	assert.Equal(t, [][]int{{1}, {2}}, batches)
}

func TestNoOverlappingProcessorRuns(t *testing.T) {
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32
	block := make(chan struct{})
	rec := &recorder{}

	q := NewQueue(context.Background(), 20*time.Millisecond, func(_ context.Context, _ string, items []int) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		if items[0] == 1 {
			<-block
		}
		rec.record(items)
		inFlight.Add(-1)
	}, logging.NewNop())
	defer q.Close()

	q.Add(1)

	// Let the first batch start, then pile up items while it is running.
	time.Sleep(60 * time.Millisecond)
	q.Add(2)
	q.Add(3)
	time.Sleep(60 * time.Millisecond) // window elapses during the first run
	close(block)

	batches := waitForBatches(t, rec, 2)
	assert.Equal(t, [][]int{{1}, {2, 3}}, batches, "items accumulated during a run form the next batch")
	assert.Equal(t, int32(1), maxInFlight.Load(), "at most one processor invocation in flight")
}

func TestProcessorPanicDoesNotStopQueue(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(context.Background(), 20*time.Millisecond, func(_ context.Context, _ string, items []int) {
		if items[0] == 1 {
			panic("boom")
		}
		rec.record(items)
	}, logging.NewNop())
	defer q.Close()

	q.Add(1)
	time.Sleep(60 * time.Millisecond)
	q.Add(2)

	batches := waitForBatches(t, rec, 1)
	assert.Equal(t, [][]int{{2}}, batches, "queue keeps delivering after a processor panic")
}

func TestCloseDropsPending(t *testing.T) {
	rec := &recorder{}
	q := NewQueue(context.Background(), 20*time.Millisecond, func(_ context.Context, _ string, items []int) {
		rec.record(items)
	}, logging.NewNop())

	q.Add(1)
	q.Close()
	q.Add(2)

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}
