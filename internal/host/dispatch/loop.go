// Package dispatch provides the coordinating run loop: a single goroutine
// that every host-affine call is marshaled onto.
package dispatch

import (
	"context"
	"errors"
)

// ErrStopped is returned by Do after the loop has shut down.
var ErrStopped = errors.New("dispatch: loop stopped")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Loop executes submitted closures one at a time on the goroutine running
// Run. It is the process-local stand-in for the host's thread-affinity
// requirement: code that must not race with other host calls runs here.
type Loop struct {
	jobs    chan job
	stopped chan struct{}
}

// NewLoop creates a loop. Run must be started before Do can complete.
func NewLoop() *Loop {
	return &Loop{
		jobs:    make(chan job),
		stopped: make(chan struct{}),
	}
}

// Run consumes jobs until ctx is cancelled. It blocks; callers start it on a
// dedicated goroutine.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-l.jobs:
			// A job whose own context died while queued is skipped, not run.
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			j.done <- j.fn(j.ctx)
		}
	}
}

// Do runs fn on the loop goroutine and returns its error. It blocks until fn
// has finished, ctx is cancelled, or the loop has stopped.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrStopped
	}

	select {
	case err := <-j.done:
		return err
	case <-l.stopped:
		// The loop sends the result before it shuts down, so a completed
		// job's outcome may be sitting in done even though stopped is
		// already closed. Prefer the outcome.
		select {
		case err := <-j.done:
			return err
		default:
			return ErrStopped
		}
	}
}
