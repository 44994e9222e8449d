package worker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Task is a unit of background work running in its own goroutine. It settles
// exactly once, with a result or an error, and can be cancelled by its owner
// at any time. Work already committed to the store stays valid after a cancel.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once

	result T
	err    error
}

// Spawn runs fn in a new goroutine. A positive timeout bounds the run; the
// context handed to fn is cancelled when the timeout fires or Cancel is called.
func Spawn[T any](parent context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) *Task[T] {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	t := &Task[T]{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				var zero T
				t.settle(zero, fmt.Errorf("task panicked: %v", r))
			}
		}()
		res, err := fn(ctx)
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		t.settle(res, err)
	}()
	return t
}

func (t *Task[T]) settle(res T, err error) {
	t.once.Do(func() {
		t.result, t.err = res, err
		close(t.done)
	})
}

// Cancel asks the task to stop. It does not wait for it.
func (t *Task[T]) Cancel() { t.cancel() }

// Done is closed once the task has settled.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until the task settles or ctx ends, whichever comes first.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
