// Package queue provides the unbounded FIFO hand-off used between the
// producers and the single logical consumer of a sequence run.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// ErrCompleted is returned by Write after Complete or CompleteWithError.
var ErrCompleted = errors.New("queue: write after completion")

// Queue is a FIFO of T with a terminal "done" or "done-with-error" state.
// Writes never block. Any number of goroutines may write; one logical
// consumer reads with WaitReadable and TryRead.
type Queue[T any] struct {
	mu     sync.Mutex
	items  *linkedlistqueue.Queue
	done   bool
	err    error
	notify chan struct{}
}

// New creates an empty, open queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		items:  linkedlistqueue.New(),
		notify: make(chan struct{}, 1),
	}
}

// Write appends item. It returns ErrCompleted once the queue is completed.
func (q *Queue[T]) Write(item T) error {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return ErrCompleted
	}
	q.items.Enqueue(item)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Complete marks the queue as done. Buffered items remain readable.
// Completing twice is a no-op.
func (q *Queue[T]) Complete() {
	q.CompleteWithError(nil)
}

// CompleteWithError marks the queue as done with a terminal fault.
// Only the first completion is recorded.
func (q *Queue[T]) CompleteWithError(err error) {
	q.mu.Lock()
	if q.done {
		q.mu.Unlock()
		return
	}
	q.done = true
	q.err = err
	q.mu.Unlock()
	q.signal()
}

// TryRead pops the head of the queue if one is buffered.
func (q *Queue[T]) TryRead() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.items.Dequeue()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// WaitReadable blocks until an item is buffered (true) or the queue is
// completed and drained (false). It returns ctx.Err() if ctx ends first.
func (q *Queue[T]) WaitReadable(ctx context.Context) (bool, error) {
	for {
		q.mu.Lock()
		hasItems := !q.items.Empty()
		done := q.done
		q.mu.Unlock()

		if hasItems {
			return true, nil
		}
		if done {
			return false, nil
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Read waits for the next item. ok is false once the queue is completed
// and drained; err is then the completion fault, if any.
func (q *Queue[T]) Read(ctx context.Context) (item T, ok bool, err error) {
	for {
		readable, err := q.WaitReadable(ctx)
		if err != nil {
			var zero T
			return zero, false, err
		}
		if !readable {
			var zero T
			return zero, false, q.Err()
		}
		if v, ok := q.TryRead(); ok {
			return v, true, nil
		}
	}
}

// Err returns the completion fault, if the queue completed with one.
func (q *Queue[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}

// Done reports whether the queue has been completed.
func (q *Queue[T]) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Size()
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
