package bus

import (
	"context"
	"sync/atomic"

	"spotbot/pkg/exception"
)

var (
	ErrQueueFull   = exception.ErrQueueFull
	ErrQueueClosed = exception.ErrQueueClosed
)

// Queue is a bounded, non-blocking queue with a single consumer.
type Queue[T any] struct {
	ch      chan T
	closed  uint32
	dropped atomic.Uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues an item without blocking.
func (q *Queue[T]) TryPublish(item T) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- item:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Publish enqueues an item, waiting for room until ctx is done.
// Stream events use it since dropping a kline or execution report
// would leave the mirrored state stale.
func (q *Queue[T]) Publish(ctx context.Context, item T) (err error) {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	defer func() {
		// send on a channel closed concurrently
		if recover() != nil {
			err = ErrQueueClosed
		}
	}()
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many items TryPublish rejected.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new items.
func (q *Queue[T]) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes items until the context is done or the queue is closed.
// A non-nil error from handler stops the loop and is returned.
func (q *Queue[T]) Run(ctx context.Context, handler func(T) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-q.ch:
			if !ok {
				return nil
			}
			if err := handler(item); err != nil {
				return err
			}
		}
	}
}
