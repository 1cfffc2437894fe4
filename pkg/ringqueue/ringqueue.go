// Package ringqueue implements a bounded single-producer/single-consumer
// queue with drop-oldest overflow behavior, standing in for the
// pico/util/queue.h SPSC queues the original firmware builds its
// producer/consumer handoffs on.
package ringqueue

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO safe for concurrent use by one producer
// goroutine calling TryPush and one consumer goroutine calling
// TryPop/PopBlocking. head and count are shared mutable state, so both
// are guarded by mu rather than left to per-field atomics: TryPush can
// advance head itself on overflow, which a single-writer atomic index
// design cannot express without also serializing on the consumer.
type Queue[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // next slot to pop
	count int

	notify chan struct{} // buffered(1) wake signal for PopBlocking
}

// New returns a Queue with room for depth elements. depth must be > 0.
func New[T any](depth int) *Queue[T] {
	if depth <= 0 {
		depth = 1
	}
	return &Queue[T]{
		buf:    make([]T, depth),
		notify: make(chan struct{}, 1),
	}
}

// Depth returns the queue's fixed capacity.
func (q *Queue[T]) Depth() int {
	return len(q.buf)
}

// Len returns the number of currently queued elements. It is a snapshot
// and, called concurrently with a producer or consumer, may be stale by
// the time the caller acts on it.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// TryPush enqueues v without blocking. If the queue is full, the oldest
// queued element is dropped to make room, matching the firmware's
// queue_try_add-then-queue_try_remove-on-failure fallback in
// enqueue_result_locked. It always succeeds and reports whether an
// element was dropped to do so.
func (q *Queue[T]) TryPush(v T) (dropped bool) {
	q.mu.Lock()
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		dropped = true
	}
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = v
	q.count++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

// TryPop dequeues the oldest element without blocking. ok is false if the
// queue was empty.
func (q *Queue[T]) TryPop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return v, false
	}
	v = q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// PopBlocking dequeues the oldest element, blocking until one is
// available or ctx is done. It mirrors queue_remove_blocking's role in
// the pipeline worker's main loop.
func (q *Queue[T]) PopBlocking(ctx context.Context) (v T, ok bool) {
	for {
		if v, ok = q.TryPop(); ok {
			return v, true
		}
		select {
		case <-q.notify:
			continue
		case <-ctx.Done():
			return v, false
		}
	}
}
