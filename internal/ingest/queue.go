package ingest

import (
	"context"
	"sync"
)

// Queue is a bounded FIFO ring buffer. Send blocks while the queue is full,
// which is how the reader applies backpressure to the socket.
type Queue[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool

	// Stats
	totalReceived int64
	totalSent     int64
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send adds an item, waiting for space while the queue is full.
// Returns false, without enqueuing, if the queue is closed or ctx is done
// before space frees up.
func (q *Queue[T]) Send(ctx context.Context, item T) bool {
	stop := context.AfterFunc(ctx, q.wake)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == q.capacity && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if q.closed || q.count == q.capacity {
		return false
	}

	q.buf[q.tail] = item
	q.tail = (q.tail + 1) % q.capacity
	q.count++
	q.totalReceived++

	q.cond.Broadcast()
	return true
}

// Receive removes and returns the oldest item.
// Blocks until an item is available or the queue is closed.
// Returns the zero value and false once the queue is closed and empty.
func (q *Queue[T]) Receive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.buf[q.head]
	q.buf[q.head] = zero // Clear reference for GC
	q.head = (q.head + 1) % q.capacity
	q.count--
	q.totalSent++

	// Senders and receivers share the cond.
	q.cond.Broadcast()
	return item, true
}

// Close stops the queue accepting items. Receivers still get the items
// already queued.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast() // Wake all waiters
}

// Len returns the current number of items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:         q.count,
		Capacity:      q.capacity,
		TotalReceived: q.totalReceived,
		TotalSent:     q.totalSent,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count         int
	Capacity      int
	TotalReceived int64
	TotalSent     int64
}

func (q *Queue[T]) wake() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
