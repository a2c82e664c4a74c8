package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Push after Close, and by Take once the queue is
// closed and drained.
var ErrClosed = errors.New("queue closed")

// FIFO is an unbounded multi-producer queue. Items are taken in push order.
type FIFO[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed chan struct{}
	once   sync.Once
}

func New[T any]() *FIFO[T] {
	return &FIFO[T]{
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Push appends an item and wakes a waiting consumer.
func (q *FIFO[T]) Push(item T) error {
	q.mu.Lock()
	select {
	case <-q.closed:
		q.mu.Unlock()
		return ErrClosed
	default:
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Take blocks until an item is available, ctx is done, or the queue is closed
// and empty. Items pushed before Close are still returned.
func (q *FIFO[T]) Take(ctx context.Context) (T, error) {
	var zero T
	for {
		if item, ok := q.pop(); ok {
			return item, nil
		}

		select {
		case <-q.closed:
			if item, ok := q.pop(); ok {
				return item, nil
			}
			return zero, ErrClosed
		default:
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.closed:
		case <-q.notify:
		}
	}
}

func (q *FIFO[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Close stops accepting new items. It is safe to call more than once.
func (q *FIFO[T]) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		close(q.closed)
		q.mu.Unlock()
	})
}

// Closed reports whether Close has been called.
func (q *FIFO[T]) Closed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

// Len returns the number of items waiting.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
