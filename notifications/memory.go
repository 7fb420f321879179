package notifications

import (
	"context"
	"sync"
)

// MemoryQueue is a bounded in-process queue. Notifications still queued when
// the process exits are lost.
type MemoryQueue struct {
	ch     chan *Notification
	mu     sync.RWMutex
	closed bool
}

func CreateMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan *Notification, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, n *Notification) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Notification, error) {
	select {
	case n, ok := <-q.ch:
		if !ok {
			return nil, ErrQueueClosed
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}
