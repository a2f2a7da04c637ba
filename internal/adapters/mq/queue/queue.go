// Package queue holds scored analyses waiting to be persisted.
//
// Enqueue never blocks: a full queue is reported to the caller, which turns
// it into backpressure for the client.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/pkg/metrics"
)

const defaultQueueCapacity = 10_000

// Item is one scored analysis on its way to the store.
type Item struct {
	Analysis   model.Analysis
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an analysis. It fails with ErrFull, ErrClosed or the
	// context error and never blocks.
	Enqueue(ctx context.Context, a model.Analysis) error

	// Dequeue returns a channel that receives items as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Item

	// Len returns the current number of queued items.
	Len(ctx context.Context) int

	// Close stops accepting items. Queued items can still be dequeued.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	items    chan Item
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Item, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.reportSize()
	return q
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

func (q *InMemoryQueue) reportSize() int {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Enqueue adds an analysis to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, a model.Analysis) error { //nolint:gocritic // hugeParam: copied onto the channel anyway
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	select {
	case q.items <- Item{Analysis: a, EnqueuedAt: time.Now()}:
		metrics.RecordQueueEnqueue()
		q.reportSize()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives items as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Item {
	out := make(chan Item)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case item, ok := <-q.items:
				if !ok {
					return
				}
				select {
				case out <- item:
					metrics.RecordQueueDequeue()
					metrics.RecordQueueProcessingLatency(float64(time.Since(item.EnqueuedAt).Microseconds()) / 1000)
					q.reportSize()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued items.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.reportSize()
}

// Close stops accepting items.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}
