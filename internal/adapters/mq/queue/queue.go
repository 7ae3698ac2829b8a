// Package queue defines the contract for enqueuing and consuming session
// save jobs. The registry enqueues a snapshot after each mutating operation
// and the worker pool drains the queue, keeping persistence off the turn
// processing path.
package queue

import (
	"context"
	"sync"

	"github.com/okian/greenroom/internal/domain/model"
	"github.com/okian/greenroom/pkg/metrics"
)

// Default queue configuration constants.
const defaultCapacity = 1024

// Job is one pending session snapshot save.
type Job struct {
	SessionID string
	State     model.SessionState
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a save job. Returns false when the queue is full or
	// closed; the caller decides whether to save synchronously instead.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel receiving jobs as they become available.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len() int

	// Cap returns the maximum number of buffered jobs.
	Cap() int

	// Close stops the queue; enqueued jobs can still be drained.
	Close() error
}

// InMemoryQueue implements Queue over a buffered channel.
type InMemoryQueue struct {
	jobs   chan Job
	mu     sync.RWMutex
	closed bool
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*config)

type config struct {
	capacity int
}

// WithCapacity sets the maximum number of buffered jobs.
func WithCapacity(capacity int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.capacity = capacity
		}
	}
}

// NewInMemoryQueue creates a queue with the configured capacity.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	cfg := config{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &InMemoryQueue{jobs: make(chan Job, cfg.capacity)}
	metrics.UpdateSaveQueueSize(0)
	return q
}

// Enqueue adds a save job without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordSaveQueueDropped()
		return false
	}

	select {
	case q.jobs <- j:
		metrics.UpdateSaveQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordSaveQueueDropped()
		return false
	default:
		metrics.RecordSaveQueueDropped()
		return false
	}
}

// Dequeue returns a channel receiving jobs until the queue closes or ctx is
// done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for j := range q.jobs {
			select {
			case out <- j:
				metrics.UpdateSaveQueueSize(len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the number of queued jobs.
func (q *InMemoryQueue) Len() int {
	return len(q.jobs)
}

// Cap returns the buffer capacity.
func (q *InMemoryQueue) Cap() int {
	return cap(q.jobs)
}

// Close stops accepting jobs and lets consumers drain the remainder.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}
