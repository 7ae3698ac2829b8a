// Package worker runs the background save workers that drain the session
// save queue into the persistence store.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/greenroom/internal/adapters/mq/queue"
	"github.com/okian/greenroom/internal/adapters/store"
	"github.com/okian/greenroom/pkg/logger"
	"github.com/okian/greenroom/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Worker drains save jobs until stopped.
type Worker struct {
	queue    queue.Queue
	saver    store.Store
	name     string
	shutdown chan struct{}
	done     chan struct{}
	log      logger.Logger
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWorker creates a save worker over the queue and store.
func NewWorker(q queue.Queue, s store.Store, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		saver:    s,
		name:     "saver",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.Get().Named("saver"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run processes jobs until ctx is cancelled, the queue closes, or Shutdown
// is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	if err := w.saver.Save(ctx, job.SessionID, job.State); err != nil {
		metrics.RecordSaveError()
		w.log.Error(ctx, "background save failed",
			logger.String("session_id", job.SessionID),
			logger.Error(err),
		)
		return
	}
	metrics.RecordSaveCompleted()
}

// Shutdown stops the worker, waiting for the in-flight job.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages a fixed set of save workers.
type Pool struct {
	workers []*Worker
	log     logger.Logger
}

// NewPool creates workerCount workers over the queue and store.
func NewPool(workerCount int, q queue.Queue, s store.Store) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		log:     logger.Get().Named("saver-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(q, s, WithName("saver-"+strconv.Itoa(i)))
	}
	return p
}

// Start launches all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop closes the queue and waits for every worker to finish draining.
func (p *Pool) Stop(ctx context.Context) {
	if err := p.queueOf().Close(); err != nil {
		p.log.Error(ctx, "error closing save queue", logger.Error(err))
	}

	deadline := time.After(workerShutdownTimeout)
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-deadline:
			p.log.Warn(ctx, "save worker did not finish before shutdown deadline",
				logger.String("worker", w.name))
			return
		}
	}
}

func (p *Pool) queueOf() queue.Queue {
	return p.workers[0].queue
}
