// Package worker persists scored analyses taken off the queue.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/sumcheck/internal/adapters/mq/queue"
	"github.com/okian/sumcheck/internal/domain/model"
	"github.com/okian/sumcheck/pkg/logger"
	"github.com/okian/sumcheck/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultRetries      = 2
	defaultRetryBackoff = 20 * time.Millisecond
	poolShutdownTimeout = 30 * time.Second
)

// Saver writes one analysis to durable storage.
type Saver interface {
	SaveAnalysis(ctx context.Context, a model.Analysis) error
}

// Queue defines how workers receive items.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
}

// Worker persists items until its queue is drained or it is stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)
	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one persistence loop.
type InMemoryWorker struct {
	queue Queue
	saver Saver
	name  string

	retries int
	backoff time.Duration

	// Optional pool counters.
	stats *poolStats

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		saver:    saver,
		name:     "worker",
		retries:  defaultRetries,
		backoff:  defaultRetryBackoff,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, it); err != nil {
				w.logger.Error(ctx, "error persisting analysis", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process saves one item, retrying with exponential backoff.
func (w *InMemoryWorker) process(ctx context.Context, it queue.Item) error { //nolint:gocritic // hugeParam: received by value from the channel
	start := time.Now()
	w.stats.begin()
	defer func() {
		w.stats.end()
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	id := it.Analysis.ID
	delay := w.backoff
	var err error
	for attempt := 0; attempt <= w.retries; attempt++ {
		if attempt > 0 {
			w.logger.Warn(ctx, "retrying save",
				logger.String("analysisID", id), logger.Int("attempt", attempt), logger.Error(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("save %s abandoned: %w", id, ctx.Err())
			}
			delay *= 2
		}
		if err = w.saver.SaveAnalysis(ctx, it.Analysis); err == nil {
			metrics.RecordAnalysisPersisted()
			w.stats.persisted()
			return nil
		}
	}

	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", "persist_error")
	w.stats.failed()
	return fmt.Errorf("failed to persist analysis %s: %w", id, err)
}

// poolStats counts outcomes across a pool. A nil receiver is a no-op.
type poolStats struct {
	active    atomic.Int64
	size      int
	processed atomic.Int64
	failures  atomic.Int64
}

func (s *poolStats) begin() {
	if s == nil {
		return
	}
	n := s.active.Add(1)
	metrics.UpdateWorkerActiveCount(int(n))
	metrics.UpdateWorkerIdleCount(s.size - int(n))
}

func (s *poolStats) end() {
	if s == nil {
		return
	}
	n := s.active.Add(-1)
	metrics.UpdateWorkerActiveCount(int(n))
	metrics.UpdateWorkerIdleCount(s.size - int(n))
}

func (s *poolStats) persisted() {
	if s != nil {
		s.processed.Add(1)
	}
}

func (s *poolStats) failed() {
	if s != nil {
		s.failures.Add(1)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	stats   *poolStats
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers. Counts below 1 become 1.
func NewPool(workerCount int, q Queue, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		stats:   &poolStats{size: workerCount},
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		w := NewInMemoryWorker(q, saver, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.stats = p.stats
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many analyses were persisted.
func (p *Pool) Processed() int64 { return p.stats.processed.Load() }

// Failed returns how many analyses could not be persisted after retries.
func (p *Pool) Failed() int64 { return p.stats.failures.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool drain: %w", shutdownCtx.Err())
		}
	}
	return nil
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker stop failed", logger.Int("worker_id", i), logger.Error(err))
		}
	}
}
