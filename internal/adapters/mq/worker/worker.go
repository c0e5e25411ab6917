// Package worker replays queued roster writes once the store is reachable
// again.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/mq/queue"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

const (
	defaultMaxAttempts  = 5
	defaultBackoff      = 2 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Applier performs a queued write against the store.
type Applier interface {
	Apply(ctx context.Context, w queue.Write) error
}

// Queue is where workers read writes from and put failed ones back.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Write
	Enqueue(ctx context.Context, w queue.Write) error
}

// Worker replays writes until its context is canceled or it is shut down.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	applier     Applier
	name        string
	maxAttempts int
	backoff     time.Duration
	retryable   func(error) bool

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		applier:     applier,
		name:        "replay",
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		retryable:   repository.IsTransient,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	writes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case write, ok := <-writes:
			if !ok {
				return
			}
			if err := w.process(ctx, write); err != nil {
				w.logger.Error(ctx, "replay failed",
					logger.String("write_id", write.ID),
					logger.String("player_id", write.PlayerID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, write queue.Write) error {
	start := time.Now()
	err := w.applier.Apply(ctx, write)
	elapsed := time.Since(start).Seconds()
	if err == nil {
		metrics.RecordWorkerJob("ok", elapsed)
		w.logger.Debug(ctx, "write replayed",
			logger.String("kind", string(write.Kind)),
			logger.String("player_id", write.PlayerID),
			logger.Duration("queued_for", time.Since(write.QueuedAt)),
		)
		return nil
	}

	write.Attempts++
	if !w.retryable(err) || write.Attempts >= w.maxAttempts {
		metrics.RecordWorkerJob("dropped", elapsed)
		metrics.RecordErrorByComponent("worker", "replay_dropped")
		return fmt.Errorf("drop %s after %d attempts: %w", write.Kind, write.Attempts, err)
	}

	metrics.RecordWorkerJob("retry", elapsed)
	metrics.RecordWorkerRetry()
	select {
	case <-time.After(w.backoff * time.Duration(write.Attempts)):
	case <-ctx.Done():
		return ctx.Err()
	case <-w.shutdown:
	}
	if qerr := w.queue.Enqueue(ctx, write); qerr != nil {
		return fmt.Errorf("requeue %s: %w", write.Kind, qerr)
	}
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates count workers; count < 1 means one.
func NewPool(count int, q Queue, applier Applier, opts ...Option) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, count),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := 0; i < count; i++ {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("replay-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, applier, wopts...)
	}
	probe := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(probe)
	}
	p.logger = probe.logger.Named("replay-pool")
	return p
}

// Start runs every worker in its own goroutine.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
