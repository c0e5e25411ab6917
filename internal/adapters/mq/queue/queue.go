// Package queue holds roster writes that could not reach the store while it
// was unavailable, until a worker replays them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

const defaultQueueCapacity = 1000

// Kind names the store operation a Write replays.
type Kind string

// Replayable operations.
const (
	CreatePlayer Kind = "create_player"
	UpdatePlayer Kind = "update_player"
)

// Write is a deferred store call.
type Write struct {
	ID       string
	Kind     Kind
	PlayerID string
	// Player is the record to create.
	Player model.Player
	// Mutate is the update to apply to PlayerID.
	Mutate   func(*model.Player) error
	Attempts int
	QueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds w, failing with ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, w Write) error

	// Dequeue returns a channel that is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Write

	Len(ctx context.Context) int

	// Close stops new writes; queued ones remain readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	writes   chan Write
	capacity int
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.writes = make(chan Write, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue stamps w with an ID and QueuedAt when missing and queues it.
func (q *InMemoryQueue) Enqueue(ctx context.Context, w Write) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.QueuedAt.IsZero() {
		w.QueuedAt = q.now()
	}

	select {
	case q.writes <- w:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.writes))
		return nil
	case <-ctx.Done():
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	default:
		metrics.RecordQueueDrop()
		return ErrFull
	}
}

// Dequeue returns a channel that will receive writes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Write {
	out := make(chan Write)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case w, ok := <-q.writes:
				if !ok {
					return
				}
				select {
				case out <- w:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.writes))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of queued writes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.writes)
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.writes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
