package worker

import (
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxAttempts bounds how often a write is tried before it is dropped.
func WithMaxAttempts(n int) Option {
	return func(w *InMemoryWorker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay before a failed write is requeued; the
// delay grows linearly with attempts.
func WithBackoff(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.backoff = d
		}
	}
}

// WithRetryIf decides which errors are worth another attempt.
func WithRetryIf(fn func(error) bool) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.retryable = fn
		}
	}
}
