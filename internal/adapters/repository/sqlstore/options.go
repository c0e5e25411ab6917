package sqlstore

import "github.com/poio911/futbol-app-pwa-sub004/pkg/logger"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.Named("sqlstore")
		}
	}
}

// WithMaxRetries bounds optimistic update attempts before ErrConflict.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}
