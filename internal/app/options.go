package service

import (
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/notify"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses store instead of opening the configured driver. The
// service closes it on Stop.
func WithStore(store repository.Store, backend string) Option {
	return func(s *Service) {
		if store != nil {
			s.backing = store
			s.backend = backend
		}
	}
}

// WithSink adds a notification outlet next to the configured ones.
func WithSink(sink notify.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.extraSinks = append(s.extraSinks, sink)
		}
	}
}
