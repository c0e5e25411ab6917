package matches

import (
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithNotifier sets the activity feed sink.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.sink = n }
}

// WithLocalizer sets the catalogue used for feed messages.
func WithLocalizer(l i18n.Localizer) Option {
	return func(m *Manager) {
		if l != nil {
			m.loc = l
		}
	}
}
