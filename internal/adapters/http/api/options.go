package api

import (
	"golang.org/x/time/rate"

	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

const (
	defaultMaxRankingLimit = 100
	defaultRankingLimit    = 10
	defaultSubmitRate      = rate.Limit(5)
	defaultSubmitBurst     = 10
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l.Named("api")
		}
	}
}

// WithJWTSecret enables HS256 token verification. Without it the identity
// headers are trusted.
func WithJWTSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.jwtSecret = []byte(secret)
		}
	}
}

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithMaxRankingLimit caps GET /v1/players/ranking?limit.
func WithMaxRankingLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// WithSubmitLimit sets the per-person evaluation submission rate.
func WithSubmitLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 && burst > 0 {
			s.submitRate = rate.Limit(perSecond)
			s.submitBurst = burst
		}
	}
}
