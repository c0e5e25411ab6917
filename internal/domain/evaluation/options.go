package evaluation

import (
	"math/rand"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// Defaults.
const (
	DefaultDeadline            = 72 * time.Hour
	DefaultThreshold           = 0.8
	DefaultTargetsPerEvaluator = 2
	DefaultClaimTimeout        = 5 * time.Minute
	DefaultCompletedLimit      = 20
	// MinEligiblePlayers is the smallest non-guest roster worth evaluating.
	MinEligiblePlayers = 3
)

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithRand injects the random source used to pick evaluation targets.
func WithRand(rng *rand.Rand) Option {
	return func(c *Coordinator) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDeadline sets how long evaluators have to submit.
func WithDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.deadline = d
		}
	}
}

// WithThreshold sets the participation rate that triggers recalculation.
func WithThreshold(t float64) Option {
	return func(c *Coordinator) {
		if t > 0 && t <= 1 {
			c.threshold = t
		}
	}
}

// WithTargetsPerEvaluator sets how many teammates each evaluator rates.
func WithTargetsPerEvaluator(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.targets = n
		}
	}
}

// WithClaimTimeout sets when an unfinished recalculation claim is
// considered abandoned.
func WithClaimTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.claimTimeout = d
		}
	}
}

// WithLocalizer sets the catalogue used for notification text.
func WithLocalizer(l i18n.Localizer) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.loc = l
		}
	}
}
