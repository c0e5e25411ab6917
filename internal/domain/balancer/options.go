package balancer

import "math/rand"

// Option applies a configuration option to the Balancer.
type Option func(*Balancer)

// WithRand injects the random source used for team names. Seed it for
// reproducible output.
func WithRand(rng *rand.Rand) Option {
	return func(b *Balancer) {
		if rng != nil {
			b.rng = rng
		}
	}
}

// WithMaxIterations bounds the swap optimization passes.
func WithMaxIterations(n int) Option {
	return func(b *Balancer) {
		if n >= 0 {
			b.maxIterations = n
		}
	}
}

// WithTeamNames replaces the pool of team name pairs.
func WithTeamNames(pairs [][2]string) Option {
	return func(b *Balancer) {
		if len(pairs) > 0 {
			b.teamNames = pairs
		}
	}
}
