// Package simulate drives a running futbol service over HTTP: it seeds
// rosters, schedules and completes matches, submits peer evaluations and
// checks that the resulting OVR changes were recorded.
package simulate

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL         string        // Base URL of the service
	Groups          int           // Independent groups simulated in parallel
	PlayersPerGroup int           // Roster size of each group
	Format          string        // Match format, e.g. "5v5"
	Workers         int           // Concurrent requests per group
	Timeout         time.Duration // HTTP request timeout
	JWTSecret       string        // Signs identity tokens; empty sends identity headers
	Seed            int64         // Random seed; zero picks one from the clock
	Verbose         bool          // Log every request
}

// Validate checks the config before a run.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Groups < 1:
		return fmt.Errorf("%w: groups must be positive", ErrInvalidConfig)
	case c.PlayersPerGroup < 1:
		return fmt.Errorf("%w: players per group must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Groups            int
	PlayersCreated    int
	DuplicateAcks     int
	MatchesCompleted  int
	Submissions       int
	SubmissionsFailed int
	Recalculations    int
	HistoryEntries    int
	RankingsRetrieved int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

func (s *Stats) add(o Stats) {
	s.PlayersCreated += o.PlayersCreated
	s.DuplicateAcks += o.DuplicateAcks
	s.MatchesCompleted += o.MatchesCompleted
	s.Submissions += o.Submissions
	s.SubmissionsFailed += o.SubmissionsFailed
	s.Recalculations += o.Recalculations
	s.HistoryEntries += o.HistoryEntries
	s.RankingsRetrieved += o.RankingsRetrieved
}
