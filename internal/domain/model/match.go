package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Format describes how many players line up per side.
type Format struct {
	PlayersPerTeam int
}

// Documented formats.
var (
	Format5v5   = Format{PlayersPerTeam: 5}
	Format7v7   = Format{PlayersPerTeam: 7}
	Format11v11 = Format{PlayersPerTeam: 11}
)

// ParseFormat parses "NvN" strings such as "5v5" or "3v3".
func ParseFormat(s string) (Format, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "v")
	if len(parts) != 2 || parts[0] != parts[1] {
		return Format{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 1 {
		return Format{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Format{PlayersPerTeam: n}, nil
}

// String renders the format as "NvN".
func (f Format) String() string {
	return fmt.Sprintf("%dv%d", f.PlayersPerTeam, f.PlayersPerTeam)
}

// Required returns the number of players needed for both sides.
func (f Format) Required() int { return 2 * f.PlayersPerTeam }

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

// Match states.
const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchCancelled  MatchStatus = "cancelled"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchScheduled:  {MatchInProgress, MatchCompleted, MatchCancelled},
	MatchInProgress: {MatchCompleted, MatchCancelled},
}

// CanTransition reports whether a match may move from s to next.
func (s MatchStatus) CanTransition(next MatchStatus) bool {
	for _, allowed := range matchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s MatchStatus) Valid() bool {
	switch s {
	case MatchScheduled, MatchInProgress, MatchCompleted, MatchCancelled:
		return true
	}
	return false
}

// MatchType tags how the match was organized. It is metadata only.
type MatchType string

// Match types.
const (
	MatchTypeManual        MatchType = "manual"
	MatchTypeCollaborative MatchType = "collaborative"
)

// Team is a side of a match with its OVR snapshot at formation time.
type Team struct {
	Name    string      `json:"name" dynamodbav:"name"`
	Players []PlayerRef `json:"players" dynamodbav:"players"`
	OVR     int         `json:"ovr" dynamodbav:"ovr"`
}

// Has reports whether the team lists playerID.
func (t Team) Has(playerID string) bool {
	for _, p := range t.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// Result is the final score.
type Result struct {
	ScoreA int `json:"scoreA" dynamodbav:"scoreA"`
	ScoreB int `json:"scoreB" dynamodbav:"scoreB"`
}

// Match is a pickup game between two balanced teams.
type Match struct {
	ID          string      `json:"id" dynamodbav:"id"`
	GroupID     string      `json:"groupId" dynamodbav:"groupId"`
	Name        string      `json:"name" dynamodbav:"name"`
	Date        time.Time   `json:"date" dynamodbav:"date"`
	Format      Format      `json:"format" dynamodbav:"format"`
	Type        MatchType   `json:"type" dynamodbav:"type"`
	TeamA       Team        `json:"teamA" dynamodbav:"teamA"`
	TeamB       Team        `json:"teamB" dynamodbav:"teamB"`
	Status      MatchStatus `json:"status" dynamodbav:"status"`
	Result      *Result     `json:"result,omitempty" dynamodbav:"result,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" dynamodbav:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty" dynamodbav:"completedAt,omitempty"`
	Version     int64       `json:"version" dynamodbav:"version"`
}

// DisplayName returns Name or "TeamA vs TeamB" when unnamed.
func (m Match) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.TeamA.Name + " vs " + m.TeamB.Name
}

// Clone returns a deep copy.
func (m Match) Clone() Match {
	c := m
	c.TeamA.Players = append([]PlayerRef(nil), m.TeamA.Players...)
	c.TeamB.Players = append([]PlayerRef(nil), m.TeamB.Players...)
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return c
}
