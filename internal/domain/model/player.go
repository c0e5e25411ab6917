// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Position is a player's preferred field position.
type Position string

// Supported positions.
const (
	PositionGK  Position = "GK"
	PositionDEF Position = "DEF"
	PositionMID Position = "MID"
	PositionFWD Position = "FWD"
)

// Positions lists every position in balancing priority order.
var Positions = []Position{PositionGK, PositionDEF, PositionMID, PositionFWD}

// ParsePosition accepts English codes and the legacy Spanish codes
// (POR, DEF, MED, DEL) the roster was originally recorded with.
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GK", "POR":
		return PositionGK, nil
	case "DEF":
		return PositionDEF, nil
	case "MID", "MED":
		return PositionMID, nil
	case "FWD", "DEL":
		return PositionFWD, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPosition, s)
}

// Attribute bounds for player-entered ratings.
const (
	MinAttribute = 1
	MaxAttribute = 100
)

// Attributes holds the six skill ratings of a player.
type Attributes struct {
	Pace      int `json:"pace" dynamodbav:"pace"`
	Shooting  int `json:"shooting" dynamodbav:"shooting"`
	Passing   int `json:"passing" dynamodbav:"passing"`
	Dribbling int `json:"dribbling" dynamodbav:"dribbling"`
	Defending int `json:"defending" dynamodbav:"defending"`
	Physical  int `json:"physical" dynamodbav:"physical"`
}

// Attribute names, in declaration order.
const (
	AttrPace      = "pace"
	AttrShooting  = "shooting"
	AttrPassing   = "passing"
	AttrDribbling = "dribbling"
	AttrDefending = "defending"
	AttrPhysical  = "physical"
)

// AttributeNames lists attribute keys in declaration order.
var AttributeNames = []string{AttrPace, AttrShooting, AttrPassing, AttrDribbling, AttrDefending, AttrPhysical}

// Values returns the attributes in declaration order.
func (a Attributes) Values() []int {
	return []int{a.Pace, a.Shooting, a.Passing, a.Dribbling, a.Defending, a.Physical}
}

// Get returns the attribute by name, or 0 when the name is unknown.
func (a Attributes) Get(name string) int {
	switch name {
	case AttrPace:
		return a.Pace
	case AttrShooting:
		return a.Shooting
	case AttrPassing:
		return a.Passing
	case AttrDribbling:
		return a.Dribbling
	case AttrDefending:
		return a.Defending
	case AttrPhysical:
		return a.Physical
	}
	return 0
}

// Set assigns the attribute by name. Unknown names are ignored.
func (a *Attributes) Set(name string, v int) {
	switch name {
	case AttrPace:
		a.Pace = v
	case AttrShooting:
		a.Shooting = v
	case AttrPassing:
		a.Passing = v
	case AttrDribbling:
		a.Dribbling = v
	case AttrDefending:
		a.Defending = v
	case AttrPhysical:
		a.Physical = v
	}
}

// Validate checks that every attribute is within [MinAttribute, MaxAttribute].
func (a Attributes) Validate() error {
	for i, v := range a.Values() {
		if v < MinAttribute || v > MaxAttribute {
			return fmt.Errorf("%w: %s=%d", ErrInvalidAttributes, AttributeNames[i], v)
		}
	}
	return nil
}

// Highest returns the name of the strongest attribute; the first one wins ties.
func (a Attributes) Highest() string {
	best, name := -1, ""
	for i, v := range a.Values() {
		if v > best {
			best, name = v, AttributeNames[i]
		}
	}
	return name
}

// HistoryEntry is an immutable record of one evaluation-driven OVR change.
type HistoryEntry struct {
	Date             time.Time      `json:"date" dynamodbav:"date"`
	OldOVR           int            `json:"oldOvr" dynamodbav:"oldOvr"`
	NewOVR           int            `json:"newOvr" dynamodbav:"newOvr"`
	Change           int            `json:"change" dynamodbav:"change"`
	MatchID          string         `json:"matchId" dynamodbav:"matchId"`
	AttributeChanges map[string]int `json:"attributeChanges,omitempty" dynamodbav:"attributeChanges,omitempty"`
}

// Player is a registered member of a group.
//
// OVR is derived from Attributes on registration and attribute edits, but
// peer-evaluation recalculations overwrite it directly and it can drift
// from the attribute mean afterwards.
type Player struct {
	ID         string         `json:"id" dynamodbav:"id"`
	GroupID    string         `json:"groupId" dynamodbav:"groupId"`
	Name       string         `json:"name" dynamodbav:"name"`
	Position   Position       `json:"position" dynamodbav:"position"`
	Attributes Attributes     `json:"attributes" dynamodbav:"attributes"`
	OVR        int            `json:"ovr" dynamodbav:"ovr"`
	PhotoRef   string         `json:"photoRef,omitempty" dynamodbav:"photoRef,omitempty"`
	IsGuest    bool           `json:"isGuest" dynamodbav:"isGuest"`
	OVRHistory []HistoryEntry `json:"ovrHistory,omitempty" dynamodbav:"ovrHistory,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" dynamodbav:"updatedAt"`
	Version    int64          `json:"version" dynamodbav:"version"`
}

// Ref returns a snapshot reference of the player.
func (p Player) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, Name: p.Name, Position: p.Position, OVR: p.OVR}
}

// HasHistoryFor reports whether an OVR change for matchID was already applied.
func (p Player) HasHistoryFor(matchID string) bool {
	for _, h := range p.OVRHistory {
		if h.MatchID == matchID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (p Player) Clone() Player {
	c := p
	if p.OVRHistory != nil {
		c.OVRHistory = make([]HistoryEntry, len(p.OVRHistory))
		for i, h := range p.OVRHistory {
			c.OVRHistory[i] = h
			if h.AttributeChanges != nil {
				c.OVRHistory[i].AttributeChanges = make(map[string]int, len(h.AttributeChanges))
				for k, v := range h.AttributeChanges {
					c.OVRHistory[i].AttributeChanges[k] = v
				}
			}
		}
	}
	return c
}

// PlayerRef is a point-in-time snapshot of a player, not a live reference.
type PlayerRef struct {
	ID       string   `json:"id" dynamodbav:"id"`
	Name     string   `json:"name" dynamodbav:"name"`
	Position Position `json:"position" dynamodbav:"position"`
	OVR      int      `json:"ovr" dynamodbav:"ovr"`
}
