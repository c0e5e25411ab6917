// Package types contains common types used across the application
package types

import "github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

// Entry represents a row of a group's OVR ranking
type Entry struct {
	Rank     int            `json:"rank"`
	PlayerID string         `json:"playerId"`
	Name     string         `json:"name"`
	Position model.Position `json:"position"`
	OVR      int            `json:"ovr"`
}

// AssignRanks assigns dense ranks to entries already ordered by OVR desc.
// Players with the same OVR share a rank and the next OVR gets the next
// consecutive rank.
func AssignRanks(entries []Entry) {
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].OVR != entries[i-1].OVR {
			rank++
		}
		entries[i].Rank = rank
	}
}
