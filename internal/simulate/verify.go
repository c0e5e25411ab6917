package simulate

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
)

// verifyHistory checks that every player the round updated carries exactly
// one history entry for the match, matching the recorded update.
func verifyHistory(ctx context.Context, g *group, matchID string) (int, error) {
	var round model.Evaluation
	if _, err := g.c.do(ctx, request{method: http.MethodGet, path: "/v1/matches/" + matchID + "/evaluation",
		as: g.admin()}, &round); err != nil {
		return 0, err
	}
	if !round.OVRUpdateTriggered {
		// too few submissions; nothing to verify
		return 0, nil
	}

	entries := 0
	for _, u := range round.OVRUpdates {
		var h struct {
			OVR     int                  `json:"ovr"`
			History []model.HistoryEntry `json:"history"`
		}
		if _, err := g.c.do(ctx, request{method: http.MethodGet, path: "/v1/players/" + u.PlayerID + "/history",
			as: g.admin()}, &h); err != nil {
			return entries, err
		}
		found := 0
		for _, e := range h.History {
			if e.MatchID != matchID {
				continue
			}
			found++
			if e.OldOVR != u.OldOVR || e.NewOVR != u.NewOVR || e.Change != e.NewOVR-e.OldOVR {
				return entries, fmt.Errorf("player %s: history %d->%d does not match update %d->%d",
					u.PlayerID, e.OldOVR, e.NewOVR, u.OldOVR, u.NewOVR)
			}
		}
		if found != 1 {
			return entries, fmt.Errorf("player %s: %d history entries for %s", u.PlayerID, found, matchID)
		}
		entries++
	}
	return entries, nil
}

// verifyRanking checks the ranking is ordered by OVR with dense ranks:
// equal OVRs share a rank.
func verifyRanking(ctx context.Context, g *group, n int) error {
	var entries []types.Entry
	if _, err := g.c.do(ctx, request{method: http.MethodGet, path: "/v1/players/ranking?limit=" + strconv.Itoa(n),
		as: g.admin()}, &entries); err != nil {
		return err
	}
	if len(entries) != n {
		return fmt.Errorf("ranking has %d entries, want %d", len(entries), n)
	}
	want := 0
	for i, e := range entries {
		if i > 0 && entries[i-1].OVR < e.OVR {
			return fmt.Errorf("ranking out of order at %d: %d < %d", i, entries[i-1].OVR, e.OVR)
		}
		if i == 0 || entries[i-1].OVR != e.OVR {
			want++
		}
		if e.Rank != want {
			return fmt.Errorf("entry %d has rank %d, want %d", i, e.Rank, want)
		}
	}
	return nil
}
