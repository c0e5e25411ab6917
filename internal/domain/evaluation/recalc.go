package evaluation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/scoring"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// maxParallelWrites bounds concurrent player updates during a recalculation.
const maxParallelWrites = 8

// recalculate applies the committed ratings of e to every rated player and
// then marks e as applied. The caller must hold the recalculation claim.
//
// Each player update is atomic and skipped when the player's history
// already has an entry for the match, so a retry after a partial failure
// recomputes everything from scratch without applying anyone twice. The
// applied flag is only set after every player write succeeded.
func (c *Coordinator) recalculate(ctx context.Context, e model.Evaluation) ([]model.OVRUpdate, error) {
	start := time.Now()
	now := c.now()
	byTarget := e.RatingsByTarget()
	ids := make([]string, 0, len(byTarget))
	for id := range byTarget {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	updates := make([]*model.OVRUpdate, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelWrites)
	for i, id := range ids {
		g.Go(func() error {
			u, err := c.applyRatings(gctx, e, id, byTarget[id], now)
			if err != nil {
				return fmt.Errorf("player %s: %w", id, err)
			}
			updates[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.release(context.WithoutCancel(ctx), e.MatchID)
		metrics.RecordRecalculation("failed", 0, time.Since(start).Seconds())
		return nil, err
	}

	applied := make([]model.OVRUpdate, 0, len(updates))
	for _, u := range updates {
		if u != nil {
			applied = append(applied, *u)
		}
	}
	_, err := c.store.UpdateEvaluation(ctx, e.MatchID, func(cur *model.Evaluation) error {
		if cur.OVRUpdateTriggered {
			return ErrAlreadyRecalculated
		}
		cur.OVRUpdateTriggered = true
		cur.OVRUpdatedAt = &now
		cur.OVRUpdates = applied
		cur.RecalcStartedAt = nil
		return nil
	})
	if errors.Is(err, ErrAlreadyRecalculated) {
		return applied, nil
	}
	if err != nil {
		c.release(context.WithoutCancel(ctx), e.MatchID)
		metrics.RecordRecalculation("failed", 0, time.Since(start).Seconds())
		return nil, fmt.Errorf("mark %s applied: %w", e.MatchID, err)
	}

	metrics.RecordRecalculation("applied", len(applied), time.Since(start).Seconds())
	c.log.Info(ctx, "ratings applied",
		logger.String("match", e.MatchID), logger.Int("players", len(applied)))
	return applied, nil
}

// release drops the claim so the next submission, Recalculate or the
// sweep can retry.
func (c *Coordinator) release(ctx context.Context, matchID string) {
	_, err := c.store.UpdateEvaluation(ctx, matchID, func(cur *model.Evaluation) error {
		if cur.OVRUpdateTriggered || cur.RecalcStartedAt == nil {
			return errNoop
		}
		cur.RecalcStartedAt = nil
		return nil
	})
	if err != nil && !errors.Is(err, errNoop) {
		c.log.Warn(ctx, "failed to release recalculation claim; it will time out",
			logger.String("match", matchID), logger.Error(err))
	}
}

// applyRatings updates one player. It returns nil when the player no
// longer exists.
func (c *Coordinator) applyRatings(ctx context.Context, e model.Evaluation, playerID string, ratings []int, now time.Time) (*model.OVRUpdate, error) {
	avg := scoring.Mean(ratings)
	var entry model.HistoryEntry
	p, err := c.store.UpdatePlayer(ctx, playerID, func(p *model.Player) error {
		for _, h := range p.OVRHistory {
			if h.MatchID == e.MatchID {
				entry = h
				return errAlreadyApplied
			}
		}
		newOVR := scoring.ApplyRatingDelta(p.OVR, scoring.RatingDelta(avg))
		changes := scoring.AttributeChanges(p.Position, scoring.AttributeIntensity(avg))
		entry = model.HistoryEntry{
			Date:             now,
			OldOVR:           p.OVR,
			NewOVR:           newOVR,
			Change:           newOVR - p.OVR,
			MatchID:          e.MatchID,
			AttributeChanges: changes,
		}
		p.Attributes = scoring.ApplyAttributeChanges(p.Attributes, changes)
		p.OVR = newOVR
		p.UpdatedAt = now
		p.OVRHistory = append(p.OVRHistory, entry)
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyApplied):
		return &model.OVRUpdate{PlayerID: playerID, OldOVR: entry.OldOVR, NewOVR: entry.NewOVR, AvgRating: avg}, nil
	case errors.Is(err, repository.ErrNotFound):
		c.log.Warn(ctx, "rated player no longer exists", logger.String("player", playerID))
		return nil, nil
	case err != nil:
		return nil, err
	}

	c.trace(ctx, e, p.ID, entry, avg, len(ratings))
	c.announceChange(ctx, e, p, entry)
	return &model.OVRUpdate{PlayerID: playerID, OldOVR: entry.OldOVR, NewOVR: entry.NewOVR, AvgRating: avg}, nil
}

func (c *Coordinator) trace(ctx context.Context, e model.Evaluation, playerID string, h model.HistoryEntry, avg float64, n int) {
	err := c.store.AppendEvaluationLog(ctx, model.EvaluationLog{
		MatchID:          e.MatchID,
		PlayerID:         playerID,
		OldOVR:           h.OldOVR,
		NewOVR:           h.NewOVR,
		AvgRating:        avg,
		RatingsCount:     n,
		AttributeChanges: h.AttributeChanges,
		CreatedAt:        h.Date,
	})
	if err != nil {
		c.log.Warn(ctx, "failed to write evaluation trace",
			logger.String("match", e.MatchID), logger.Error(err))
	}
}

func (c *Coordinator) announceChange(ctx context.Context, e model.Evaluation, p model.Player, h model.HistoryEntry) {
	if c.sink == nil {
		return
	}
	c.sink.Notify(ctx, model.Notification{
		UserID:  p.ID,
		GroupID: e.GroupID,
		Kind:    model.NotifyOVRChange,
		Title:   c.loc.Get("Your rating changed"),
		Body:    c.loc.Get("Your OVR went from %d to %d after %s", h.OldOVR, h.NewOVR, e.MatchName),
		Data: map[string]any{
			"matchId": e.MatchID,
			"oldOvr":  h.OldOVR,
			"newOvr":  h.NewOVR,
			"change":  h.Change,
		},
		CreatedAt: h.Date,
	})
	c.sink.LogActivity(ctx, model.Activity{
		GroupID:   e.GroupID,
		Kind:      model.ActivityOVRUpdate,
		Message:   c.loc.Get("%s: OVR %d to %d", p.Name, h.OldOVR, h.NewOVR),
		Data:      map[string]any{"playerId": p.ID, "matchId": e.MatchID, "change": h.Change},
		CreatedAt: h.Date,
	})
}
