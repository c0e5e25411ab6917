// Package repository defines the roster store interface, its errors and the
// in-memory implementation.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
)

// Store provides read/write access to players, matches and evaluations.
//
// Update methods run fn inside a single atomic read-modify-write. If fn
// returns an error nothing is written and that error is returned unwrapped.
type Store interface {
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	ListPlayers(ctx context.Context, groupID string) ([]model.Player, error)
	// CreatePlayer stores a new player, assigning an ID when p.ID is empty.
	CreatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error)
	DeletePlayer(ctx context.Context, id string) error
	// TopPlayers returns the n best players of a group ordered by OVR desc, then ID asc.
	TopPlayers(ctx context.Context, groupID string, n int) ([]types.Entry, error)

	GetMatch(ctx context.Context, id string) (model.Match, error)
	ListMatches(ctx context.Context, f MatchFilter) ([]model.Match, error)
	CreateMatch(ctx context.Context, m model.Match) (model.Match, error)
	UpdateMatch(ctx context.Context, id string, fn func(*model.Match) error) (model.Match, error)

	// CreateEvaluation fails with ErrAlreadyExists when the match already has one.
	CreateEvaluation(ctx context.Context, e model.Evaluation) error
	GetEvaluation(ctx context.Context, matchID string) (model.Evaluation, error)
	UpdateEvaluation(ctx context.Context, matchID string, fn func(*model.Evaluation) error) (model.Evaluation, error)
	QueryEvaluations(ctx context.Context, f EvaluationFilter) ([]model.Evaluation, error)

	AppendEvaluationLog(ctx context.Context, l model.EvaluationLog) error
	ListEvaluationLogs(ctx context.Context, matchID string) ([]model.EvaluationLog, error)

	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats holds record counts.
type Stats struct {
	Players            int `json:"players"`
	Matches            int `json:"matches"`
	Evaluations        int `json:"evaluations"`
	PendingEvaluations int `json:"pendingEvaluations"`
}

// MatchFilter selects matches. Zero fields match everything.
type MatchFilter struct {
	GroupID string
	Status  model.MatchStatus
}

// Match reports whether m satisfies the filter.
func (f MatchFilter) Match(m model.Match) bool {
	if f.GroupID != "" && m.GroupID != f.GroupID {
		return false
	}
	return f.Status == "" || m.Status == f.Status
}

// EvaluationFilter selects evaluations. Zero fields match everything.
// Results are ordered by CreatedAt desc and truncated to Limit when set.
type EvaluationFilter struct {
	Status  model.EvaluationStatus
	GroupID string
	// PendingFor keeps evaluations where this player has an open assignment.
	PendingFor string
	// CompletedBy keeps evaluations where this player has submitted.
	CompletedBy string
	// DeadlineBefore keeps evaluations whose deadline is strictly before it.
	DeadlineBefore time.Time
	// NotTriggered keeps evaluations whose ratings have not been applied yet.
	NotTriggered bool
	Limit        int
}

// Match reports whether e satisfies the filter.
func (f EvaluationFilter) Match(e model.Evaluation) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.GroupID != "" && e.GroupID != f.GroupID {
		return false
	}
	if f.PendingFor != "" && !e.PendingFor(f.PendingFor) {
		return false
	}
	if f.CompletedBy != "" {
		a, ok := e.Assignments[f.CompletedBy]
		if !ok || !a.Completed {
			return false
		}
	}
	if !f.DeadlineBefore.IsZero() && !e.Deadline.Before(f.DeadlineBefore) {
		return false
	}
	return !f.NotTriggered || !e.OVRUpdateTriggered
}

// SortEvaluations orders evaluations by CreatedAt desc, then MatchID, and
// applies limit when positive.
func SortEvaluations(evals []model.Evaluation, limit int) []model.Evaluation {
	sort.SliceStable(evals, func(i, j int) bool {
		if !evals[i].CreatedAt.Equal(evals[j].CreatedAt) {
			return evals[i].CreatedAt.After(evals[j].CreatedAt)
		}
		return evals[i].MatchID < evals[j].MatchID
	})
	if limit > 0 && len(evals) > limit {
		evals = evals[:limit]
	}
	return evals
}

// SortMatches orders matches by Date desc, then ID.
func SortMatches(matches []model.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].Date.Equal(matches[j].Date) {
			return matches[i].Date.After(matches[j].Date)
		}
		return matches[i].ID < matches[j].ID
	})
}
