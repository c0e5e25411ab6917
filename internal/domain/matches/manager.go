// Package matches manages the match lifecycle: balanced creation from an
// explicit roster, status transitions and the hand-off to evaluations.
package matches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// Store is the slice of the roster store the manager needs.
type Store interface {
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	GetMatch(ctx context.Context, id string) (model.Match, error)
	ListMatches(ctx context.Context, f repository.MatchFilter) ([]model.Match, error)
	CreateMatch(ctx context.Context, m model.Match) (model.Match, error)
	UpdateMatch(ctx context.Context, id string, fn func(*model.Match) error) (model.Match, error)
	GetEvaluation(ctx context.Context, matchID string) (model.Evaluation, error)
}

// Evaluations opens evaluation rounds.
type Evaluations interface {
	InitializeEvaluations(ctx context.Context, match model.Match) (*model.Evaluation, error)
}

// Notifier receives feed events.
type Notifier interface {
	LogActivity(ctx context.Context, a model.Activity)
}

// CreateRequest describes a match to schedule.
type CreateRequest struct {
	GroupID   string          `json:"groupId"`
	Name      string          `json:"name"`
	Date      time.Time       `json:"date"`
	Format    model.Format    `json:"format"`
	PlayerIDs []string        `json:"playerIds"`
	Type      model.MatchType `json:"type"`
}

// Manager creates and advances matches.
type Manager struct {
	store    Store
	balancer *balancer.Balancer
	evals    Evaluations
	sink     Notifier
	log      logger.Logger
	loc      i18n.Localizer
	now      func() time.Time
}

// New creates a Manager with configuration options.
func New(store Store, b *balancer.Balancer, evals Evaluations, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		balancer: b,
		evals:    evals,
		log:      logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.loc == nil {
		m.loc = i18n.MustLoad(i18n.DefaultLanguage).Locale(i18n.DefaultLanguage)
	}
	return m
}

// Balance loads the roster and splits it into two teams without
// persisting anything. An empty groupID skips the group check.
func (m *Manager) Balance(ctx context.Context, groupID string, playerIDs []string, format model.Format) (balancer.Result, error) {
	players, err := m.roster(ctx, groupID, playerIDs)
	if err != nil {
		return balancer.Result{}, err
	}
	start := time.Now()
	res, err := m.balancer.Generate(players, format)
	if err != nil {
		metrics.RecordBalancerRun("error", 0, time.Since(start).Seconds())
		return balancer.Result{}, err
	}
	metrics.RecordBalancerRun(string(res.Balance.Bucket), res.Swaps, time.Since(start).Seconds())
	m.log.Debug(ctx, "teams generated",
		logger.String("format", format.String()),
		logger.Float64("diff", res.Diff),
		logger.String("balance", string(res.Balance.Bucket)),
		logger.Int("swaps", res.Swaps))
	return res, nil
}

// roster loads players in request order, dropping duplicate ids.
func (m *Manager) roster(ctx context.Context, groupID string, ids []string) ([]model.Player, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, err := m.store.GetPlayer(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		if groupID != "" && p.GroupID != groupID {
			return nil, fmt.Errorf("%w: %s", ErrForeignPlayer, id)
		}
		out = append(out, p)
	}
	return out, nil
}

// Create balances the requested roster and schedules the match.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (model.Match, balancer.Result, error) {
	res, err := m.Balance(ctx, req.GroupID, req.PlayerIDs, req.Format)
	if err != nil {
		return model.Match{}, balancer.Result{}, err
	}
	if req.Type == "" {
		req.Type = model.MatchTypeManual
	}
	now := m.now()
	if req.Date.IsZero() {
		req.Date = now
	}
	match, err := m.store.CreateMatch(ctx, model.Match{
		GroupID:   req.GroupID,
		Name:      req.Name,
		Date:      req.Date,
		Format:    req.Format,
		Type:      req.Type,
		TeamA:     res.TeamA.Team(),
		TeamB:     res.TeamB.Team(),
		Status:    model.MatchScheduled,
		CreatedAt: now,
	})
	if err != nil {
		return model.Match{}, balancer.Result{}, fmt.Errorf("create match: %w", err)
	}
	m.activity(ctx, match, model.ActivityMatchCreated, m.loc.Get("New match: %s", match.DisplayName()))
	return match, res, nil
}

// Get returns a match.
func (m *Manager) Get(ctx context.Context, id string) (model.Match, error) {
	match, err := m.store.GetMatch(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Match{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, err
}

// List returns matches, newest first.
func (m *Manager) List(ctx context.Context, f repository.MatchFilter) ([]model.Match, error) {
	return m.store.ListMatches(ctx, f)
}

// Transition moves a match to status. Completing a match records result
// and opens its evaluation round. If opening the round fails the match
// stays completed and the returned error wraps ErrEvaluationInit.
func (m *Manager) Transition(ctx context.Context, id string, status model.MatchStatus, result *model.Result) (model.Match, *model.Evaluation, error) {
	if !status.Valid() {
		return model.Match{}, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	now := m.now()
	match, err := m.store.UpdateMatch(ctx, id, func(cur *model.Match) error {
		if !cur.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, cur.Status, status)
		}
		cur.Status = status
		if status == model.MatchCompleted {
			cur.CompletedAt = &now
			if result != nil {
				r := *result
				cur.Result = &r
			}
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return model.Match{}, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Match{}, nil, err
	}
	m.log.Info(ctx, "match status changed", logger.String("match", id), logger.String("status", string(status)))
	if status != model.MatchCompleted {
		return match, nil, nil
	}

	msg := m.loc.Get("%s finished", match.DisplayName())
	if match.Result != nil {
		msg = m.loc.Get("%s finished %d-%d", match.DisplayName(), match.Result.ScoreA, match.Result.ScoreB)
	}
	m.activity(ctx, match, model.ActivityMatchCompleted, msg)

	ev, err := m.evals.InitializeEvaluations(ctx, match)
	if err != nil {
		m.log.Error(ctx, "failed to open evaluations", logger.String("match", id), logger.Error(err))
		return match, nil, fmt.Errorf("%w: %w", ErrEvaluationInit, err)
	}
	return match, ev, nil
}

// EnsureEvaluation opens the evaluation round of a completed match if it
// does not exist yet and returns it. It returns (nil, nil) when the match
// has too few eligible players.
func (m *Manager) EnsureEvaluation(ctx context.Context, id string) (*model.Evaluation, error) {
	match, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ev, err := m.evals.InitializeEvaluations(ctx, match)
	if errors.Is(err, repository.ErrAlreadyExists) {
		existing, err := m.store.GetEvaluation(ctx, id)
		if err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return ev, err
}

func (m *Manager) activity(ctx context.Context, match model.Match, kind model.ActivityKind, msg string) {
	if m.sink == nil {
		return
	}
	m.sink.LogActivity(ctx, model.Activity{
		GroupID:   match.GroupID,
		Kind:      kind,
		Message:   msg,
		Data:      map[string]any{"matchId": match.ID, "status": match.Status},
		CreatedAt: m.now(),
	})
}
