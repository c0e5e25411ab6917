// Package evaluation runs post-match peer evaluations: it assigns teammates
// to rate, collects submissions and, once enough evaluators have answered,
// applies the averaged ratings to player OVRs exactly once per match.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// Store is the slice of the roster store the coordinator needs.
type Store interface {
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error)
	CreateEvaluation(ctx context.Context, e model.Evaluation) error
	GetEvaluation(ctx context.Context, matchID string) (model.Evaluation, error)
	UpdateEvaluation(ctx context.Context, matchID string, fn func(*model.Evaluation) error) (model.Evaluation, error)
	QueryEvaluations(ctx context.Context, f repository.EvaluationFilter) ([]model.Evaluation, error)
	AppendEvaluationLog(ctx context.Context, l model.EvaluationLog) error
}

// Notifier delivers notifications and feed events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
	LogActivity(ctx context.Context, a model.Activity)
}

// Submission is one rating in an evaluator's submission.
type Submission struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SubmitResult reports the state after an accepted submission.
type SubmitResult struct {
	Success           bool    `json:"success"`
	ParticipationRate float64 `json:"participationRate"`
	OVRUpdated        bool    `json:"ovrUpdated"`
}

// Coordinator implements the evaluation workflow. It holds no per-match
// state; every decision is made inside a store transaction.
type Coordinator struct {
	store Store
	sink  Notifier
	log   logger.Logger
	loc   i18n.Localizer
	now   func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	deadline     time.Duration
	threshold    float64
	targets      int
	claimTimeout time.Duration
}

// New creates a Coordinator with configuration options.
func New(store Store, sink Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        store,
		sink:         sink,
		log:          logger.Nop(),
		now:          time.Now,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // assignment shuffling
		deadline:     DefaultDeadline,
		threshold:    DefaultThreshold,
		targets:      DefaultTargetsPerEvaluator,
		claimTimeout: DefaultClaimTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loc == nil {
		c.loc = i18n.MustLoad(i18n.DefaultLanguage).Locale(i18n.DefaultLanguage)
	}
	return c
}

// Threshold returns the participation rate that triggers recalculation.
func (c *Coordinator) Threshold() float64 { return c.threshold }

// InitializeEvaluations opens the evaluation round for a completed match.
//
// Guests are excluded. With fewer than MinEligiblePlayers eligible players
// it returns (nil, nil). Every eligible player with enough eligible
// teammates gets c.targets distinct teammates chosen at random.
func (c *Coordinator) InitializeEvaluations(ctx context.Context, match model.Match) (*model.Evaluation, error) {
	if match.Status != model.MatchCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrMatchNotCompleted, match.ID, match.Status)
	}

	teamA, err := c.eligible(ctx, match.TeamA)
	if err != nil {
		return nil, err
	}
	teamB, err := c.eligible(ctx, match.TeamB)
	if err != nil {
		return nil, err
	}
	if n := len(teamA) + len(teamB); n < MinEligiblePlayers {
		c.log.Info(ctx, "not enough eligible players for evaluations",
			logger.String("match", match.ID), logger.Int("eligible", n))
		return nil, nil
	}

	now := c.now()
	e := model.Evaluation{
		MatchID:     match.ID,
		MatchName:   match.DisplayName(),
		MatchType:   match.Type,
		MatchDate:   match.Date,
		GroupID:     match.GroupID,
		CreatedAt:   now,
		Deadline:    now.Add(c.deadline),
		Assignments: make(map[string]*model.Assignment),
		Completed:   make(map[string]bool),
		Status:      model.EvaluationPending,
		TeamA:       model.TeamSummary{Name: match.TeamA.Name, Players: len(match.TeamA.Players)},
		TeamB:       model.TeamSummary{Name: match.TeamB.Name, Players: len(match.TeamB.Players)},
	}
	c.assign(e.Assignments, teamA)
	c.assign(e.Assignments, teamB)

	if err := c.store.CreateEvaluation(ctx, e); err != nil {
		return nil, fmt.Errorf("create evaluation for %s: %w", match.ID, err)
	}
	metrics.IncrementEvaluationsInitialized()
	c.log.Info(ctx, "evaluations initialized",
		logger.String("match", match.ID), logger.Int("assignments", len(e.Assignments)))

	c.announce(ctx, e)
	return &e, nil
}

// eligible loads the current state of a team's non-guest players in roster order.
func (c *Coordinator) eligible(ctx context.Context, team model.Team) ([]model.Player, error) {
	out := make([]model.Player, 0, len(team.Players))
	for _, ref := range team.Players {
		p, err := c.store.GetPlayer(ctx, ref.ID)
		if errors.Is(err, repository.ErrNotFound) {
			c.log.Warn(ctx, "skipping missing player", logger.String("player", ref.ID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load player %s: %w", ref.ID, err)
		}
		if !p.IsGuest {
			out = append(out, p)
		}
	}
	return out, nil
}

// assign picks targets for every player of one team.
func (c *Coordinator) assign(into map[string]*model.Assignment, team []model.Player) {
	if len(team)-1 < c.targets {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range team {
		mates := make([]model.Player, 0, len(team)-1)
		mates = append(mates, team[:i]...)
		mates = append(mates, team[i+1:]...)
		a := &model.Assignment{
			EvaluatorName: p.Name,
			ToEvaluate:    make([]model.PlayerRef, 0, c.targets),
			Evaluations:   make(map[string]model.Rating),
		}
		for _, k := range c.rng.Perm(len(mates))[:c.targets] {
			a.ToEvaluate = append(a.ToEvaluate, mates[k].Ref())
		}
		into[p.ID] = a
	}
}

// SubmitEvaluation records an evaluator's ratings. Submissions are one-shot.
// When the submission lifts participation to the threshold the ratings are
// applied; a failed application is logged and retried later, the
// submission itself still succeeds.
func (c *Coordinator) SubmitEvaluation(ctx context.Context, matchID, evaluatorID string, ratings map[string]Submission) (SubmitResult, error) {
	var claimed bool
	e, err := c.store.UpdateEvaluation(ctx, matchID, func(e *model.Evaluation) error {
		claimed = false
		if e.Status == model.EvaluationExpired {
			return ErrEvaluationExpired
		}
		a, ok := e.Assignments[evaluatorID]
		if !ok || a.Completed {
			return fmt.Errorf("%w: %s in %s", ErrAlreadySubmitted, evaluatorID, matchID)
		}
		if err := validate(a, ratings); err != nil {
			return err
		}

		now := c.now()
		a.Completed = true
		a.CompletedAt = &now
		for target, s := range ratings {
			a.Evaluations[target] = model.Rating{Rating: s.Rating, Comment: strings.TrimSpace(s.Comment), EvaluatedAt: now}
		}
		if e.Completed == nil {
			e.Completed = make(map[string]bool)
		}
		e.Completed[evaluatorID] = true
		e.ParticipationRate = e.Rate()
		claimed = c.claim(e, now)
		return nil
	})
	if err != nil {
		metrics.RecordEvaluationSubmission(outcome(err))
		if errors.Is(err, repository.ErrNotFound) {
			return SubmitResult{}, fmt.Errorf("%w: %s", ErrNotFound, matchID)
		}
		return SubmitResult{}, err
	}
	metrics.RecordEvaluationSubmission("accepted")

	res := SubmitResult{Success: true, ParticipationRate: e.ParticipationRate}
	if claimed {
		if _, err := c.recalculate(ctx, e); err != nil {
			c.log.Error(ctx, "recalculation failed, will retry",
				logger.String("match", matchID), logger.Error(err))
		} else {
			res.OVRUpdated = true
		}
	}
	return res, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadySubmitted):
		return "duplicate"
	case errors.Is(err, ErrInvalidSubmission):
		return "invalid"
	case errors.Is(err, ErrEvaluationExpired):
		return "expired"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	}
	return "error"
}

// validate requires exactly the assigned targets, each rated 1..10.
func validate(a *model.Assignment, ratings map[string]Submission) error {
	targets := a.Targets()
	if len(ratings) != len(targets) {
		return fmt.Errorf("%w: expected %d ratings, got %d", ErrInvalidSubmission, len(targets), len(ratings))
	}
	for _, id := range targets {
		s, ok := ratings[id]
		if !ok {
			return fmt.Errorf("%w: missing rating for %s", ErrInvalidSubmission, id)
		}
		if s.Rating < 1 || s.Rating > 10 {
			return fmt.Errorf("%w: rating %d for %s is outside 1..10", ErrInvalidSubmission, s.Rating, id)
		}
	}
	return nil
}

// claim marks e for recalculation when the threshold is met, ratings have
// not been applied and nobody holds a fresh claim. It must run inside the
// store transaction that wrote the submission.
func (c *Coordinator) claim(e *model.Evaluation, now time.Time) bool {
	if e.OVRUpdateTriggered || e.Status != model.EvaluationPending {
		return false
	}
	if e.ParticipationRate < c.threshold {
		return false
	}
	if e.RecalcStartedAt != nil && now.Sub(*e.RecalcStartedAt) < c.claimTimeout {
		return false
	}
	e.RecalcStartedAt = &now
	return true
}

// Recalculate retries a recalculation that is due but was not completed.
func (c *Coordinator) Recalculate(ctx context.Context, matchID string) ([]model.OVRUpdate, error) {
	e, err := c.store.UpdateEvaluation(ctx, matchID, func(e *model.Evaluation) error {
		switch {
		case e.OVRUpdateTriggered:
			return ErrAlreadyRecalculated
		case e.Status != model.EvaluationPending:
			return ErrEvaluationExpired
		case e.Rate() < c.threshold:
			return fmt.Errorf("%w: %.2f < %.2f", ErrThresholdNotReached, e.Rate(), c.threshold)
		}
		if !c.claim(e, c.now()) {
			return ErrRecalculationInProgress
		}
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	if err != nil {
		return nil, err
	}
	return c.recalculate(ctx, e)
}

// RetryPendingRecalculations recalculates every evaluation that reached the
// threshold without its ratings being applied. It returns how many were
// completed.
func (c *Coordinator) RetryPendingRecalculations(ctx context.Context) (int, error) {
	due, err := c.store.QueryEvaluations(ctx, repository.EvaluationFilter{Status: model.EvaluationPending, NotTriggered: true})
	if err != nil {
		return 0, fmt.Errorf("query pending recalculations: %w", err)
	}
	done := 0
	var errs []error
	for _, e := range due {
		if e.Rate() < c.threshold {
			continue
		}
		_, err := c.Recalculate(ctx, e.MatchID)
		switch {
		case err == nil:
			done++
		case errors.Is(err, ErrRecalculationInProgress), errors.Is(err, ErrAlreadyRecalculated):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", e.MatchID, err))
		}
	}
	if done > 0 {
		c.log.Info(ctx, "pending recalculations completed", logger.Int("count", done))
	}
	return done, errors.Join(errs...)
}

// CleanupExpiredEvaluations marks pending evaluations past their deadline as
// expired. Evaluations whose ratings were applied are settled and left alone.
func (c *Coordinator) CleanupExpiredEvaluations(ctx context.Context) (int, error) {
	now := c.now()
	overdue, err := c.store.QueryEvaluations(ctx, repository.EvaluationFilter{
		Status:         model.EvaluationPending,
		DeadlineBefore: now,
		NotTriggered:   true,
	})
	if err != nil {
		return 0, fmt.Errorf("query expired evaluations: %w", err)
	}
	expired := 0
	var errs []error
	for _, e := range overdue {
		_, err := c.store.UpdateEvaluation(ctx, e.MatchID, func(cur *model.Evaluation) error {
			if cur.Status != model.EvaluationPending || cur.OVRUpdateTriggered || !cur.Deadline.Before(now) {
				return errNoop
			}
			cur.Status = model.EvaluationExpired
			cur.ExpiredAt = &now
			return nil
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, errNoop):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", e.MatchID, err))
		}
	}
	if expired > 0 {
		metrics.IncrementEvaluationsExpired(expired)
		c.log.Info(ctx, "expired evaluations", logger.Int("count", expired))
	}
	return expired, errors.Join(errs...)
}

// Get returns the evaluation of a match.
func (c *Coordinator) Get(ctx context.Context, matchID string) (model.Evaluation, error) {
	e, err := c.store.GetEvaluation(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Evaluation{}, fmt.Errorf("%w: %s", ErrNotFound, matchID)
	}
	return e, err
}

// PendingFor lists evaluations where playerID still owes a submission,
// newest first.
func (c *Coordinator) PendingFor(ctx context.Context, playerID string) ([]model.Evaluation, error) {
	return c.store.QueryEvaluations(ctx, repository.EvaluationFilter{
		Status:     model.EvaluationPending,
		PendingFor: playerID,
	})
}

// CompletedFor lists evaluations playerID has submitted, newest first. A
// non-positive limit means DefaultCompletedLimit.
func (c *Coordinator) CompletedFor(ctx context.Context, playerID string, limit int) ([]model.Evaluation, error) {
	if limit <= 0 {
		limit = DefaultCompletedLimit
	}
	return c.store.QueryEvaluations(ctx, repository.EvaluationFilter{CompletedBy: playerID, Limit: limit})
}

// announce sends one notification per evaluator and one feed event.
func (c *Coordinator) announce(ctx context.Context, e model.Evaluation) {
	if c.sink == nil {
		return
	}
	ids := make([]string, 0, len(e.Assignments))
	for id := range e.Assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := e.Assignments[id]
		names := make([]string, len(a.ToEvaluate))
		for i, p := range a.ToEvaluate {
			names[i] = p.Name
		}
		c.sink.Notify(ctx, model.Notification{
			UserID:  id,
			GroupID: e.GroupID,
			Kind:    model.NotifyEvaluationPending,
			Title:   c.loc.Get("Pending evaluations"),
			Body:    c.loc.Get("Rate %s from %s", i18n.JoinNames(c.loc, names), e.MatchName),
			Data: map[string]any{
				"matchId":           e.MatchID,
				"matchName":         e.MatchName,
				"playersToEvaluate": a.ToEvaluate,
				"deadline":          e.Deadline,
			},
			CreatedAt: e.CreatedAt,
		})
	}
	c.sink.LogActivity(ctx, model.Activity{
		GroupID:   e.GroupID,
		Kind:      model.ActivityEvaluationsPending,
		Message:   c.loc.Get("%s finished: %d players have teammates to rate", e.MatchName, len(e.Assignments)),
		Data:      map[string]any{"matchId": e.MatchID, "assignments": len(e.Assignments)},
		CreatedAt: e.CreatedAt,
	})
}
