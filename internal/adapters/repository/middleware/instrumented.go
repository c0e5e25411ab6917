// Package middleware wraps a repository.Store with cross-cutting behaviour.
package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// Instrumented records latency and outcome of every store call and logs
// failures other than not-found.
type Instrumented struct {
	next    repository.Store
	backend string
	logger  logger.Logger
}

var _ repository.Store = (*Instrumented)(nil)

// NewInstrumented wraps next; backend labels the metrics.
func NewInstrumented(next repository.Store, backend string, l logger.Logger) *Instrumented {
	if l == nil {
		l = logger.Nop()
	}
	return &Instrumented{next: next, backend: backend, logger: l.Named("store")}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrAlreadyExists):
		return "exists"
	case errors.Is(err, repository.ErrConflict):
		return "conflict"
	case errors.Is(err, repository.ErrUnavailable):
		return "unavailable"
	}
	var se *repository.StoreError
	if errors.As(err, &se) {
		return "error"
	}
	// errors returned by update funcs are the caller's business
	return "aborted"
}

func (s *Instrumented) observe(ctx context.Context, op string, start time.Time, err error) {
	o := outcome(err)
	metrics.RecordStoreOperation(s.backend, op, o, time.Since(start).Seconds())
	if o == "error" || o == "unavailable" || o == "conflict" {
		metrics.RecordErrorByComponent("store", o)
		s.logger.Warn(ctx, "store operation failed",
			logger.String("op", op),
			logger.String("backend", s.backend),
			logger.Error(err),
		)
	}
}

func (s *Instrumented) GetPlayer(ctx context.Context, id string) (p model.Player, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_player", start, err) }(time.Now())
	return s.next.GetPlayer(ctx, id)
}

func (s *Instrumented) ListPlayers(ctx context.Context, groupID string) (ps []model.Player, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_players", start, err) }(time.Now())
	return s.next.ListPlayers(ctx, groupID)
}

func (s *Instrumented) CreatePlayer(ctx context.Context, p model.Player) (out model.Player, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_player", start, err) }(time.Now())
	return s.next.CreatePlayer(ctx, p)
}

func (s *Instrumented) UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (p model.Player, err error) {
	defer func(start time.Time) { s.observe(ctx, "update_player", start, err) }(time.Now())
	return s.next.UpdatePlayer(ctx, id, fn)
}

func (s *Instrumented) DeletePlayer(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_player", start, err) }(time.Now())
	return s.next.DeletePlayer(ctx, id)
}

func (s *Instrumented) TopPlayers(ctx context.Context, groupID string, n int) (es []types.Entry, err error) {
	defer func(start time.Time) { s.observe(ctx, "top_players", start, err) }(time.Now())
	return s.next.TopPlayers(ctx, groupID, n)
}

func (s *Instrumented) GetMatch(ctx context.Context, id string) (m model.Match, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_match", start, err) }(time.Now())
	return s.next.GetMatch(ctx, id)
}

func (s *Instrumented) ListMatches(ctx context.Context, f repository.MatchFilter) (ms []model.Match, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_matches", start, err) }(time.Now())
	return s.next.ListMatches(ctx, f)
}

func (s *Instrumented) CreateMatch(ctx context.Context, m model.Match) (out model.Match, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_match", start, err) }(time.Now())
	return s.next.CreateMatch(ctx, m)
}

func (s *Instrumented) UpdateMatch(ctx context.Context, id string, fn func(*model.Match) error) (m model.Match, err error) {
	defer func(start time.Time) { s.observe(ctx, "update_match", start, err) }(time.Now())
	return s.next.UpdateMatch(ctx, id, fn)
}

func (s *Instrumented) CreateEvaluation(ctx context.Context, e model.Evaluation) (err error) {
	defer func(start time.Time) { s.observe(ctx, "create_evaluation", start, err) }(time.Now())
	return s.next.CreateEvaluation(ctx, e)
}

func (s *Instrumented) GetEvaluation(ctx context.Context, matchID string) (e model.Evaluation, err error) {
	defer func(start time.Time) { s.observe(ctx, "get_evaluation", start, err) }(time.Now())
	return s.next.GetEvaluation(ctx, matchID)
}

func (s *Instrumented) UpdateEvaluation(ctx context.Context, matchID string, fn func(*model.Evaluation) error) (e model.Evaluation, err error) {
	defer func(start time.Time) { s.observe(ctx, "update_evaluation", start, err) }(time.Now())
	return s.next.UpdateEvaluation(ctx, matchID, fn)
}

func (s *Instrumented) QueryEvaluations(ctx context.Context, f repository.EvaluationFilter) (es []model.Evaluation, err error) {
	defer func(start time.Time) { s.observe(ctx, "query_evaluations", start, err) }(time.Now())
	return s.next.QueryEvaluations(ctx, f)
}

func (s *Instrumented) AppendEvaluationLog(ctx context.Context, l model.EvaluationLog) (err error) {
	defer func(start time.Time) { s.observe(ctx, "append_evaluation_log", start, err) }(time.Now())
	return s.next.AppendEvaluationLog(ctx, l)
}

func (s *Instrumented) ListEvaluationLogs(ctx context.Context, matchID string) (ls []model.EvaluationLog, err error) {
	defer func(start time.Time) { s.observe(ctx, "list_evaluation_logs", start, err) }(time.Now())
	return s.next.ListEvaluationLogs(ctx, matchID)
}

func (s *Instrumented) Stats(ctx context.Context) (st repository.Stats, err error) {
	defer func(start time.Time) { s.observe(ctx, "stats", start, err) }(time.Now())
	return s.next.Stats(ctx)
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
