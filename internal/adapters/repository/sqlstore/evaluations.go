package sqlstore

import (
	"context"
	"encoding/json"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

const assignmentExists = "EXISTS (SELECT 1 FROM evaluation_assignments a " +
	"WHERE a.match_id = evaluations.match_id AND a.evaluator_id = ? AND a.completed = ?)"

func (s *Store) selectEvaluation(ctx context.Context, q sqlx.QueryerContext, matchID string) (model.Evaluation, error) {
	query, args, err := s.sq.Select("doc", "version").From("evaluations").
		Where(squirrel.Eq{"match_id": matchID}).ToSql()
	if err != nil {
		return model.Evaluation{}, err
	}
	var row evaluationRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return model.Evaluation{}, err
	}
	return row.evaluation()
}

// writeAssignments mirrors the assignment map into the side table used by
// the PendingFor and CompletedBy queries.
func (s *Store) writeAssignments(ctx context.Context, tx *sqlx.Tx, e model.Evaluation) error {
	query, args, err := s.sq.Delete("evaluation_assignments").Where(squirrel.Eq{"match_id": e.MatchID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	if len(e.Assignments) == 0 {
		return nil
	}
	ins := s.sq.Insert("evaluation_assignments").Columns("match_id", "evaluator_id", "completed")
	for id, a := range e.Assignments {
		ins = ins.Values(e.MatchID, id, a.Completed)
	}
	query, args, err = ins.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) CreateEvaluation(ctx context.Context, e model.Evaluation) error {
	e.Version = 1
	err := s.transaction(ctx, func(tx *sqlx.Tx) error {
		values, err := evaluationValues(e)
		if err != nil {
			return err
		}
		query, args, err := s.sq.Insert("evaluations").SetMap(values).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		return s.writeAssignments(ctx, tx, e)
	})
	return s.fail("create_evaluation", err)
}

func (s *Store) GetEvaluation(ctx context.Context, matchID string) (model.Evaluation, error) {
	e, err := s.selectEvaluation(ctx, s.db, matchID)
	if err != nil {
		return model.Evaluation{}, s.fail("get_evaluation", err)
	}
	return e, nil
}

func (s *Store) UpdateEvaluation(ctx context.Context, matchID string, fn func(*model.Evaluation) error) (model.Evaluation, error) {
	var out model.Evaluation
	err := s.update(ctx, "update_evaluation", func(tx *sqlx.Tx) error {
		cur, err := s.selectEvaluation(ctx, tx, matchID)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			return callbackError{err}
		}
		next.MatchID = cur.MatchID
		next.Version = cur.Version + 1

		values, err := evaluationValues(next)
		if err != nil {
			return err
		}
		delete(values, "match_id")
		query, args, err := s.sq.Update("evaluations").SetMap(values).
			Where(squirrel.Eq{"match_id": matchID, "version": cur.Version}).ToSql()
		if err != nil {
			return err
		}
		if err := execOne(ctx, tx, query, args...); err != nil {
			return err
		}
		if err := s.writeAssignments(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return model.Evaluation{}, err
	}
	return out, nil
}

func (s *Store) QueryEvaluations(ctx context.Context, f repository.EvaluationFilter) ([]model.Evaluation, error) {
	q := s.sq.Select("doc", "version").From("evaluations").OrderBy("created_at DESC", "match_id ASC")
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(f.Status)})
	}
	if f.GroupID != "" {
		q = q.Where(squirrel.Eq{"group_id": f.GroupID})
	}
	if f.PendingFor != "" {
		q = q.Where(squirrel.Eq{"status": string(model.EvaluationPending)}).
			Where(assignmentExists, f.PendingFor, false)
	}
	if f.CompletedBy != "" {
		q = q.Where(assignmentExists, f.CompletedBy, true)
	}
	if !f.DeadlineBefore.IsZero() {
		q = q.Where(squirrel.Lt{"deadline": utc(f.DeadlineBefore)})
	}
	if f.NotTriggered {
		q = q.Where(squirrel.Eq{"ovr_update_triggered": false})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, s.fail("query_evaluations", err)
	}
	var rows []evaluationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail("query_evaluations", err)
	}
	out := make([]model.Evaluation, 0, len(rows))
	for _, r := range rows {
		e, err := r.evaluation()
		if err != nil {
			return nil, s.fail("query_evaluations", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) AppendEvaluationLog(ctx context.Context, l model.EvaluationLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	var changes null.String
	if len(l.AttributeChanges) > 0 {
		b, err := json.Marshal(l.AttributeChanges)
		if err != nil {
			return s.fail("append_evaluation_log", err)
		}
		changes = null.StringFrom(string(b))
	}
	query, args, err := s.sq.Insert("evaluation_logs").SetMap(map[string]interface{}{
		"id":                l.ID,
		"match_id":          l.MatchID,
		"player_id":         l.PlayerID,
		"old_ovr":           l.OldOVR,
		"new_ovr":           l.NewOVR,
		"avg_rating":        l.AvgRating,
		"ratings_count":     l.RatingsCount,
		"attribute_changes": changes,
		"created_at":        utc(l.CreatedAt),
	}).ToSql()
	if err != nil {
		return s.fail("append_evaluation_log", err)
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return s.fail("append_evaluation_log", err)
}

func (s *Store) ListEvaluationLogs(ctx context.Context, matchID string) ([]model.EvaluationLog, error) {
	query, args, err := s.sq.Select("*").From("evaluation_logs").
		Where(squirrel.Eq{"match_id": matchID}).OrderBy("created_at", "id").ToSql()
	if err != nil {
		return nil, s.fail("list_evaluation_logs", err)
	}
	var rows []logRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail("list_evaluation_logs", err)
	}
	out := make([]model.EvaluationLog, 0, len(rows))
	for _, r := range rows {
		l, err := r.log()
		if err != nil {
			return nil, s.fail("list_evaluation_logs", err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	var st repository.Stats
	counts := []struct {
		dst *int
		q   squirrel.SelectBuilder
	}{
		{&st.Players, s.sq.Select("COUNT(*)").From("players")},
		{&st.Matches, s.sq.Select("COUNT(*)").From("matches")},
		{&st.Evaluations, s.sq.Select("COUNT(*)").From("evaluations")},
		{&st.PendingEvaluations, s.sq.Select("COUNT(*)").From("evaluations").
			Where(squirrel.Eq{"status": string(model.EvaluationPending), "ovr_update_triggered": false})},
	}
	for _, c := range counts {
		query, args, err := c.q.ToSql()
		if err != nil {
			return repository.Stats{}, s.fail("stats", err)
		}
		if err := s.db.GetContext(ctx, c.dst, query, args...); err != nil {
			return repository.Stats{}, s.fail("stats", err)
		}
	}
	return st, nil
}
