package dynamostore

import (
	"context"
	"errors"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

// Matches

func (s *Store) GetMatch(ctx context.Context, id string) (model.Match, error) {
	var m model.Match
	if err := s.get(ctx, s.matches, id, &m); err != nil {
		return model.Match{}, fail("get_match", err)
	}
	return m, nil
}

func (s *Store) ListMatches(ctx context.Context, f repository.MatchFilter) ([]model.Match, error) {
	items, err := s.scan(ctx, s.matches, groupFilter(f.GroupID))
	if err != nil {
		return nil, fail("list_matches", err)
	}
	var all []model.Match
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fail("list_matches", err)
	}
	out := make([]model.Match, 0, len(all))
	for _, m := range all {
		if f.Match(m) {
			out = append(out, m)
		}
	}
	repository.SortMatches(out)
	return out, nil
}

func (s *Store) CreateMatch(ctx context.Context, m model.Match) (model.Match, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Version = 1
	if err := s.create(ctx, s.matches, m); err != nil {
		return model.Match{}, fail("create_match", err)
	}
	return m, nil
}

func (s *Store) UpdateMatch(ctx context.Context, id string, fn func(*model.Match) error) (model.Match, error) {
	var out model.Match
	var cbErr error
	err := s.update(ctx, "update_match", func() error {
		var cur model.Match
		if err := s.get(ctx, s.matches, id, &cur); err != nil {
			return fail("update_match", err)
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			cbErr = err
			return err
		}
		next.ID = cur.ID
		next.Version = cur.Version + 1
		if err := s.replace(ctx, s.matches, next, cur.Version); err != nil {
			if errors.Is(err, errStale) {
				return err
			}
			return fail("update_match", err)
		}
		out = next
		return nil
	})
	if cbErr != nil {
		return model.Match{}, cbErr
	}
	if err != nil {
		return model.Match{}, err
	}
	return out, nil
}

// Evaluations

// normalize replaces maps that were stored empty and read back as nil.
func normalize(e *model.Evaluation) {
	if e.Assignments == nil {
		e.Assignments = map[string]*model.Assignment{}
	}
	if e.Completed == nil {
		e.Completed = map[string]bool{}
	}
	for _, a := range e.Assignments {
		if a.Evaluations == nil {
			a.Evaluations = map[string]model.Rating{}
		}
	}
}

func (s *Store) CreateEvaluation(ctx context.Context, e model.Evaluation) error {
	e.Version = 1
	return fail("create_evaluation", s.create(ctx, s.evaluations, e))
}

func (s *Store) GetEvaluation(ctx context.Context, matchID string) (model.Evaluation, error) {
	var e model.Evaluation
	if err := s.get(ctx, s.evaluations, matchID, &e); err != nil {
		return model.Evaluation{}, fail("get_evaluation", err)
	}
	normalize(&e)
	return e, nil
}

func (s *Store) UpdateEvaluation(ctx context.Context, matchID string, fn func(*model.Evaluation) error) (model.Evaluation, error) {
	var out model.Evaluation
	var cbErr error
	err := s.update(ctx, "update_evaluation", func() error {
		var cur model.Evaluation
		if err := s.get(ctx, s.evaluations, matchID, &cur); err != nil {
			return fail("update_evaluation", err)
		}
		normalize(&cur)
		next := cur.Clone()
		if err := fn(&next); err != nil {
			cbErr = err
			return err
		}
		next.MatchID = cur.MatchID
		next.Version = cur.Version + 1
		if err := s.replace(ctx, s.evaluations, next, cur.Version); err != nil {
			if errors.Is(err, errStale) {
				return err
			}
			return fail("update_evaluation", err)
		}
		out = next
		return nil
	})
	if cbErr != nil {
		return model.Evaluation{}, cbErr
	}
	if err != nil {
		return model.Evaluation{}, err
	}
	return out, nil
}

func (s *Store) QueryEvaluations(ctx context.Context, f repository.EvaluationFilter) ([]model.Evaluation, error) {
	var in *dynamodb.ScanInput
	if f.Status != "" {
		in = &dynamodb.ScanInput{
			FilterExpression:          aws.String("#s = :s"),
			ExpressionAttributeNames:  map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":s": &types.AttributeValueMemberS{Value: string(f.Status)}},
		}
	}
	items, err := s.scan(ctx, s.evaluations, in)
	if err != nil {
		return nil, fail("query_evaluations", err)
	}
	var all []model.Evaluation
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fail("query_evaluations", err)
	}
	out := make([]model.Evaluation, 0, len(all))
	for i := range all {
		normalize(&all[i])
		if f.Match(all[i]) {
			out = append(out, all[i])
		}
	}
	return repository.SortEvaluations(out, f.Limit), nil
}

// Logs

func (s *Store) AppendEvaluationLog(ctx context.Context, l model.EvaluationLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return fail("append_evaluation_log", s.create(ctx, s.logs, l))
}

func (s *Store) ListEvaluationLogs(ctx context.Context, matchID string) ([]model.EvaluationLog, error) {
	items, err := s.scan(ctx, s.logs, &dynamodb.ScanInput{
		FilterExpression:          aws.String("matchId = :m"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":m": &types.AttributeValueMemberS{Value: matchID}},
	})
	if err != nil {
		return nil, fail("list_evaluation_logs", err)
	}
	var all []model.EvaluationLog
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fail("list_evaluation_logs", err)
	}
	out := make([]model.EvaluationLog, 0, len(all))
	for _, l := range all {
		if l.MatchID == matchID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	var st repository.Stats
	var err error
	if st.Players, err = s.count(ctx, s.players); err != nil {
		return repository.Stats{}, fail("stats", err)
	}
	if st.Matches, err = s.count(ctx, s.matches); err != nil {
		return repository.Stats{}, fail("stats", err)
	}
	evals, err := s.QueryEvaluations(ctx, repository.EvaluationFilter{})
	if err != nil {
		return repository.Stats{}, err
	}
	st.Evaluations = len(evals)
	for _, e := range evals {
		if e.Status == model.EvaluationPending && !e.OVRUpdateTriggered {
			st.PendingEvaluations++
		}
	}
	return st, nil
}
