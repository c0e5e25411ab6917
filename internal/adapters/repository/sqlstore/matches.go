package sqlstore

import (
	"context"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

func (s *Store) selectMatch(ctx context.Context, q sqlx.QueryerContext, id string) (model.Match, error) {
	query, args, err := s.sq.Select(matchColumns...).From("matches").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Match{}, err
	}
	var row matchRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return model.Match{}, err
	}
	return row.match()
}

func (s *Store) GetMatch(ctx context.Context, id string) (model.Match, error) {
	m, err := s.selectMatch(ctx, s.db, id)
	if err != nil {
		return model.Match{}, s.fail("get_match", err)
	}
	return m, nil
}

func (s *Store) ListMatches(ctx context.Context, f repository.MatchFilter) ([]model.Match, error) {
	q := s.sq.Select(matchColumns...).From("matches").OrderBy("date DESC", "id ASC")
	if f.GroupID != "" {
		q = q.Where(squirrel.Eq{"group_id": f.GroupID})
	}
	if f.Status != "" {
		q = q.Where(squirrel.Eq{"status": string(f.Status)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, s.fail("list_matches", err)
	}
	var rows []matchRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail("list_matches", err)
	}
	out := make([]model.Match, 0, len(rows))
	for _, r := range rows {
		m, err := r.match()
		if err != nil {
			return nil, s.fail("list_matches", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) CreateMatch(ctx context.Context, m model.Match) (model.Match, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.Version = 1
	values, err := matchValues(m)
	if err != nil {
		return model.Match{}, s.fail("create_match", err)
	}
	query, args, err := s.sq.Insert("matches").SetMap(values).ToSql()
	if err != nil {
		return model.Match{}, s.fail("create_match", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return model.Match{}, s.fail("create_match", err)
	}
	return m.Clone(), nil
}

func (s *Store) UpdateMatch(ctx context.Context, id string, fn func(*model.Match) error) (model.Match, error) {
	var out model.Match
	err := s.update(ctx, "update_match", func(tx *sqlx.Tx) error {
		cur, err := s.selectMatch(ctx, tx, id)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			return callbackError{err}
		}
		next.ID = cur.ID
		next.Version = cur.Version + 1

		values, err := matchValues(next)
		if err != nil {
			return err
		}
		delete(values, "id")
		query, args, err := s.sq.Update("matches").SetMap(values).
			Where(squirrel.Eq{"id": id, "version": cur.Version}).ToSql()
		if err != nil {
			return err
		}
		if err := execOne(ctx, tx, query, args...); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return model.Match{}, err
	}
	return out, nil
}
