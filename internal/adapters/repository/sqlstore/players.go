package sqlstore

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
)

func (s *Store) selectPlayer(ctx context.Context, q sqlx.QueryerContext, id string) (model.Player, error) {
	query, args, err := s.sq.Select(playerColumns...).From("players").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return model.Player{}, err
	}
	var row playerRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return model.Player{}, err
	}
	return row.player()
}

func (s *Store) GetPlayer(ctx context.Context, id string) (model.Player, error) {
	p, err := s.selectPlayer(ctx, s.db, id)
	if err != nil {
		return model.Player{}, s.fail("get_player", err)
	}
	return p, nil
}

func (s *Store) ListPlayers(ctx context.Context, groupID string) ([]model.Player, error) {
	q := s.sq.Select(playerColumns...).From("players").OrderBy("created_at", "id")
	if groupID != "" {
		q = q.Where(squirrel.Eq{"group_id": groupID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, s.fail("list_players", err)
	}
	var rows []playerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail("list_players", err)
	}
	out := make([]model.Player, 0, len(rows))
	for _, r := range rows {
		p, err := r.player()
		if err != nil {
			return nil, s.fail("list_players", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) CreatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Version = 1
	values, err := playerValues(p)
	if err != nil {
		return model.Player{}, s.fail("create_player", err)
	}
	query, args, err := s.sq.Insert("players").SetMap(values).ToSql()
	if err != nil {
		return model.Player{}, s.fail("create_player", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return model.Player{}, s.fail("create_player", err)
	}
	return p.Clone(), nil
}

func (s *Store) UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error) {
	var out model.Player
	err := s.update(ctx, "update_player", func(tx *sqlx.Tx) error {
		cur, err := s.selectPlayer(ctx, tx, id)
		if err != nil {
			return err
		}
		next := cur.Clone()
		if err := fn(&next); err != nil {
			return callbackError{err}
		}
		next.ID, next.GroupID = cur.ID, cur.GroupID
		next.Version = cur.Version + 1

		values, err := playerValues(next)
		if err != nil {
			return err
		}
		delete(values, "id")
		delete(values, "group_id")
		query, args, err := s.sq.Update("players").SetMap(values).
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
		return model.Player{}, err
	}
	return out, nil
}

func (s *Store) DeletePlayer(ctx context.Context, id string) error {
	query, args, err := s.sq.Delete("players").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return s.fail("delete_player", err)
	}
	err = execOne(ctx, s.db, query, args...)
	if errors.Is(err, errStale) {
		return repository.Wrap("delete_player", repository.ErrNotFound)
	}
	return s.fail("delete_player", err)
}

func (s *Store) TopPlayers(ctx context.Context, groupID string, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, repository.Wrap("top_players", repository.ErrInvalidLimit)
	}
	query, args, err := s.sq.Select("id", "name", "position", "ovr").From("players").
		Where(squirrel.Eq{"group_id": groupID}).
		OrderBy("ovr DESC", "id ASC").
		Limit(uint64(n)).ToSql()
	if err != nil {
		return nil, s.fail("top_players", err)
	}
	var rows []struct {
		ID       string `db:"id"`
		Name     string `db:"name"`
		Position string `db:"position"`
		OVR      int    `db:"ovr"`
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail("top_players", err)
	}
	out := make([]types.Entry, len(rows))
	for i, r := range rows {
		out[i] = types.Entry{PlayerID: r.ID, Name: r.Name, Position: model.Position(r.Position), OVR: r.OVR}
	}
	types.AssignRanks(out)
	return out, nil
}

// execOne runs a statement that must touch exactly one row; zero rows
// yields errStale.
func execOne(ctx context.Context, ex sqlx.ExecerContext, query string, args ...interface{}) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errStale
	}
	return nil
}
