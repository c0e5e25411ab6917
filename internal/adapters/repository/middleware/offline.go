package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/mq/queue"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// ErrQueued reports that a write was accepted for later replay.
var ErrQueued = errors.New("write queued for replay")

// Enqueuer accepts deferred writes.
type Enqueuer interface {
	Enqueue(ctx context.Context, w queue.Write) error
}

// Offline queues player creates and updates that fail because the store is
// unavailable. All other calls, evaluations included, pass straight through.
type Offline struct {
	repository.Store
	queue  Enqueuer
	logger logger.Logger
}

var _ repository.Store = (*Offline)(nil)

// NewOffline wraps next, deferring failed player writes onto q.
func NewOffline(next repository.Store, q Enqueuer, l logger.Logger) *Offline {
	if l == nil {
		l = logger.Nop()
	}
	return &Offline{Store: next, queue: q, logger: l.Named("offline")}
}

// CreatePlayer returns the player with its assigned ID and an error
// wrapping ErrQueued when the write was deferred.
func (o *Offline) CreatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	out, err := o.Store.CreatePlayer(ctx, p)
	if !errors.Is(err, repository.ErrUnavailable) {
		return out, err
	}
	w := queue.Write{Kind: queue.CreatePlayer, PlayerID: p.ID, Player: p.Clone()}
	if qerr := o.enqueue(ctx, w); qerr != nil {
		return model.Player{}, err
	}
	return p, repository.Wrap("create_player", ErrQueued)
}

// UpdatePlayer defers fn when the store is unavailable. fn runs again on
// replay against the then-current record, so it must be safe to re-run.
func (o *Offline) UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error) {
	out, err := o.Store.UpdatePlayer(ctx, id, fn)
	if !errors.Is(err, repository.ErrUnavailable) {
		return out, err
	}
	w := queue.Write{Kind: queue.UpdatePlayer, PlayerID: id, Mutate: fn}
	if qerr := o.enqueue(ctx, w); qerr != nil {
		return model.Player{}, err
	}
	return model.Player{ID: id}, repository.Wrap("update_player", ErrQueued)
}

func (o *Offline) enqueue(ctx context.Context, w queue.Write) error {
	if err := o.queue.Enqueue(ctx, w); err != nil {
		o.logger.Error(ctx, "cannot queue write",
			logger.String("kind", string(w.Kind)),
			logger.String("player_id", w.PlayerID),
			logger.Error(err),
		)
		return err
	}
	o.logger.Info(ctx, "store unavailable, write queued",
		logger.String("kind", string(w.Kind)),
		logger.String("player_id", w.PlayerID),
	)
	return nil
}

// Apply replays a queued write against the wrapped store. A create that
// already landed counts as applied.
func (o *Offline) Apply(ctx context.Context, w queue.Write) error {
	switch w.Kind {
	case queue.CreatePlayer:
		_, err := o.Store.CreatePlayer(ctx, w.Player)
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil
		}
		return err
	case queue.UpdatePlayer:
		_, err := o.Store.UpdatePlayer(ctx, w.PlayerID, w.Mutate)
		return err
	}
	return fmt.Errorf("unknown write kind %q", w.Kind)
}
