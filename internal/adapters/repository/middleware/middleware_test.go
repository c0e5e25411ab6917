package middleware_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/mq/queue"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/mq/worker"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/middleware"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/storetest"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

	. "github.com/smartystreets/goconvey/convey"
)

// downStore fails player writes with ErrUnavailable while down is set.
type downStore struct {
	*repository.MemStore
	down atomic.Bool
}

func (d *downStore) CreatePlayer(ctx context.Context, p model.Player) (model.Player, error) {
	if d.down.Load() {
		return model.Player{}, repository.Wrap("create_player", repository.ErrUnavailable)
	}
	return d.MemStore.CreatePlayer(ctx, p)
}

func (d *downStore) UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error) {
	if d.down.Load() {
		return model.Player{}, repository.Wrap("update_player", repository.ErrUnavailable)
	}
	return d.MemStore.UpdatePlayer(ctx, id, fn)
}

func TestInstrumented(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return middleware.NewInstrumented(repository.NewMemStore(context.Background()), "memory", nil)
	})
}

func TestOffline(t *testing.T) {
	ctx := context.Background()

	Convey("Given an offline-capable store whose backend is down", t, func() {
		inner := &downStore{MemStore: repository.NewMemStore(ctx)}
		Reset(func() { _ = inner.Close() })
		_, err := inner.CreatePlayer(ctx, storetest.Player("p1", 70))
		So(err, ShouldBeNil)
		inner.down.Store(true)

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		s := middleware.NewOffline(inner, q, nil)

		Convey("When a player is created", func() {
			p, err := s.CreatePlayer(ctx, storetest.Player("", 65))

			Convey("Then the write is queued with an assigned ID", func() {
				So(errors.Is(err, middleware.ErrQueued), ShouldBeTrue)
				So(p.ID, ShouldNotBeEmpty)
				So(q.Len(ctx), ShouldEqual, 1)
			})
		})

		Convey("When queued writes are replayed after recovery", func() {
			created, err := s.CreatePlayer(ctx, storetest.Player("p2", 65))
			So(errors.Is(err, middleware.ErrQueued), ShouldBeTrue)
			_, err = s.UpdatePlayer(ctx, "p1", func(p *model.Player) error {
				p.Name = "Renamed"
				return nil
			})
			So(errors.Is(err, middleware.ErrQueued), ShouldBeTrue)

			inner.down.Store(false)
			pool := worker.NewPool(1, q, s, worker.WithBackoff(0))
			pool.Start(ctx)

			Convey("Then both land in the store", func() {
				ok := false
				for i := 0; i < 200 && !ok; i++ {
					got, err := inner.GetPlayer(ctx, created.ID)
					p1, _ := inner.GetPlayer(ctx, "p1")
					ok = err == nil && got.OVR == 65 && p1.Name == "Renamed"
					time.Sleep(5 * time.Millisecond)
				}
				So(ok, ShouldBeTrue)
				So(pool.Shutdown(ctx), ShouldBeNil)
			})
		})

		Convey("When the queue is full", func() {
			small := queue.NewInMemoryQueue(queue.WithCapacity(1))
			s := middleware.NewOffline(inner, small, nil)
			_, err := s.CreatePlayer(ctx, storetest.Player("a", 60))
			So(errors.Is(err, middleware.ErrQueued), ShouldBeTrue)
			_, err = s.CreatePlayer(ctx, storetest.Player("b", 60))

			Convey("Then the original error is returned", func() {
				So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(err, middleware.ErrQueued), ShouldBeFalse)
			})
		})

		Convey("When a non-player operation fails", func() {
			_, err := s.GetEvaluation(ctx, "nope")

			Convey("Then it passes through untouched", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(q.Len(ctx), ShouldEqual, 0)
			})
		})

		Convey("When a create is replayed twice", func() {
			inner.down.Store(false)
			w := queue.Write{Kind: queue.CreatePlayer, PlayerID: "p9", Player: storetest.Player("p9", 50)}

			Convey("Then the second replay is treated as applied", func() {
				So(s.Apply(ctx, w), ShouldBeNil)
				So(s.Apply(ctx, w), ShouldBeNil)
			})
		})
	})
}
