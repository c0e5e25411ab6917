package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/storetest"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return repository.NewMemStore(context.Background(), repository.WithMetricsUpdateInterval(10*time.Millisecond))
	})
}

func TestMemStoreIsolation(t *testing.T) {
	Convey("Given a memstore holding a player", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore(ctx)
		defer s.Close()
		_, err := s.CreatePlayer(ctx, storetest.Player("p1", 70))
		So(err, ShouldBeNil)

		Convey("When a caller mutates a returned value", func() {
			got, _ := s.GetPlayer(ctx, "p1")
			got.OVRHistory = append(got.OVRHistory, model.HistoryEntry{MatchID: "m1"})
			got.OVR = 1

			Convey("Then the stored copy should be unchanged", func() {
				again, _ := s.GetPlayer(ctx, "p1")
				So(again.OVR, ShouldEqual, 70)
				So(again.HasHistoryFor("m1"), ShouldBeFalse)
			})
		})

		Convey("When Close is called twice", func() {
			So(s.Close(), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})
	})
}

func TestApplyPlayerPatch(t *testing.T) {
	Convey("Given a stored player", t, func() {
		p := storetest.Player("p1", 70)
		p.OVRHistory = []model.HistoryEntry{{MatchID: "m0", OldOVR: 68, NewOVR: 70, Change: 2}}
		p.Version = 4

		Convey("When the patch edits the name and photo", func() {
			out, err := repository.ApplyPlayerPatch(p, []byte(`{"name":"  Lio ","photoRef":"players/p1.jpg"}`))

			Convey("Then only those fields should change", func() {
				So(err, ShouldBeNil)
				So(out.Name, ShouldEqual, "Lio")
				So(out.PhotoRef, ShouldEqual, "players/p1.jpg")
				So(out.OVR, ShouldEqual, 70)
				So(out.Version, ShouldEqual, int64(4))
				So(out.HasHistoryFor("m0"), ShouldBeTrue)
			})
		})

		Convey("When the patch edits attributes", func() {
			out, err := repository.ApplyPlayerPatch(p, []byte(`{"attributes":{"shooting":94}}`))

			Convey("Then OVR should be recomputed from the attributes", func() {
				So(err, ShouldBeNil)
				So(out.Attributes.Shooting, ShouldEqual, 94)
				So(out.Attributes.Pace, ShouldEqual, 70)
				So(out.OVR, ShouldEqual, 74)
			})
		})

		Convey("When the patch tries to overwrite protected fields", func() {
			out, err := repository.ApplyPlayerPatch(p, []byte(`{"id":"evil","ovr":99,"groupId":"g9","ovrHistory":null}`))

			Convey("Then they should be ignored", func() {
				So(err, ShouldBeNil)
				So(out.ID, ShouldEqual, "p1")
				So(out.GroupID, ShouldEqual, "g1")
				So(out.OVR, ShouldEqual, 70)
				So(len(out.OVRHistory), ShouldEqual, 1)
			})
		})

		Convey("When the patch uses a legacy position code", func() {
			out, err := repository.ApplyPlayerPatch(p, []byte(`{"position":"POR"}`))
			So(err, ShouldBeNil)
			So(out.Position, ShouldEqual, model.PositionGK)
		})

		Convey("When the patch is invalid", func() {
			for _, doc := range []string{`{"attributes":{"pace":0}}`, `{"position":"XX"}`, `{"name":""}`, `not json`} {
				_, err := repository.ApplyPlayerPatch(p, []byte(doc))
				So(errors.Is(err, repository.ErrInvalidPatch), ShouldBeTrue)
			}
		})
	})
}
