package sqlstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/sqlstore"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/storetest"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"

	. "github.com/smartystreets/goconvey/convey"
)

func openSQLite(t *testing.T) *sqlstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "futbol.db")
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return openSQLite(t)
	})
}

func TestSQLiteSpecifics(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sqlite file that was already migrated", t, func() {
		path := filepath.Join(t.TempDir(), "futbol.db")
		first, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, path)
		So(err, ShouldBeNil)
		_, err = first.CreatePlayer(ctx, storetest.Player("p1", 71))
		So(err, ShouldBeNil)
		So(first.Close(), ShouldBeNil)

		Convey("When it is opened again", func() {
			again, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, path)
			So(err, ShouldBeNil)
			defer again.Close()

			Convey("Then the data survives and migrations are a no-op", func() {
				p, err := again.GetPlayer(ctx, "p1")
				So(err, ShouldBeNil)
				So(p.OVR, ShouldEqual, 71)
			})
		})
	})

	Convey("Given a sqlite store", t, func() {
		s := openSQLite(t)
		defer s.Close()

		Convey("Nullable columns should round-trip as absent values", func() {
			p := storetest.Player("p1", 60)
			p.PhotoRef = ""
			_, err := s.CreatePlayer(ctx, p)
			So(err, ShouldBeNil)

			_, err = s.UpdatePlayer(ctx, "p1", func(p *model.Player) error {
				p.PhotoRef = "players/p1.jpg"
				return nil
			})
			So(err, ShouldBeNil)
			got, _ := s.GetPlayer(ctx, "p1")
			So(got.PhotoRef, ShouldEqual, "players/p1.jpg")
			So(got.OVRHistory, ShouldBeNil)
		})

		Convey("A match without a result should have none", func() {
			m, err := s.CreateMatch(ctx, model.Match{GroupID: "g1", Format: model.Format7v7, Status: model.MatchScheduled})
			So(err, ShouldBeNil)
			got, err := s.GetMatch(ctx, m.ID)
			So(err, ShouldBeNil)
			So(got.Result, ShouldBeNil)
			So(got.CompletedAt, ShouldBeNil)
			So(got.Format.PlayersPerTeam, ShouldEqual, 7)
		})

		Convey("Log attribute changes should be kept", func() {
			So(s.AppendEvaluationLog(ctx, model.EvaluationLog{
				MatchID: "m1", PlayerID: "p1", OldOVR: 70, NewOVR: 74,
				AttributeChanges: map[string]int{model.AttrPassing: 4},
			}), ShouldBeNil)
			logs, err := s.ListEvaluationLogs(ctx, "m1")
			So(err, ShouldBeNil)
			So(logs[0].AttributeChanges[model.AttrPassing], ShouldEqual, 4)
		})
	})

	Convey("Given an unknown driver", t, func() {
		_, err := sqlstore.Open(ctx, "mysql", "whatever")

		Convey("Then Open refuses it", func() {
			So(errors.Is(err, sqlstore.ErrUnsupportedDriver), ShouldBeTrue)
		})
	})
}
