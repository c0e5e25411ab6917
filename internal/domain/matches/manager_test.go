package matches_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/evaluation"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/matches"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

type failingEvals struct{ calls int }

func (f *failingEvals) InitializeEvaluations(context.Context, model.Match) (*model.Evaluation, error) {
	f.calls++
	return nil, repository.Wrap("create_evaluation", repository.ErrUnavailable)
}

type feed struct{ kinds []model.ActivityKind }

func (f *feed) LogActivity(_ context.Context, a model.Activity) { f.kinds = append(f.kinds, a.Kind) }

func seed(ctx context.Context, s repository.Store) []string {
	specs := []struct {
		id  string
		pos model.Position
		ovr int
	}{
		{"gk", model.PositionGK, 60},
		{"def1", model.PositionDEF, 65},
		{"def2", model.PositionDEF, 70},
		{"mid1", model.PositionMID, 75},
		{"mid2", model.PositionMID, 80},
		{"fwd", model.PositionFWD, 85},
	}
	ids := make([]string, 0, len(specs))
	for _, sp := range specs {
		v := sp.ovr
		_, err := s.CreatePlayer(ctx, model.Player{
			ID:         sp.id,
			GroupID:    "g1",
			Name:       sp.id,
			Position:   sp.pos,
			OVR:        v,
			Attributes: model.Attributes{Pace: v, Shooting: v, Passing: v, Dribbling: v, Defending: v, Physical: v},
		})
		if err != nil {
			panic(err)
		}
		ids = append(ids, sp.id)
	}
	return ids
}

func TestManager(t *testing.T) {
	Convey("Given six registered players", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore(ctx)
		Reset(func() { _ = store.Close() })
		ids := seed(ctx, store)
		now := time.Date(2025, 6, 6, 20, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		coord := evaluation.New(store, nil, evaluation.WithRand(rand.New(rand.NewSource(3))), evaluation.WithClock(clock))
		b := balancer.New(balancer.WithRand(rand.New(rand.NewSource(3))))
		activity := &feed{}
		mgr := matches.New(store, b, coord, matches.WithClock(clock), matches.WithNotifier(activity))
		three, err := model.ParseFormat("3v3")
		So(err, ShouldBeNil)

		Convey("When a 3v3 match is created and completed", func() {
			match, res, err := mgr.Create(ctx, matches.CreateRequest{GroupID: "g1", Format: three, PlayerIDs: ids})
			So(err, ShouldBeNil)

			Convey("Then the teams should be balanced and interleaved", func() {
				So(res.Diff, ShouldBeLessThanOrEqualTo, 8)
				So(match.Status, ShouldEqual, model.MatchScheduled)
				So(match.Type, ShouldEqual, model.MatchTypeManual)
				So(match.TeamA.Players, ShouldHaveLength, 3)
				So(match.TeamB.Players, ShouldHaveLength, 3)
				topA := 0
				for _, id := range []string{"fwd", "mid2", "mid1"} {
					if match.TeamA.Has(id) {
						topA++
					}
				}
				So(topA, ShouldBeIn, 1, 2)
				So(activity.kinds, ShouldContain, model.ActivityMatchCreated)
			})

			Convey("Then completing it should open evaluations for all six", func() {
				done, ev, err := mgr.Transition(ctx, match.ID, model.MatchCompleted, &model.Result{ScoreA: 4, ScoreB: 3})
				So(err, ShouldBeNil)
				So(done.Status, ShouldEqual, model.MatchCompleted)
				So(done.CompletedAt, ShouldNotBeNil)
				So(done.Result.ScoreA, ShouldEqual, 4)
				So(ev, ShouldNotBeNil)
				So(ev.Assignments, ShouldHaveLength, 6)
				for id, a := range ev.Assignments {
					So(a.ToEvaluate, ShouldHaveLength, 2)
					for _, target := range a.ToEvaluate {
						So(target.ID, ShouldNotEqual, id)
						So(done.TeamA.Has(id), ShouldEqual, done.TeamA.Has(target.ID))
					}
				}

				Convey("And it should not complete twice", func() {
					_, _, err := mgr.Transition(ctx, match.ID, model.MatchCompleted, nil)
					So(errors.Is(err, matches.ErrInvalidTransition), ShouldBeTrue)
				})

				Convey("And EnsureEvaluation should return the existing round", func() {
					again, err := mgr.EnsureEvaluation(ctx, match.ID)
					So(err, ShouldBeNil)
					So(again.CreatedAt, ShouldEqual, ev.CreatedAt)
					So(again.Assignments, ShouldHaveLength, 6)
				})
			})
		})

		Convey("When the roster is too small", func() {
			_, _, err := mgr.Create(ctx, matches.CreateRequest{GroupID: "g1", Format: model.Format5v5, PlayerIDs: ids})
			So(errors.Is(err, balancer.ErrInsufficientPlayers), ShouldBeTrue)
		})

		Convey("When the roster names unknown or foreign players", func() {
			_, _, err := mgr.Create(ctx, matches.CreateRequest{GroupID: "g1", Format: three, PlayerIDs: append(ids, "ghost")})
			So(errors.Is(err, matches.ErrPlayerNotFound), ShouldBeTrue)

			_, _, err = mgr.Create(ctx, matches.CreateRequest{GroupID: "g2", Format: three, PlayerIDs: ids})
			So(errors.Is(err, matches.ErrForeignPlayer), ShouldBeTrue)
		})

		Convey("When a scheduled match is cancelled", func() {
			match, _, err := mgr.Create(ctx, matches.CreateRequest{GroupID: "g1", Format: three, PlayerIDs: ids})
			So(err, ShouldBeNil)
			cancelled, ev, err := mgr.Transition(ctx, match.ID, model.MatchCancelled, nil)
			So(err, ShouldBeNil)
			So(ev, ShouldBeNil)
			So(cancelled.Status, ShouldEqual, model.MatchCancelled)

			_, _, err = mgr.Transition(ctx, match.ID, model.MatchInProgress, nil)
			So(errors.Is(err, matches.ErrInvalidTransition), ShouldBeTrue)
		})

		Convey("When the match does not exist", func() {
			_, _, err := mgr.Transition(ctx, "nope", model.MatchCompleted, nil)
			So(errors.Is(err, matches.ErrNotFound), ShouldBeTrue)
		})

		Convey("When opening evaluations fails", func() {
			evals := &failingEvals{}
			flaky := matches.New(store, b, evals, matches.WithClock(clock))
			match, _, err := flaky.Create(ctx, matches.CreateRequest{GroupID: "g1", Format: three, PlayerIDs: ids})
			So(err, ShouldBeNil)

			done, _, err := flaky.Transition(ctx, match.ID, model.MatchCompleted, nil)

			Convey("Then the completion should stand and the error should say why", func() {
				So(errors.Is(err, matches.ErrEvaluationInit), ShouldBeTrue)
				So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)
				So(done.Status, ShouldEqual, model.MatchCompleted)
				stored, _ := mgr.Get(ctx, match.ID)
				So(stored.Status, ShouldEqual, model.MatchCompleted)

				ev, err := mgr.EnsureEvaluation(ctx, match.ID)
				So(err, ShouldBeNil)
				So(ev.Assignments, ShouldHaveLength, 6)
			})
		})
	})
}
