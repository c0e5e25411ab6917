// Package storetest holds a behavioural suite every repository.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// Player builds a player of group "g1" with flat attributes.
func Player(id string, ovr int) model.Player {
	return model.Player{
		ID:         id,
		GroupID:    "g1",
		Name:       "Player " + id,
		Position:   model.PositionMID,
		Attributes: model.Attributes{Pace: ovr, Shooting: ovr, Passing: ovr, Dribbling: ovr, Defending: ovr, Physical: ovr},
		OVR:        ovr,
		CreatedAt:  base,
		UpdatedAt:  base,
	}
}

// Evaluation builds a pending evaluation with one open and one completed assignment.
func Evaluation(matchID string, created time.Time) model.Evaluation {
	done := created.Add(time.Hour)
	return model.Evaluation{
		MatchID:   matchID,
		MatchName: "Friday " + matchID,
		MatchType: model.MatchTypeManual,
		GroupID:   "g1",
		CreatedAt: created,
		Deadline:  created.Add(72 * time.Hour),
		Status:    model.EvaluationPending,
		Assignments: map[string]*model.Assignment{
			"p1": {EvaluatorName: "One", ToEvaluate: []model.PlayerRef{{ID: "p2"}, {ID: "p3"}}, Evaluations: map[string]model.Rating{}},
			"p2": {
				EvaluatorName: "Two",
				ToEvaluate:    []model.PlayerRef{{ID: "p1"}, {ID: "p3"}},
				Completed:     true,
				CompletedAt:   &done,
				Evaluations: map[string]model.Rating{
					"p1": {Rating: 8, EvaluatedAt: done},
					"p3": {Rating: 6, Comment: "solid", EvaluatedAt: done},
				},
			},
		},
		Completed: map[string]bool{"p2": true},
	}
}

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := newStore(t)
		Reset(func() { _ = s.Close() })

		Convey("Players should round-trip and be versioned", func() {
			created, err := s.CreatePlayer(ctx, Player("p1", 70))
			So(err, ShouldBeNil)
			So(created.Version, ShouldEqual, int64(1))

			_, err = s.CreatePlayer(ctx, Player("p1", 70))
			So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)

			got, err := s.GetPlayer(ctx, "p1")
			So(err, ShouldBeNil)
			So(got.Name, ShouldEqual, "Player p1")
			So(got.Attributes.Passing, ShouldEqual, 70)

			_, err = s.GetPlayer(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			var se *repository.StoreError
			So(errors.As(err, &se), ShouldBeTrue)
		})

		Convey("An empty ID should be assigned", func() {
			p := Player("", 60)
			created, err := s.CreatePlayer(ctx, p)
			So(err, ShouldBeNil)
			So(created.ID, ShouldNotBeEmpty)
		})

		Convey("Player updates should apply atomically", func() {
			_, err := s.CreatePlayer(ctx, Player("p1", 70))
			So(err, ShouldBeNil)

			updated, err := s.UpdatePlayer(ctx, "p1", func(p *model.Player) error {
				p.OVR = 75
				p.OVRHistory = append(p.OVRHistory, model.HistoryEntry{Date: base, OldOVR: 70, NewOVR: 75, Change: 5, MatchID: "m1"})
				return nil
			})
			So(err, ShouldBeNil)
			So(updated.OVR, ShouldEqual, 75)
			So(updated.Version, ShouldEqual, int64(2))

			got, _ := s.GetPlayer(ctx, "p1")
			So(got.HasHistoryFor("m1"), ShouldBeTrue)
			So(got.OVRHistory[0].Change, ShouldEqual, 5)

			Convey("And a failing update func should leave the record untouched", func() {
				boom := errors.New("boom")
				_, err := s.UpdatePlayer(ctx, "p1", func(p *model.Player) error {
					p.OVR = 10
					return boom
				})
				So(errors.Is(err, boom), ShouldBeTrue)
				got, _ := s.GetPlayer(ctx, "p1")
				So(got.OVR, ShouldEqual, 75)
				So(got.Version, ShouldEqual, int64(2))
			})
		})

		Convey("Concurrent player updates should not lose writes", func() {
			_, err := s.CreatePlayer(ctx, Player("p1", 50))
			So(err, ShouldBeNil)
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = s.UpdatePlayer(ctx, "p1", func(p *model.Player) error {
						p.OVR++
						return nil
					})
				}()
			}
			wg.Wait()
			got, _ := s.GetPlayer(ctx, "p1")
			So(got.OVR, ShouldEqual, 60)
		})

		Convey("Players should list by group and delete", func() {
			for i := 1; i <= 3; i++ {
				_, err := s.CreatePlayer(ctx, Player(fmt.Sprintf("p%d", i), 60+i))
				So(err, ShouldBeNil)
			}
			other := Player("x1", 90)
			other.GroupID = "g2"
			_, err := s.CreatePlayer(ctx, other)
			So(err, ShouldBeNil)

			list, err := s.ListPlayers(ctx, "g1")
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 3)

			So(s.DeletePlayer(ctx, "p2"), ShouldBeNil)
			So(errors.Is(s.DeletePlayer(ctx, "p2"), repository.ErrNotFound), ShouldBeTrue)
			list, _ = s.ListPlayers(ctx, "g1")
			So(len(list), ShouldEqual, 2)
		})

		Convey("The ranking should follow OVR changes", func() {
			for id, ovr := range map[string]int{"a": 70, "b": 80, "c": 80, "d": 60} {
				_, err := s.CreatePlayer(ctx, Player(id, ovr))
				So(err, ShouldBeNil)
			}
			top, err := s.TopPlayers(ctx, "g1", 3)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 3)
			So(top[0].PlayerID, ShouldEqual, "b")
			So(top[1].PlayerID, ShouldEqual, "c")
			So(top[0].Rank, ShouldEqual, 1)
			So(top[1].Rank, ShouldEqual, 1)
			So(top[2].PlayerID, ShouldEqual, "a")
			So(top[2].Rank, ShouldEqual, 2)

			_, err = s.UpdatePlayer(ctx, "d", func(p *model.Player) error {
				p.OVR = 95
				return nil
			})
			So(err, ShouldBeNil)
			top, _ = s.TopPlayers(ctx, "g1", 1)
			So(top[0].PlayerID, ShouldEqual, "d")
			So(top[0].OVR, ShouldEqual, 95)

			_, err = s.TopPlayers(ctx, "g1", 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Matches should round-trip, filter and update", func() {
			m := model.Match{
				ID:      "m1",
				GroupID: "g1",
				Date:    base,
				Format:  model.Format5v5,
				Type:    model.MatchTypeManual,
				TeamA:   model.Team{Name: "Red", Players: []model.PlayerRef{{ID: "p1", Name: "One", Position: model.PositionGK, OVR: 70}}, OVR: 70},
				TeamB:   model.Team{Name: "Blue", Players: []model.PlayerRef{{ID: "p2", Name: "Two", Position: model.PositionFWD, OVR: 72}}, OVR: 72},
				Status:  model.MatchScheduled,
			}
			_, err := s.CreateMatch(ctx, m)
			So(err, ShouldBeNil)
			later := m
			later.ID, later.Date = "m2", base.Add(24*time.Hour)
			_, err = s.CreateMatch(ctx, later)
			So(err, ShouldBeNil)

			got, err := s.GetMatch(ctx, "m1")
			So(err, ShouldBeNil)
			So(got.Format, ShouldResemble, model.Format5v5)
			So(got.TeamA.Players[0].Position, ShouldEqual, model.PositionGK)

			_, err = s.UpdateMatch(ctx, "m1", func(m *model.Match) error {
				m.Status = model.MatchCompleted
				m.Result = &model.Result{ScoreA: 3, ScoreB: 2}
				return nil
			})
			So(err, ShouldBeNil)

			done, err := s.ListMatches(ctx, repository.MatchFilter{GroupID: "g1", Status: model.MatchCompleted})
			So(err, ShouldBeNil)
			So(len(done), ShouldEqual, 1)
			So(done[0].Result.ScoreA, ShouldEqual, 3)

			all, _ := s.ListMatches(ctx, repository.MatchFilter{GroupID: "g1"})
			So(len(all), ShouldEqual, 2)
			So(all[0].ID, ShouldEqual, "m2")

			_, err = s.GetMatch(ctx, "nope")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Evaluations should be unique per match and queryable", func() {
			So(s.CreateEvaluation(ctx, Evaluation("m1", base)), ShouldBeNil)
			So(errors.Is(s.CreateEvaluation(ctx, Evaluation("m1", base)), repository.ErrAlreadyExists), ShouldBeTrue)
			So(s.CreateEvaluation(ctx, Evaluation("m2", base.Add(time.Hour))), ShouldBeNil)

			got, err := s.GetEvaluation(ctx, "m1")
			So(err, ShouldBeNil)
			So(got.Assignments["p2"].Completed, ShouldBeTrue)
			So(got.Assignments["p2"].Evaluations["p3"].Comment, ShouldEqual, "solid")
			So(got.RatingsByTarget()["p1"], ShouldResemble, []int{8})

			pending, err := s.QueryEvaluations(ctx, repository.EvaluationFilter{PendingFor: "p1"})
			So(err, ShouldBeNil)
			So(len(pending), ShouldEqual, 2)
			So(pending[0].MatchID, ShouldEqual, "m2")

			completed, _ := s.QueryEvaluations(ctx, repository.EvaluationFilter{CompletedBy: "p2", Limit: 1})
			So(len(completed), ShouldEqual, 1)

			none, _ := s.QueryEvaluations(ctx, repository.EvaluationFilter{PendingFor: "p2"})
			So(len(none), ShouldEqual, 0)

			overdue, _ := s.QueryEvaluations(ctx, repository.EvaluationFilter{
				Status:         model.EvaluationPending,
				DeadlineBefore: base.Add(72*time.Hour + time.Minute),
			})
			So(len(overdue), ShouldEqual, 1)
			So(overdue[0].MatchID, ShouldEqual, "m1")

			Convey("And updates should persist nested changes", func() {
				now := base.Add(2 * time.Hour)
				_, err := s.UpdateEvaluation(ctx, "m1", func(e *model.Evaluation) error {
					a := e.Assignments["p1"]
					a.Completed = true
					a.CompletedAt = &now
					a.Evaluations["p2"] = model.Rating{Rating: 9, EvaluatedAt: now}
					a.Evaluations["p3"] = model.Rating{Rating: 4, EvaluatedAt: now}
					e.Completed["p1"] = true
					e.ParticipationRate = e.Rate()
					e.OVRUpdateTriggered = true
					return nil
				})
				So(err, ShouldBeNil)

				got, _ := s.GetEvaluation(ctx, "m1")
				So(got.ParticipationRate, ShouldEqual, 1.0)
				So(got.OVRUpdateTriggered, ShouldBeTrue)
				So(got.Version, ShouldEqual, int64(2))

				open, _ := s.QueryEvaluations(ctx, repository.EvaluationFilter{NotTriggered: true})
				So(len(open), ShouldEqual, 1)
				So(open[0].MatchID, ShouldEqual, "m2")

				st, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(st.Evaluations, ShouldEqual, 2)
				So(st.PendingEvaluations, ShouldEqual, 1)
			})
		})

		Convey("Evaluation logs should be kept per match", func() {
			So(s.AppendEvaluationLog(ctx, model.EvaluationLog{MatchID: "m1", PlayerID: "p1", OldOVR: 70, NewOVR: 75, AvgRating: 7.5, RatingsCount: 2, CreatedAt: base}), ShouldBeNil)
			So(s.AppendEvaluationLog(ctx, model.EvaluationLog{MatchID: "m1", PlayerID: "p2", OldOVR: 60, NewOVR: 58, AvgRating: 4, RatingsCount: 1, CreatedAt: base}), ShouldBeNil)
			logs, err := s.ListEvaluationLogs(ctx, "m1")
			So(err, ShouldBeNil)
			So(len(logs), ShouldEqual, 2)
			So(logs[0].ID, ShouldNotBeEmpty)
		})
	})
}
