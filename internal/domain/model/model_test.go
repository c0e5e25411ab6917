package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParsePosition(t *testing.T) {
	convey.Convey("Given position codes", t, func() {
		convey.Convey("When parsing english codes", func() {
			for _, code := range []string{"GK", "def", " mid ", "FWD"} {
				_, err := model.ParsePosition(code)
				convey.So(err, convey.ShouldBeNil)
			}
		})

		convey.Convey("When parsing legacy spanish codes", func() {
			p, err := model.ParsePosition("POR")
			convey.So(err, convey.ShouldBeNil)
			convey.So(p, convey.ShouldEqual, model.PositionGK)

			p, _ = model.ParsePosition("MED")
			convey.So(p, convey.ShouldEqual, model.PositionMID)

			p, _ = model.ParsePosition("DEL")
			convey.So(p, convey.ShouldEqual, model.PositionFWD)
		})

		convey.Convey("When parsing an unknown code", func() {
			_, err := model.ParsePosition("striker")
			convey.So(errors.Is(err, model.ErrInvalidPosition), convey.ShouldBeTrue)
		})
	})
}

func TestParseFormat(t *testing.T) {
	convey.Convey("Given format strings", t, func() {
		convey.Convey("Then documented formats parse", func() {
			f, err := model.ParseFormat("7v7")
			convey.So(err, convey.ShouldBeNil)
			convey.So(f, convey.ShouldResemble, model.Format7v7)
			convey.So(f.Required(), convey.ShouldEqual, 14)
			convey.So(f.String(), convey.ShouldEqual, "7v7")
		})

		convey.Convey("And small-sided formats parse", func() {
			f, err := model.ParseFormat("3V3")
			convey.So(err, convey.ShouldBeNil)
			convey.So(f.PlayersPerTeam, convey.ShouldEqual, 3)
		})

		convey.Convey("And malformed formats fail", func() {
			for _, s := range []string{"", "5", "5v6", "0v0", "av a"} {
				_, err := model.ParseFormat(s)
				convey.So(errors.Is(err, model.ErrInvalidFormat), convey.ShouldBeTrue)
			}
		})

		convey.Convey("And formats travel as strings in JSON", func() {
			b, err := json.Marshal(struct {
				F model.Format `json:"f"`
			}{model.Format5v5})
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(b), convey.ShouldEqual, `{"f":"5v5"}`)
		})
	})
}

func TestAttributes(t *testing.T) {
	convey.Convey("Given a set of attributes", t, func() {
		a := model.Attributes{Pace: 70, Shooting: 85, Passing: 60, Dribbling: 85, Defending: 40, Physical: 55}

		convey.Convey("Then the first strongest attribute is the specialty", func() {
			convey.So(a.Highest(), convey.ShouldEqual, model.AttrShooting)
		})

		convey.Convey("And named access round-trips", func() {
			a.Set(model.AttrDefending, 77)
			convey.So(a.Get(model.AttrDefending), convey.ShouldEqual, 77)
		})

		convey.Convey("And out-of-range values fail validation", func() {
			convey.So(a.Validate(), convey.ShouldBeNil)
			a.Physical = 101
			convey.So(errors.Is(a.Validate(), model.ErrInvalidAttributes), convey.ShouldBeTrue)
		})
	})
}

func TestMatchStatus(t *testing.T) {
	convey.Convey("Given match statuses", t, func() {
		convey.So(model.MatchScheduled.CanTransition(model.MatchCompleted), convey.ShouldBeTrue)
		convey.So(model.MatchInProgress.CanTransition(model.MatchCancelled), convey.ShouldBeTrue)
		convey.So(model.MatchCompleted.CanTransition(model.MatchCompleted), convey.ShouldBeFalse)
		convey.So(model.MatchCancelled.CanTransition(model.MatchInProgress), convey.ShouldBeFalse)
		convey.So(model.MatchStatus("paused").Valid(), convey.ShouldBeFalse)
	})
}

func TestEvaluation(t *testing.T) {
	convey.Convey("Given an evaluation with four assignments", t, func() {
		ev := model.Evaluation{
			Status: model.EvaluationPending,
			Assignments: map[string]*model.Assignment{
				"a": {Completed: true, Evaluations: map[string]model.Rating{"b": {Rating: 8}, "c": {Rating: 6}}},
				"b": {Completed: true, Evaluations: map[string]model.Rating{"a": {Rating: 4}, "c": {Rating: 10}}},
				"c": {Evaluations: map[string]model.Rating{}},
				"d": {Evaluations: map[string]model.Rating{}},
			},
		}

		convey.Convey("Then the participation rate counts completed evaluators", func() {
			convey.So(ev.CompletedCount(), convey.ShouldEqual, 2)
			convey.So(ev.Rate(), convey.ShouldEqual, 0.5)
		})

		convey.Convey("And ratings are grouped by target", func() {
			byTarget := ev.RatingsByTarget()
			convey.So(byTarget["c"], convey.ShouldHaveLength, 2)
			convey.So(byTarget["a"], convey.ShouldResemble, []int{4})
		})

		convey.Convey("And pending evaluators are reported", func() {
			convey.So(ev.PendingFor("c"), convey.ShouldBeTrue)
			convey.So(ev.PendingFor("a"), convey.ShouldBeFalse)
			convey.So(ev.PendingFor("zz"), convey.ShouldBeFalse)
		})

		convey.Convey("And clones do not share assignments", func() {
			c := ev.Clone()
			c.Assignments["c"].Completed = true
			c.Assignments["a"].Evaluations["b"] = model.Rating{Rating: 1}
			convey.So(ev.Assignments["c"].Completed, convey.ShouldBeFalse)
			convey.So(ev.Assignments["a"].Evaluations["b"].Rating, convey.ShouldEqual, 8)
		})

		convey.Convey("And an empty evaluation has a zero rate", func() {
			convey.So((&model.Evaluation{}).Rate(), convey.ShouldEqual, 0)
		})
	})
}

func TestPlayerHistory(t *testing.T) {
	convey.Convey("Given a player with history", t, func() {
		p := model.Player{ID: "p1", OVRHistory: []model.HistoryEntry{{MatchID: "m1", AttributeChanges: map[string]int{"pace": 1}}}}

		convey.So(p.HasHistoryFor("m1"), convey.ShouldBeTrue)
		convey.So(p.HasHistoryFor("m2"), convey.ShouldBeFalse)

		c := p.Clone()
		c.OVRHistory[0].AttributeChanges["pace"] = 9
		convey.So(p.OVRHistory[0].AttributeChanges["pace"], convey.ShouldEqual, 1)
	})
}
