package balancer_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

// flat builds a player whose attributes all equal ovr, so every score the
// balancer derives for it is ovr as well.
func flat(id string, pos model.Position, ovr int) model.Player {
	return model.Player{
		ID:       id,
		Name:     id,
		Position: pos,
		OVR:      ovr,
		Attributes: model.Attributes{
			Pace: ovr, Shooting: ovr, Passing: ovr, Dribbling: ovr, Defending: ovr, Physical: ovr,
		},
	}
}

func roster(n int) []model.Player {
	positions := []model.Position{model.PositionGK, model.PositionDEF, model.PositionMID, model.PositionFWD}
	out := make([]model.Player, n)
	for i := range out {
		pos := positions[i%len(positions)]
		if i > 4 && pos == model.PositionGK {
			pos = model.PositionMID
		}
		out[i] = flat(fmt.Sprintf("p%02d", i), pos, 50+(i*7)%45)
	}
	return out
}

func ids(players []model.Player) map[string]bool {
	out := make(map[string]bool, len(players))
	for _, p := range players {
		out[p.ID] = true
	}
	return out
}

func TestGenerate(t *testing.T) {
	Convey("Given a balancer", t, func() {
		b := balancer.New(balancer.WithRand(rand.New(rand.NewSource(7))))

		Convey("When there are too few players", func() {
			_, err := b.Generate(roster(6), model.Format7v7)

			Convey("It should report the shortfall", func() {
				So(errors.Is(err, balancer.ErrInsufficientPlayers), ShouldBeTrue)
				var ipe *balancer.InsufficientPlayersError
				So(errors.As(err, &ipe), ShouldBeTrue)
				So(ipe.Required, ShouldEqual, 14)
				So(ipe.Available, ShouldEqual, 6)
				So(ipe.Shortfall(), ShouldEqual, 8)
				So(err.Error(), ShouldContainSubstring, "14")
			})
		})

		Convey("When the format is invalid", func() {
			_, err := b.Generate(roster(4), model.Format{})
			So(errors.Is(err, model.ErrInvalidFormat), ShouldBeTrue)
		})

		Convey("When there are more players than places", func() {
			players := roster(12)
			players = append(players, flat("weak1", model.PositionMID, 10), flat("weak2", model.PositionDEF, 11))
			res, err := b.Generate(players, model.Format5v5)

			Convey("Each team should be full and the weakest should sit out", func() {
				So(err, ShouldBeNil)
				So(len(res.TeamA.Players), ShouldEqual, 5)
				So(len(res.TeamB.Players), ShouldEqual, 5)
				all := ids(append(append([]model.Player{}, res.TeamA.Players...), res.TeamB.Players...))
				So(len(all), ShouldEqual, 10)
				So(all["weak1"], ShouldBeFalse)
				So(all["weak2"], ShouldBeFalse)
			})
		})

		Convey("When the roster is larger than the format and the keepers rate lowest", func() {
			players := []model.Player{flat("gk1", model.PositionGK, 45), flat("gk2", model.PositionGK, 46)}
			outfield := []model.Position{model.PositionDEF, model.PositionMID, model.PositionFWD}
			for i := 0; i < 10; i++ {
				players = append(players, flat(fmt.Sprintf("o%02d", i), outfield[i%3], 70+i))
			}
			res, err := b.Generate(players, model.Format5v5)

			Convey("Both keepers should still play, one on each team", func() {
				So(err, ShouldBeNil)
				So(res.TeamA.PositionCounts[model.PositionGK], ShouldEqual, 1)
				So(res.TeamB.PositionCounts[model.PositionGK], ShouldEqual, 1)
				all := ids(append(append([]model.Player{}, res.TeamA.Players...), res.TeamB.Players...))
				So(all["o00"], ShouldBeFalse)
				So(all["o01"], ShouldBeFalse)
			})
		})

		Convey("When more keepers than teams are available", func() {
			players := []model.Player{
				flat("gk1", model.PositionGK, 88),
				flat("gk2", model.PositionGK, 89),
				flat("gk3", model.PositionGK, 90),
			}
			for i := 0; i < 8; i++ {
				players = append(players, flat(fmt.Sprintf("d%02d", i), model.PositionDEF, 60+i))
			}
			res, err := b.Generate(players, model.Format5v5)

			Convey("The weakest keeper should sit out and each team should get one", func() {
				So(err, ShouldBeNil)
				So(len(res.TeamA.Players), ShouldEqual, 5)
				So(len(res.TeamB.Players), ShouldEqual, 5)
				So(res.TeamA.PositionCounts[model.PositionGK], ShouldEqual, 1)
				So(res.TeamB.PositionCounts[model.PositionGK], ShouldEqual, 1)
				all := ids(append(append([]model.Player{}, res.TeamA.Players...), res.TeamB.Players...))
				So(all["gk1"], ShouldBeFalse)
			})
		})

		Convey("When only keepers can fill the places", func() {
			players := []model.Player{
				flat("gk1", model.PositionGK, 70),
				flat("gk2", model.PositionGK, 71),
				flat("gk3", model.PositionGK, 72),
				flat("gk4", model.PositionGK, 73),
				flat("mid", model.PositionMID, 60),
			}
			res, err := b.Generate(players, model.Format{PlayersPerTeam: 2})

			Convey("The outfield player and the best keepers should play", func() {
				So(err, ShouldBeNil)
				all := ids(append(append([]model.Player{}, res.TeamA.Players...), res.TeamB.Players...))
				So(len(all), ShouldEqual, 4)
				So(all["mid"], ShouldBeTrue)
				So(all["gk1"], ShouldBeFalse)
			})
		})

		Convey("When exactly two keepers are available", func() {
			res, err := b.Generate(roster(14), model.Format7v7)

			Convey("Each team should get one", func() {
				So(err, ShouldBeNil)
				So(res.TeamA.PositionCounts[model.PositionGK], ShouldEqual, 1)
				So(res.TeamB.PositionCounts[model.PositionGK], ShouldEqual, 1)
			})
		})

		Convey("When the roster is the six-player reference case", func() {
			players := []model.Player{
				flat("gk", model.PositionGK, 60),
				flat("def1", model.PositionDEF, 65),
				flat("def2", model.PositionDEF, 70),
				flat("mid1", model.PositionMID, 75),
				flat("mid2", model.PositionMID, 80),
				flat("fwd", model.PositionFWD, 85),
			}
			three := model.Format{PlayersPerTeam: 3}

			Convey("Optimization should swap one defender for a midfielder", func() {
				res, err := b.Generate(players, three)
				So(err, ShouldBeNil)
				So(res.Swaps, ShouldEqual, 1)
				So(res.Iterations, ShouldEqual, 2)
				So(res.Balance.Bucket, ShouldEqual, balancer.BucketExcellent)
				So(res.Balance.Score, ShouldEqual, 90)
				So(res.Diff, ShouldAlmostEqual, 5.0/3.0, 0.0001)

				a := ids(res.TeamA.Players)
				So(a["gk"], ShouldBeTrue)
				So(a["mid1"], ShouldBeTrue)
				So(a["mid2"], ShouldBeTrue)
				So(res.TeamA.OVR, ShouldEqual, 72)
				So(res.TeamB.OVR, ShouldEqual, 73)

				top := 0
				for _, id := range []string{"fwd", "mid2", "mid1"} {
					if a[id] {
						top++
					}
				}
				So(top, ShouldBeIn, 1, 2)
			})

			Convey("Without optimization the greedy split should stand", func() {
				res, err := balancer.New(balancer.WithMaxIterations(0)).Generate(players, three)
				So(err, ShouldBeNil)
				So(res.Swaps, ShouldEqual, 0)
				So(res.Diff, ShouldAlmostEqual, 5.0, 0.0001)
				So(res.Balance.Bucket, ShouldEqual, balancer.BucketGood)
				So(ids(res.TeamB.Players)["fwd"], ShouldBeTrue)
			})
		})

		Convey("Team sheets should carry summary statistics", func() {
			players := []model.Player{
				flat("a", model.PositionDEF, 60),
				flat("b", model.PositionDEF, 60),
				{ID: "c", Position: model.PositionFWD, OVR: 70, Attributes: model.Attributes{Pace: 60, Shooting: 90, Passing: 60, Dribbling: 70, Defending: 40, Physical: 60}},
				{ID: "d", Position: model.PositionFWD, OVR: 70, Attributes: model.Attributes{Pace: 60, Shooting: 90, Passing: 60, Dribbling: 70, Defending: 40, Physical: 60}},
			}
			res, err := b.Generate(players, model.Format{PlayersPerTeam: 2})
			So(err, ShouldBeNil)
			for _, sheet := range []balancer.TeamSheet{res.TeamA, res.TeamB} {
				So(sheet.PositionCounts[model.PositionDEF], ShouldEqual, 1)
				So(sheet.PositionCounts[model.PositionFWD], ShouldEqual, 1)
				So(sheet.SpecialtyCounts[model.AttrShooting], ShouldEqual, 1)
				So(sheet.AvgAttributes.Shooting, ShouldEqual, 75)
				So(sheet.OVR, ShouldEqual, 65)
				team := sheet.Team()
				So(team.Name, ShouldEqual, sheet.Name)
				So(len(team.Players), ShouldEqual, 2)
			}
			So(res.Balance.Bucket, ShouldEqual, balancer.BucketPerfect)
		})
	})
}

func TestTeamNames(t *testing.T) {
	Convey("Team names should be reproducible with a seeded source", t, func() {
		players := roster(10)
		r1, err1 := balancer.New(balancer.WithRand(rand.New(rand.NewSource(42)))).Generate(players, model.Format5v5)
		r2, err2 := balancer.New(balancer.WithRand(rand.New(rand.NewSource(42)))).Generate(players, model.Format5v5)
		So(err1, ShouldBeNil)
		So(err2, ShouldBeNil)
		So(r1.TeamA.Name, ShouldEqual, r2.TeamA.Name)
		So(r1.TeamB.Name, ShouldEqual, r2.TeamB.Name)
		So(r1.TeamA.Name, ShouldNotEqual, r1.TeamB.Name)
	})

	Convey("Custom name pairs should be used", t, func() {
		b := balancer.New(balancer.WithTeamNames([][2]string{{"Home", "Away"}}))
		res, err := b.Generate(roster(4), model.Format{PlayersPerTeam: 2})
		So(err, ShouldBeNil)
		So(res.TeamA.Name, ShouldEqual, "Home")
		So(res.TeamB.Name, ShouldEqual, "Away")
	})
}

func TestClassify(t *testing.T) {
	Convey("Gaps should map onto buckets", t, func() {
		cases := map[float64]balancer.Bucket{
			0:    balancer.BucketPerfect,
			1:    balancer.BucketPerfect,
			1.01: balancer.BucketExcellent,
			3:    balancer.BucketExcellent,
			4.5:  balancer.BucketGood,
			8:    balancer.BucketFair,
			8.5:  balancer.BucketUnbalanced,
		}
		for diff, want := range cases {
			So(balancer.Classify(diff).Bucket, ShouldEqual, want)
		}
	})
}
