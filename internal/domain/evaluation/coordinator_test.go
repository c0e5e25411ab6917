package evaluation_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/evaluation"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu         sync.Mutex
	notes      []model.Notification
	activities []model.Activity
}

func (r *recorder) Notify(_ context.Context, n model.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) LogActivity(_ context.Context, a model.Activity) {
	r.mu.Lock()
	r.activities = append(r.activities, a)
	r.mu.Unlock()
}

func (r *recorder) count(kind model.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, note := range r.notes {
		if note.Kind == kind {
			n++
		}
	}
	return n
}

// flakyStore fails player updates for one id while failures remain.
type flakyStore struct {
	*repository.MemStore
	mu       sync.Mutex
	failID   string
	failures int
}

func (f *flakyStore) UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error) {
	f.mu.Lock()
	fail := id == f.failID && f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return model.Player{}, repository.Wrap("update_player", repository.ErrUnavailable)
	}
	return f.MemStore.UpdatePlayer(ctx, id, fn)
}

func (f *flakyStore) setFailures(id string, n int) {
	f.mu.Lock()
	f.failID, f.failures = id, n
	f.mu.Unlock()
}

type fixture struct {
	ctx   context.Context
	store *flakyStore
	sink  *recorder
	clock *clock
	coord *evaluation.Coordinator
	match model.Match
}

// newFixture seeds ten MID players rated 70, split p0..p4 against p5..p9,
// and a completed match between them.
func newFixture(guests ...string) *fixture {
	ctx := context.Background()
	f := &fixture{
		ctx:   ctx,
		store: &flakyStore{MemStore: repository.NewMemStore(ctx)},
		sink:  &recorder{},
		clock: &clock{t: time.Date(2025, 5, 2, 21, 0, 0, 0, time.UTC)},
	}
	isGuest := make(map[string]bool)
	for _, g := range guests {
		isGuest[g] = true
	}
	var a, b []model.PlayerRef
	for i := 0; i < 10; i++ {
		p := model.Player{
			ID:         fmt.Sprintf("p%d", i),
			GroupID:    "g1",
			Name:       fmt.Sprintf("Player %d", i),
			Position:   model.PositionMID,
			Attributes: model.Attributes{Pace: 70, Shooting: 70, Passing: 70, Dribbling: 70, Defending: 70, Physical: 70},
			OVR:        70,
			IsGuest:    isGuest[fmt.Sprintf("p%d", i)],
		}
		if _, err := f.store.CreatePlayer(ctx, p); err != nil {
			panic(err)
		}
		if i < 5 {
			a = append(a, p.Ref())
		} else {
			b = append(b, p.Ref())
		}
	}
	completed := f.clock.Now()
	f.match = model.Match{
		ID:          "m1",
		GroupID:     "g1",
		Date:        completed.Add(-2 * time.Hour),
		Format:      model.Format5v5,
		Type:        model.MatchTypeManual,
		TeamA:       model.Team{Name: "Red", Players: a, OVR: 70},
		TeamB:       model.Team{Name: "Blue", Players: b, OVR: 70},
		Status:      model.MatchCompleted,
		CompletedAt: &completed,
	}
	f.coord = evaluation.New(f.store, f.sink,
		evaluation.WithRand(rand.New(rand.NewSource(11))),
		evaluation.WithClock(f.clock.Now),
	)
	return f
}

// ratings rates every assigned target of evaluator with rating.
func (f *fixture) ratings(evaluator string, rating int) map[string]evaluation.Submission {
	e, err := f.store.GetEvaluation(f.ctx, f.match.ID)
	if err != nil {
		panic(err)
	}
	out := make(map[string]evaluation.Submission)
	if a, ok := e.Assignments[evaluator]; ok {
		for _, id := range a.Targets() {
			out[id] = evaluation.Submission{Rating: rating, Comment: "gg"}
		}
	}
	return out
}

func (f *fixture) submit(evaluator string, rating int) (evaluation.SubmitResult, error) {
	return f.coord.SubmitEvaluation(f.ctx, f.match.ID, evaluator, f.ratings(evaluator, rating))
}

func (f *fixture) player(id string) model.Player {
	p, err := f.store.GetPlayer(f.ctx, id)
	if err != nil {
		panic(err)
	}
	return p
}

func sameTeam(m model.Match, x, y string) bool {
	return (m.TeamA.Has(x) && m.TeamA.Has(y)) || (m.TeamB.Has(x) && m.TeamB.Has(y))
}

func TestInitializeEvaluations(t *testing.T) {
	Convey("Given a completed 5v5 match", t, func() {
		f := newFixture()

		Convey("When evaluations are initialized", func() {
			e, err := f.coord.InitializeEvaluations(f.ctx, f.match)

			Convey("Then every player should rate two distinct teammates", func() {
				So(err, ShouldBeNil)
				So(e, ShouldNotBeNil)
				So(len(e.Assignments), ShouldEqual, 10)
				for id, a := range e.Assignments {
					So(len(a.ToEvaluate), ShouldEqual, 2)
					So(a.ToEvaluate[0].ID, ShouldNotEqual, a.ToEvaluate[1].ID)
					for _, target := range a.ToEvaluate {
						So(target.ID, ShouldNotEqual, id)
						So(sameTeam(f.match, id, target.ID), ShouldBeTrue)
						So(target.OVR, ShouldEqual, 70)
					}
				}
				So(e.Deadline, ShouldEqual, f.clock.Now().Add(72*time.Hour))
				So(e.Status, ShouldEqual, model.EvaluationPending)
				So(e.MatchName, ShouldEqual, "Red vs Blue")
			})

			Convey("Then each evaluator should be notified once", func() {
				So(f.sink.count(model.NotifyEvaluationPending), ShouldEqual, 10)
				So(f.sink.notes[0].Title, ShouldEqual, "Pending evaluations")
				So(f.sink.notes[0].Body, ShouldContainSubstring, " and ")
				So(len(f.sink.activities), ShouldEqual, 1)
				So(f.sink.activities[0].Kind, ShouldEqual, model.ActivityEvaluationsPending)
			})

			Convey("Then a second initialization should report the existing record", func() {
				_, err := f.coord.InitializeEvaluations(f.ctx, f.match)
				So(errors.Is(err, repository.ErrAlreadyExists), ShouldBeTrue)
			})
		})

		Convey("When the match is not completed", func() {
			f.match.Status = model.MatchInProgress
			_, err := f.coord.InitializeEvaluations(f.ctx, f.match)
			So(errors.Is(err, evaluation.ErrMatchNotCompleted), ShouldBeTrue)
		})
	})

	Convey("Given a match with guests", t, func() {
		f := newFixture("p4", "p8", "p9")

		Convey("Guests should neither evaluate nor be evaluated", func() {
			e, err := f.coord.InitializeEvaluations(f.ctx, f.match)
			So(err, ShouldBeNil)
			So(len(e.Assignments), ShouldEqual, 7)
			for id, a := range e.Assignments {
				So(id, ShouldNotBeIn, "p4", "p8", "p9")
				for _, target := range a.ToEvaluate {
					So(target.ID, ShouldNotBeIn, "p4", "p8", "p9")
				}
			}
		})
	})

	Convey("Given a match where one side has too few eligible players", t, func() {
		f := newFixture("p6", "p7", "p8", "p9")

		Convey("That side should get no assignments", func() {
			e, err := f.coord.InitializeEvaluations(f.ctx, f.match)
			So(err, ShouldBeNil)
			So(len(e.Assignments), ShouldEqual, 5)
			_, ok := e.Assignments["p5"]
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a match with fewer than three eligible players", t, func() {
		f := newFixture("p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9")

		Convey("Initialization should soft-fail", func() {
			e, err := f.coord.InitializeEvaluations(f.ctx, f.match)
			So(err, ShouldBeNil)
			So(e, ShouldBeNil)
			_, err = f.store.GetEvaluation(f.ctx, "m1")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSubmitEvaluation(t *testing.T) {
	Convey("Given initialized evaluations", t, func() {
		f := newFixture()
		_, err := f.coord.InitializeEvaluations(f.ctx, f.match)
		So(err, ShouldBeNil)

		Convey("When an evaluator submits twice", func() {
			first, err := f.submit("p0", 8)
			So(err, ShouldBeNil)
			So(first.Success, ShouldBeTrue)
			So(first.ParticipationRate, ShouldAlmostEqual, 0.1, 1e-9)

			_, err = f.coord.SubmitEvaluation(f.ctx, "m1", "p0", f.ratings("p0", 3))

			Convey("Then the second call should fail and leave the rate alone", func() {
				So(errors.Is(err, evaluation.ErrAlreadySubmitted), ShouldBeTrue)
				e, _ := f.coord.Get(f.ctx, "m1")
				So(e.ParticipationRate, ShouldAlmostEqual, 0.1, 1e-9)
				So(e.Assignments["p0"].Evaluations, ShouldHaveLength, 2)
			})
		})

		Convey("When the evaluator has no assignment", func() {
			_, err := f.coord.SubmitEvaluation(f.ctx, "m1", "stranger", map[string]evaluation.Submission{})
			So(errors.Is(err, evaluation.ErrAlreadySubmitted), ShouldBeTrue)
		})

		Convey("When the match has no evaluation", func() {
			_, err := f.coord.SubmitEvaluation(f.ctx, "nope", "p0", nil)
			So(errors.Is(err, evaluation.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the submission is malformed", func() {
			good := f.ratings("p0", 7)
			var targets []string
			for id := range good {
				targets = append(targets, id)
			}

			outOfRange := map[string]evaluation.Submission{targets[0]: {Rating: 11}, targets[1]: {Rating: 5}}
			zero := map[string]evaluation.Submission{targets[0]: {Rating: 0}, targets[1]: {Rating: 5}}
			missing := map[string]evaluation.Submission{targets[0]: {Rating: 5}}
			wrongTarget := map[string]evaluation.Submission{targets[0]: {Rating: 5}, "p0": {Rating: 5}}

			Convey("Then it should be rejected without recording anything", func() {
				for _, bad := range []map[string]evaluation.Submission{outOfRange, zero, missing, wrongTarget} {
					_, err := f.coord.SubmitEvaluation(f.ctx, "m1", "p0", bad)
					So(errors.Is(err, evaluation.ErrInvalidSubmission), ShouldBeTrue)
				}
				e, _ := f.coord.Get(f.ctx, "m1")
				So(e.Assignments["p0"].Completed, ShouldBeFalse)
				So(e.ParticipationRate, ShouldEqual, 0.0)
			})
		})

		Convey("When submissions reach the threshold", func() {
			var results []evaluation.SubmitResult
			for i := 0; i < 8; i++ {
				res, err := f.submit(fmt.Sprintf("p%d", i), 10)
				So(err, ShouldBeNil)
				results = append(results, res)
			}

			Convey("Then only the eighth should apply the ratings", func() {
				for i := 0; i < 7; i++ {
					So(results[i].OVRUpdated, ShouldBeFalse)
				}
				So(results[7].OVRUpdated, ShouldBeTrue)
				So(results[7].ParticipationRate, ShouldAlmostEqual, 0.8, 1e-9)

				e, _ := f.coord.Get(f.ctx, "m1")
				So(e.OVRUpdateTriggered, ShouldBeTrue)
				So(e.RecalcStartedAt, ShouldBeNil)
				So(e.OVRUpdatedAt, ShouldNotBeNil)
				So(len(e.OVRUpdates), ShouldBeGreaterThan, 0)
				for _, u := range e.OVRUpdates {
					So(u.OldOVR, ShouldEqual, 70)
					So(u.NewOVR, ShouldEqual, 80)
					So(u.AvgRating, ShouldEqual, 10.0)
					p := f.player(u.PlayerID)
					So(p.OVR, ShouldEqual, 80)
					So(p.OVRHistory, ShouldHaveLength, 1)
					So(p.OVRHistory[0].MatchID, ShouldEqual, "m1")
					So(p.OVRHistory[0].Change, ShouldEqual, 10)
					So(p.Attributes.Passing, ShouldEqual, 74)
				}
				So(f.sink.count(model.NotifyOVRChange), ShouldEqual, len(e.OVRUpdates))

				logs, _ := f.store.ListEvaluationLogs(f.ctx, "m1")
				So(len(logs), ShouldEqual, len(e.OVRUpdates))
			})

			Convey("Then the ninth and tenth should not recalculate again", func() {
				before, _ := f.coord.Get(f.ctx, "m1")
				for _, id := range []string{"p8", "p9"} {
					res, err := f.submit(id, 1)
					So(err, ShouldBeNil)
					So(res.OVRUpdated, ShouldBeFalse)
				}
				after, _ := f.coord.Get(f.ctx, "m1")
				So(after.ParticipationRate, ShouldEqual, 1.0)
				So(after.OVRUpdatedAt, ShouldResemble, before.OVRUpdatedAt)
				So(after.OVRUpdates, ShouldResemble, before.OVRUpdates)
				for i := 0; i < 10; i++ {
					So(len(f.player(fmt.Sprintf("p%d", i)).OVRHistory), ShouldBeLessThanOrEqualTo, 1)
				}

				_, err := f.coord.Recalculate(f.ctx, "m1")
				So(errors.Is(err, evaluation.ErrAlreadyRecalculated), ShouldBeTrue)
			})
		})

		Convey("When everyone submits at once", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			updated := 0
			subs := make(map[string]map[string]evaluation.Submission)
			for i := 0; i < 10; i++ {
				id := fmt.Sprintf("p%d", i)
				subs[id] = f.ratings(id, 9)
			}
			for id, s := range subs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := f.coord.SubmitEvaluation(f.ctx, "m1", id, s)
					if err == nil && res.OVRUpdated {
						mu.Lock()
						updated++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then the ratings should be applied exactly once", func() {
				So(updated, ShouldEqual, 1)
				e, _ := f.coord.Get(f.ctx, "m1")
				So(e.ParticipationRate, ShouldEqual, 1.0)
				So(e.OVRUpdateTriggered, ShouldBeTrue)
				for i := 0; i < 10; i++ {
					So(len(f.player(fmt.Sprintf("p%d", i)).OVRHistory), ShouldBeLessThanOrEqualTo, 1)
				}
			})
		})
	})
}

func TestRecalculationFailure(t *testing.T) {
	Convey("Given evaluations where one player write fails", t, func() {
		f := newFixture()
		e, err := f.coord.InitializeEvaluations(f.ctx, f.match)
		So(err, ShouldBeNil)
		victim := e.Assignments["p0"].ToEvaluate[0].ID
		f.store.setFailures(victim, 1)

		var last evaluation.SubmitResult
		for i := 0; i < 8; i++ {
			last, err = f.submit(fmt.Sprintf("p%d", i), 10)
			So(err, ShouldBeNil)
		}

		Convey("The crossing submission should succeed without applying", func() {
			So(last.Success, ShouldBeTrue)
			So(last.OVRUpdated, ShouldBeFalse)
			got, _ := f.coord.Get(f.ctx, "m1")
			So(got.OVRUpdateTriggered, ShouldBeFalse)
			So(got.RecalcStartedAt, ShouldBeNil)
			So(f.player(victim).OVRHistory, ShouldHaveLength, 0)

			Convey("And a retry should finish without double-applying", func() {
				n, err := f.coord.RetryPendingRecalculations(f.ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)

				got, _ := f.coord.Get(f.ctx, "m1")
				So(got.OVRUpdateTriggered, ShouldBeTrue)
				for _, u := range got.OVRUpdates {
					p := f.player(u.PlayerID)
					So(p.OVRHistory, ShouldHaveLength, 1)
					So(p.OVR, ShouldEqual, 80)
				}
				So(f.player(victim).OVR, ShouldEqual, 80)

				n, err = f.coord.RetryPendingRecalculations(f.ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a claim abandoned by a crashed worker", t, func() {
		f := newFixture()
		e, err := f.coord.InitializeEvaluations(f.ctx, f.match)
		So(err, ShouldBeNil)
		victim := e.Assignments["p0"].ToEvaluate[0].ID
		f.store.setFailures(victim, 100)
		for i := 0; i < 8; i++ {
			_, err := f.submit(fmt.Sprintf("p%d", i), 10)
			So(err, ShouldBeNil)
		}
		f.store.setFailures("", 0)
		now := f.clock.Now()
		_, err = f.store.UpdateEvaluation(f.ctx, "m1", func(e *model.Evaluation) error {
			e.RecalcStartedAt = &now
			return nil
		})
		So(err, ShouldBeNil)

		Convey("Recalculate should wait for the claim to go stale", func() {
			_, err := f.coord.Recalculate(f.ctx, "m1")
			So(errors.Is(err, evaluation.ErrRecalculationInProgress), ShouldBeTrue)

			f.clock.Advance(evaluation.DefaultClaimTimeout + time.Second)
			updates, err := f.coord.Recalculate(f.ctx, "m1")
			So(err, ShouldBeNil)
			So(len(updates), ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given too few submissions", t, func() {
		f := newFixture()
		_, err := f.coord.InitializeEvaluations(f.ctx, f.match)
		So(err, ShouldBeNil)
		_, err = f.submit("p0", 6)
		So(err, ShouldBeNil)

		Convey("Recalculate should refuse", func() {
			_, err := f.coord.Recalculate(f.ctx, "m1")
			So(errors.Is(err, evaluation.ErrThresholdNotReached), ShouldBeTrue)
			_, err = f.coord.Recalculate(f.ctx, "missing")
			So(errors.Is(err, evaluation.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestCleanupAndQueries(t *testing.T) {
	Convey("Given initialized evaluations", t, func() {
		f := newFixture()
		_, err := f.coord.InitializeEvaluations(f.ctx, f.match)
		So(err, ShouldBeNil)
		_, err = f.submit("p1", 5)
		So(err, ShouldBeNil)

		Convey("Pending and completed lists should reflect submissions", func() {
			pending, err := f.coord.PendingFor(f.ctx, "p0")
			So(err, ShouldBeNil)
			So(pending, ShouldHaveLength, 1)
			pending, _ = f.coord.PendingFor(f.ctx, "p1")
			So(pending, ShouldHaveLength, 0)
			done, err := f.coord.CompletedFor(f.ctx, "p1", 0)
			So(err, ShouldBeNil)
			So(done, ShouldHaveLength, 1)
		})

		Convey("Before the deadline nothing should expire", func() {
			n, err := f.coord.CleanupExpiredEvaluations(f.ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("After the deadline", func() {
			f.clock.Advance(73 * time.Hour)
			n, err := f.coord.CleanupExpiredEvaluations(f.ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			Convey("The evaluation should be expired and reject submissions", func() {
				e, _ := f.coord.Get(f.ctx, "m1")
				So(e.Status, ShouldEqual, model.EvaluationExpired)
				So(e.ExpiredAt, ShouldNotBeNil)

				_, err := f.submit("p0", 5)
				So(errors.Is(err, evaluation.ErrEvaluationExpired), ShouldBeTrue)

				pending, _ := f.coord.PendingFor(f.ctx, "p0")
				So(pending, ShouldHaveLength, 0)
			})

			Convey("A second sweep should be a no-op", func() {
				n, err := f.coord.CleanupExpiredEvaluations(f.ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})

	Convey("Given evaluations whose ratings were applied", t, func() {
		f := newFixture()
		_, err := f.coord.InitializeEvaluations(f.ctx, f.match)
		So(err, ShouldBeNil)
		for i := 0; i < 8; i++ {
			_, err := f.submit(fmt.Sprintf("p%d", i), 6)
			So(err, ShouldBeNil)
		}

		Convey("The sweep should leave them settled", func() {
			f.clock.Advance(100 * time.Hour)
			n, err := f.coord.CleanupExpiredEvaluations(f.ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			e, _ := f.coord.Get(f.ctx, "m1")
			So(e.Status, ShouldEqual, model.EvaluationPending)
		})
	})
}
