package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/http/api"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

var positions = []string{"GK", "DEF", "DEF", "MID", "MID", "FWD"}

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("simulate")
	stats := &Stats{Groups: cfg.Groups, StartTime: time.Now()}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Info(ctx, "starting futbol simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("groups", cfg.Groups),
		logger.Int("playersPerGroup", cfg.PlayersPerGroup),
		logger.String("format", cfg.Format),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", seed))

	c := newClient(cfg, log)
	if err := checkServiceHealth(ctx, c); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Groups; i++ {
		g.Go(func() error {
			gr := &group{
				cfg: cfg,
				c:   c,
				log: log,
				id:  "sim-" + strconv.FormatInt(seed, 36) + "-" + strconv.Itoa(i),
				rng: rand.New(rand.NewSource(seed + int64(i))), //nolint:gosec // simulated ratings
			}
			gs, err := gr.run(gctx)
			if err != nil {
				return fmt.Errorf("group %s: %w", gr.id, err)
			}
			mu.Lock()
			stats.add(gs)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func checkServiceHealth(ctx context.Context, c *client) error {
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/healthz"}, nil)
	return err
}

// group simulates one squad from registration to applied ratings.
type group struct {
	cfg *Config
	c   *client
	log logger.Logger
	id  string

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

func (g *group) admin() api.Identity {
	return api.Identity{PersonID: g.id + "-admin", GroupID: g.id}
}

func (g *group) as(playerID string) api.Identity {
	return api.Identity{PersonID: playerID, GroupID: g.id}
}

func (g *group) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func (g *group) run(ctx context.Context) (Stats, error) {
	var st Stats

	players, dups, err := g.seedPlayers(ctx)
	if err != nil {
		return st, fmt.Errorf("seed players: %w", err)
	}
	st.PlayersCreated = len(players)
	st.DuplicateAcks = dups

	matchID, err := g.playMatch(ctx, players)
	if err != nil {
		return st, err
	}
	st.MatchesCompleted = 1

	ok, failed, recalculated, err := g.evaluate(ctx, matchID)
	if err != nil {
		return st, err
	}
	st.Submissions, st.SubmissionsFailed = ok, failed
	if recalculated {
		st.Recalculations = 1
	}

	entries, err := verifyHistory(ctx, g, matchID)
	if err != nil {
		return st, fmt.Errorf("verify history: %w", err)
	}
	st.HistoryEntries = entries

	if err := verifyRanking(ctx, g, len(players)); err != nil {
		return st, fmt.Errorf("verify ranking: %w", err)
	}
	st.RankingsRetrieved = 1
	return st, nil
}

// seedPlayers registers the roster concurrently. The first create is sent
// again with the same Idempotency-Key and must replay the original player.
func (g *group) seedPlayers(ctx context.Context) ([]model.Player, int, error) {
	players := make([]model.Player, g.cfg.PlayersPerGroup)
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i := range players {
		body := map[string]any{
			"name":       fmt.Sprintf("%s player %02d", g.id, i+1),
			"position":   positions[i%len(positions)],
			"attributes": g.randomAttributes(),
		}
		eg.Go(func() error {
			_, err := g.c.do(ectx, request{
				method:         http.MethodPost,
				path:           "/v1/players",
				as:             g.admin(),
				body:           body,
				idempotencyKey: g.id + "-player-" + strconv.Itoa(i),
			}, &players[i])
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	var replay model.Player
	_, err := g.c.do(ctx, request{
		method:         http.MethodPost,
		path:           "/v1/players",
		as:             g.admin(),
		body:           map[string]any{"name": "ignored", "position": "MID", "attributes": g.randomAttributes()},
		idempotencyKey: g.id + "-player-0",
	}, &replay)
	if err != nil {
		return nil, 0, err
	}
	if replay.ID != players[0].ID {
		return nil, 0, fmt.Errorf("repeated Idempotency-Key created %q instead of replaying %q", replay.ID, players[0].ID)
	}
	return players, 1, nil
}

func (g *group) randomAttributes() map[string]int {
	attrs := make(map[string]int, len(model.AttributeNames))
	for _, name := range model.AttributeNames {
		attrs[name] = 45 + g.intn(46)
	}
	return attrs
}

// playMatch balances the roster, schedules a match and completes it.
func (g *group) playMatch(ctx context.Context, players []model.Player) (string, error) {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}

	var preview struct {
		Diff float64 `json:"diff"`
	}
	if _, err := g.c.do(ctx, request{method: http.MethodPost, path: "/v1/teams", as: g.admin(),
		body: map[string]any{"playerIds": ids, "format": g.cfg.Format}}, &preview); err != nil {
		return "", fmt.Errorf("balance teams: %w", err)
	}

	var created struct {
		Match model.Match `json:"match"`
	}
	if _, err := g.c.do(ctx, request{method: http.MethodPost, path: "/v1/matches", as: g.admin(),
		body: map[string]any{"name": g.id + " friendly", "format": g.cfg.Format, "playerIds": ids},
		idempotencyKey: g.id + "-match"}, &created); err != nil {
		return "", fmt.Errorf("create match: %w", err)
	}
	matchID := created.Match.ID
	g.log.Info(ctx, "match scheduled",
		logger.String("group", g.id),
		logger.String("match", matchID),
		logger.Float64("previewDiff", preview.Diff),
		logger.Int("teamAOVR", created.Match.TeamA.OVR),
		logger.Int("teamBOVR", created.Match.TeamB.OVR))

	path := "/v1/matches/" + matchID + "/status"
	if _, err := g.c.do(ctx, request{method: http.MethodPost, path: path, as: g.admin(),
		body: map[string]any{"status": model.MatchInProgress}}, nil); err != nil {
		return "", fmt.Errorf("start match: %w", err)
	}
	result := map[string]int{"scoreA": g.intn(6), "scoreB": g.intn(6)}
	var completed struct {
		EvaluationPending bool `json:"evaluationPending"`
	}
	if _, err := g.c.do(ctx, request{method: http.MethodPost, path: path, as: g.admin(),
		body: map[string]any{"status": model.MatchCompleted, "result": result}}, &completed); err != nil {
		return "", fmt.Errorf("complete match: %w", err)
	}
	if completed.EvaluationPending {
		if _, err := g.c.do(ctx, request{method: http.MethodPost, path: "/v1/matches/" + matchID + "/evaluation/open",
			as: g.admin()}, nil); err != nil {
			return "", fmt.Errorf("open evaluations: %w", err)
		}
	}
	return matchID, nil
}

type pendingView struct {
	MatchID    string            `json:"matchId"`
	ToEvaluate []model.PlayerRef `json:"toEvaluate"`
}

type submitResult struct {
	ParticipationRate float64 `json:"participationRate"`
	OVRUpdated        bool    `json:"ovrUpdated"`
}

// evaluate has every assigned player rate their teammates. When no
// submission triggered the recalculation it is requested explicitly.
func (g *group) evaluate(ctx context.Context, matchID string) (ok, failed int, recalculated bool, err error) {
	var round model.Evaluation
	if _, err := g.c.do(ctx, request{method: http.MethodGet, path: "/v1/matches/" + matchID + "/evaluation",
		as: g.admin()}, &round); err != nil {
		return 0, 0, false, fmt.Errorf("load evaluation: %w", err)
	}

	var mu sync.Mutex
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for evaluatorID := range round.Assignments {
		eg.Go(func() error {
			updated, err := g.submit(ectx, matchID, evaluatorID)
			mu.Lock()
			defer mu.Unlock()
			var se *StatusError
			switch {
			case errors.As(err, &se) && se.Status < http.StatusInternalServerError:
				failed++
				g.log.Warn(ectx, "submission rejected", logger.String("evaluator", evaluatorID), logger.Error(err))
				return nil
			case err != nil:
				return err
			}
			ok++
			recalculated = recalculated || updated
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return ok, failed, recalculated, err
	}

	if !recalculated {
		_, err := g.c.do(ctx, request{method: http.MethodPost, path: "/v1/matches/" + matchID + "/evaluation/recalculate",
			as: g.admin()}, nil)
		var se *StatusError
		switch {
		case err == nil:
			recalculated = true
		case errors.As(err, &se) && se.Status == http.StatusConflict:
			// a concurrent submission applied the ratings or too few submitted
			g.log.Info(ctx, "recalculation not needed", logger.String("match", matchID), logger.String("reason", se.Body))
		default:
			return ok, failed, false, err
		}
	}
	return ok, failed, recalculated, nil
}

func (g *group) submit(ctx context.Context, matchID, evaluatorID string) (bool, error) {
	var pending []pendingView
	if _, err := g.c.do(ctx, request{method: http.MethodGet, path: "/v1/evaluations/pending",
		as: g.as(evaluatorID)}, &pending); err != nil {
		return false, err
	}
	ratings := map[string]map[string]any{}
	for _, v := range pending {
		if v.MatchID != matchID {
			continue
		}
		for _, target := range v.ToEvaluate {
			ratings[target.ID] = map[string]any{"rating": 1 + g.intn(10)}
		}
	}
	if len(ratings) == 0 {
		return false, nil
	}
	var res submitResult
	if _, err := g.c.do(ctx, request{method: http.MethodPost, path: "/v1/matches/" + matchID + "/evaluation",
		as: g.as(evaluatorID), body: map[string]any{"ratings": ratings}, idempotencyKey: newKey()}, &res); err != nil {
		return false, err
	}
	return res.OVRUpdated, nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("groups", stats.Groups),
		logger.Int("playersCreated", stats.PlayersCreated),
		logger.Int("duplicateAcks", stats.DuplicateAcks),
		logger.Int("matchesCompleted", stats.MatchesCompleted),
		logger.Int("submissions", stats.Submissions),
		logger.Int("submissionsFailed", stats.SubmissionsFailed),
		logger.Int("recalculations", stats.Recalculations),
		logger.Int("historyEntries", stats.HistoryEntries),
		logger.Duration("duration", stats.Duration))
}
