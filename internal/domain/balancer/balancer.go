// Package balancer splits a roster into two teams that are balanced by
// position first and by skill second.
//
// Generation runs in three phases and the order matters: goalkeepers and
// scarce positions are placed before generic skill balancing so that a
// side never ends up without a keeper.
//
//  1. position-priority distribution (GK, DEF, MID, FWD)
//  2. greedy assignment of whoever is left to the weaker side
//  3. bounded pairwise-swap local search on the average OVR gap
package balancer

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/scoring"
)

const defaultMaxIterations = 10

var defaultTeamNames = [][2]string{
	{"Red", "Blue"},
	{"Black", "White"},
	{"Green", "Yellow"},
	{"Violet", "Orange"},
}

// Balancer generates balanced teams. It is safe for concurrent use.
type Balancer struct {
	mu            sync.Mutex // guards rng
	rng           *rand.Rand
	maxIterations int
	teamNames     [][2]string
}

// New creates a Balancer with configuration options.
func New(opts ...Option) *Balancer {
	b := &Balancer{
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // team names are not security sensitive
		maxIterations: defaultMaxIterations,
		teamNames:     defaultTeamNames,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TeamSheet is one generated side with its summary statistics.
type TeamSheet struct {
	Name            string                 `json:"name"`
	Players         []model.Player         `json:"players"`
	OVR             int                    `json:"ovr"`
	AvgAttributes   model.Attributes       `json:"avgAttributes"`
	PositionCounts  map[model.Position]int `json:"positionCounts"`
	SpecialtyCounts map[string]int         `json:"specialtyCounts"`
}

// Team returns the snapshot stored on a match.
func (t TeamSheet) Team() model.Team {
	refs := make([]model.PlayerRef, len(t.Players))
	for i, p := range t.Players {
		refs[i] = p.Ref()
	}
	return model.Team{Name: t.Name, Players: refs, OVR: t.OVR}
}

// Result is the outcome of Generate.
type Result struct {
	TeamA      TeamSheet `json:"teamA"`
	TeamB      TeamSheet `json:"teamB"`
	Diff       float64   `json:"diff"`
	Balance    Balance   `json:"balance"`
	Iterations int       `json:"iterations"`
	Swaps      int       `json:"swaps"`
}

// candidate is a player with its precomputed ordering score.
type candidate struct {
	model.Player
	score int
	idx   int
}

// Generate splits players into two teams for format. When the roster is
// larger than format.Required(), the best two goalkeepers are kept and the
// remaining places go to the best outfield players by overall score.
func (b *Balancer) Generate(players []model.Player, format model.Format) (Result, error) {
	if format.PlayersPerTeam < 1 {
		return Result{}, fmt.Errorf("%w: %s", model.ErrInvalidFormat, format)
	}
	need := format.Required()
	if len(players) < need {
		return Result{}, &InsufficientPlayersError{Format: format, Required: need, Available: len(players)}
	}

	pool := selectPool(rank(players), need)
	teamA, teamB := distribute(pool, format.PlayersPerTeam)
	iterations, swaps := optimize(teamA, teamB, b.maxIterations)

	names := b.pickNames()
	res := Result{
		TeamA:      newSheet(names[0], teamA),
		TeamB:      newSheet(names[1], teamB),
		Diff:       gap(teamA, teamB),
		Iterations: iterations,
		Swaps:      swaps,
	}
	res.Balance = Classify(res.Diff)
	return res, nil
}

func (b *Balancer) pickNames() [2]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.teamNames[b.rng.Intn(len(b.teamNames))]
}

// rank orders players by overall score, best first. Ties keep input order.
func rank(players []model.Player) []candidate {
	out := make([]candidate, len(players))
	for i, p := range players {
		out[i] = candidate{Player: p, score: scoring.OverallScore(p)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	for i := range out {
		out[i].idx = i
	}
	return out
}

// selectPool picks need players from ranked. Up to two goalkeepers are
// reserved first; further keepers only fill places outfield players cannot.
// The result keeps the ranked order and is re-indexed.
func selectPool(ranked []candidate, need int) []candidate {
	if len(ranked) <= need {
		return ranked
	}
	take := make([]bool, len(ranked))
	n, keepers := 0, 0
	for i, c := range ranked {
		if c.Position == model.PositionGK && keepers < 2 {
			take[i] = true
			keepers++
			n++
		}
	}
	for i, c := range ranked {
		if n == need {
			break
		}
		if !take[i] && c.Position != model.PositionGK {
			take[i] = true
			n++
		}
	}
	for i := range ranked {
		if n == need {
			break
		}
		if !take[i] {
			take[i] = true
			n++
		}
	}

	pool := make([]candidate, 0, need)
	for i, c := range ranked {
		if take[i] {
			c.idx = len(pool)
			pool = append(pool, c)
		}
	}
	return pool
}

// avgOVR is the unrounded mean OVR of a side.
func avgOVR(team []candidate) float64 {
	if len(team) == 0 {
		return 0
	}
	sum := 0
	for _, c := range team {
		sum += c.OVR
	}
	return float64(sum) / float64(len(team))
}

// gap is the absolute difference of the two sides' average OVR.
func gap(a, b []candidate) float64 {
	return math.Abs(avgOVR(a) - avgOVR(b))
}

func newSheet(name string, team []candidate) TeamSheet {
	s := TeamSheet{
		Name:            name,
		Players:         make([]model.Player, len(team)),
		PositionCounts:  make(map[model.Position]int),
		SpecialtyCounts: make(map[string]int),
	}
	sums := make([]int, len(model.AttributeNames))
	ovrs := make([]int, len(team))
	for i, c := range team {
		s.Players[i] = c.Player
		ovrs[i] = c.OVR
		s.PositionCounts[c.Position]++
		s.SpecialtyCounts[c.Attributes.Highest()]++
		for k, v := range c.Attributes.Values() {
			sums[k] += v
		}
	}
	s.OVR = scoring.CalculateTeamOVR(ovrs)
	if len(team) > 0 {
		for k, name := range model.AttributeNames {
			s.AvgAttributes.Set(name, scoring.RoundHalfUp(float64(sums[k])/float64(len(team))))
		}
	}
	return s
}
