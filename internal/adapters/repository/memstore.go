package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// MemStore is an in-memory Store. Every value crossing its boundary is
// deep-copied, and each update func runs under the write lock, which makes
// all read-modify-write cycles atomic.
type MemStore struct {
	mu          sync.RWMutex
	players     map[string]model.Player
	matches     map[string]model.Match
	evaluations map[string]model.Evaluation
	logs        map[string][]model.EvaluationLog
	rankings    map[string]*ranking // by group

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

var _ Store = (*MemStore)(nil)

// NewMemStore constructs an in-memory store with configuration options.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	s := &MemStore{
		players:               make(map[string]model.Player),
		matches:               make(map[string]model.Match),
		evaluations:           make(map[string]model.Evaluation),
		logs:                  make(map[string][]model.EvaluationLog),
		rankings:              make(map[string]*ranking),
		metricsUpdateInterval: 5 * time.Second,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemStore) updateMetrics() {
	s.mu.RLock()
	players, matches, evals := len(s.players), len(s.matches), len(s.evaluations)
	s.mu.RUnlock()
	metrics.UpdateStoreRecords("player", players)
	metrics.UpdateStoreRecords("match", matches)
	metrics.UpdateStoreRecords("evaluation", evals)
}

// rank returns the ranking of a group, creating it when missing. Callers
// must hold the write lock.
func (s *MemStore) rank(groupID string) *ranking {
	r, ok := s.rankings[groupID]
	if !ok {
		r = &ranking{}
		s.rankings[groupID] = r
	}
	return r
}

func (s *MemStore) GetPlayer(_ context.Context, id string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return model.Player{}, Wrap("get_player", ErrNotFound)
	}
	return p.Clone(), nil
}

func (s *MemStore) ListPlayers(_ context.Context, groupID string) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Player, 0, len(s.players))
	for _, p := range s.players {
		if groupID == "" || p.GroupID == groupID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) CreatePlayer(_ context.Context, p model.Player) (model.Player, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.ID]; ok {
		return model.Player{}, Wrap("create_player", ErrAlreadyExists)
	}
	p = p.Clone()
	p.Version = 1
	s.players[p.ID] = p
	s.rank(p.GroupID).insert(p.ID, p.OVR)
	return p.Clone(), nil
}

func (s *MemStore) UpdatePlayer(_ context.Context, id string, fn func(*model.Player) error) (model.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.players[id]
	if !ok {
		return model.Player{}, Wrap("update_player", ErrNotFound)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Player{}, err
	}
	next.ID, next.GroupID = cur.ID, cur.GroupID
	next.Version = cur.Version + 1
	if next.OVR != cur.OVR {
		r := s.rank(cur.GroupID)
		r.remove(cur.ID, cur.OVR)
		r.insert(next.ID, next.OVR)
	}
	s.players[id] = next
	return next.Clone(), nil
}

func (s *MemStore) DeletePlayer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return Wrap("delete_player", ErrNotFound)
	}
	s.rank(p.GroupID).remove(p.ID, p.OVR)
	delete(s.players, id)
	return nil
}

func (s *MemStore) TopPlayers(_ context.Context, groupID string, n int) ([]types.Entry, error) {
	if n < 1 {
		return nil, Wrap("top_players", ErrInvalidLimit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rankings[groupID]
	if !ok {
		return []types.Entry{}, nil
	}
	out := make([]types.Entry, 0, min(n, r.len()))
	r.top(n, func(id string) {
		p := s.players[id]
		out = append(out, types.Entry{PlayerID: p.ID, Name: p.Name, Position: p.Position, OVR: p.OVR})
	})
	types.AssignRanks(out)
	return out, nil
}

func (s *MemStore) GetMatch(_ context.Context, id string) (model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return model.Match{}, Wrap("get_match", ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *MemStore) ListMatches(_ context.Context, f MatchFilter) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Match, 0)
	for _, m := range s.matches {
		if f.Match(m) {
			out = append(out, m.Clone())
		}
	}
	SortMatches(out)
	return out, nil
}

func (s *MemStore) CreateMatch(_ context.Context, m model.Match) (model.Match, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[m.ID]; ok {
		return model.Match{}, Wrap("create_match", ErrAlreadyExists)
	}
	m = m.Clone()
	m.Version = 1
	s.matches[m.ID] = m
	return m.Clone(), nil
}

func (s *MemStore) UpdateMatch(_ context.Context, id string, fn func(*model.Match) error) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.matches[id]
	if !ok {
		return model.Match{}, Wrap("update_match", ErrNotFound)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Match{}, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	s.matches[id] = next
	return next.Clone(), nil
}

func (s *MemStore) CreateEvaluation(_ context.Context, e model.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.evaluations[e.MatchID]; ok {
		return Wrap("create_evaluation", ErrAlreadyExists)
	}
	e = e.Clone()
	e.Version = 1
	s.evaluations[e.MatchID] = e
	return nil
}

func (s *MemStore) GetEvaluation(_ context.Context, matchID string) (model.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.evaluations[matchID]
	if !ok {
		return model.Evaluation{}, Wrap("get_evaluation", ErrNotFound)
	}
	return e.Clone(), nil
}

func (s *MemStore) UpdateEvaluation(_ context.Context, matchID string, fn func(*model.Evaluation) error) (model.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.evaluations[matchID]
	if !ok {
		return model.Evaluation{}, Wrap("update_evaluation", ErrNotFound)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Evaluation{}, err
	}
	next.MatchID = cur.MatchID
	next.Version = cur.Version + 1
	s.evaluations[matchID] = next
	return next.Clone(), nil
}

func (s *MemStore) QueryEvaluations(_ context.Context, f EvaluationFilter) ([]model.Evaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Evaluation, 0)
	for _, e := range s.evaluations {
		if f.Match(e) {
			out = append(out, e.Clone())
		}
	}
	return SortEvaluations(out, f.Limit), nil
}

func (s *MemStore) AppendEvaluationLog(_ context.Context, l model.EvaluationLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[l.MatchID] = append(s.logs[l.MatchID], l)
	return nil
}

func (s *MemStore) ListEvaluationLogs(_ context.Context, matchID string) ([]model.EvaluationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.EvaluationLog{}, s.logs[matchID]...), nil
}

func (s *MemStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Players: len(s.players), Matches: len(s.matches), Evaluations: len(s.evaluations)}
	for _, e := range s.evaluations {
		if e.Status == model.EvaluationPending && !e.OVRUpdateTriggered {
			st.PendingEvaluations++
		}
	}
	return st, nil
}
