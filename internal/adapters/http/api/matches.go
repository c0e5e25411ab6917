package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/matches"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

type balanceRequest struct {
	PlayerIDs []string     `json:"playerIds"`
	Format    model.Format `json:"format"`
}

// balanceTeams splits a roster without scheduling anything.
func (s *Server) balanceTeams(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req balanceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Matches.Balance(r.Context(), id.GroupID, req.PlayerIDs, req.Format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type createMatchRequest struct {
	Name      string          `json:"name"`
	Date      time.Time       `json:"date"`
	Format    model.Format    `json:"format"`
	PlayerIDs []string        `json:"playerIds"`
	Type      model.MatchType `json:"type"`
}

type createMatchResponse struct {
	Match   model.Match     `json:"match"`
	Balance balancer.Result `json:"balance"`
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req createMatchRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	switch req.Type {
	case "", model.MatchTypeManual, model.MatchTypeCollaborative:
	default:
		s.writeError(w, r, fmt.Errorf("%w: unknown match type %q", ErrBadRequest, req.Type))
		return
	}
	match, res, err := s.deps.Matches.Create(r.Context(), matches.CreateRequest{
		GroupID:   id.GroupID,
		Name:      req.Name,
		Date:      req.Date,
		Format:    req.Format,
		PlayerIDs: req.PlayerIDs,
		Type:      req.Type,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createMatchResponse{Match: match, Balance: res})
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	f := MatchFilter{GroupID: id.GroupID}
	if raw := r.URL.Query().Get("status"); raw != "" {
		f.Status = model.MatchStatus(raw)
		if !f.Status.Valid() {
			s.writeError(w, r, fmt.Errorf("%w: unknown status %q", ErrBadRequest, raw))
			return
		}
	}
	list, err := s.deps.Matches.List(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Match{}
	}
	writeJSON(w, http.StatusOK, list)
}

// loadMatch fetches the {matchID} path match within the caller's group.
func (s *Server) loadMatch(r *http.Request) (model.Match, error) {
	id, _ := IdentityFrom(r.Context())
	matchID := chi.URLParam(r, "matchID")
	m, err := s.deps.Matches.Get(r.Context(), matchID)
	if err != nil {
		return model.Match{}, err
	}
	if err := sameGroup(id, m.GroupID, "match "+matchID); err != nil {
		return model.Match{}, err
	}
	return m, nil
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadMatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type transitionRequest struct {
	Status model.MatchStatus `json:"status"`
	Result *model.Result     `json:"result,omitempty"`
}

type transitionResponse struct {
	Match      model.Match       `json:"match"`
	Evaluation *model.Evaluation `json:"evaluation,omitempty"`
	// EvaluationPending is set when the match completed but its evaluation
	// round could not be opened; POST .../evaluation/open retries it.
	EvaluationPending bool `json:"evaluationPending,omitempty"`
}

func (s *Server) transitionMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadMatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req transitionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Result != nil && (req.Result.ScoreA < 0 || req.Result.ScoreB < 0) {
		s.writeError(w, r, fmt.Errorf("%w: scores must not be negative", ErrBadRequest))
		return
	}
	match, ev, err := s.deps.Matches.Transition(r.Context(), m.ID, req.Status, req.Result)
	if errors.Is(err, matches.ErrEvaluationInit) {
		writeJSON(w, http.StatusOK, transitionResponse{Match: match, EvaluationPending: true})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResponse{Match: match, Evaluation: ev})
}
