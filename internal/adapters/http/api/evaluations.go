package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/evaluation"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
)

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadMatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.deps.Evaluations.Get(r.Context(), m.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// openEvaluation opens the round of a completed match whose initialization
// failed earlier. It is a no-op when the round already exists.
func (s *Server) openEvaluation(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadMatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if m.Status != model.MatchCompleted {
		s.writeError(w, r, evaluation.ErrMatchNotCompleted)
		return
	}
	e, err := s.deps.Matches.EnsureEvaluation(r.Context(), m.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if e == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type submitRequest struct {
	Ratings map[string]evaluation.Submission `json:"ratings"`
}

// submitEvaluation records the caller's ratings of their assigned teammates.
func (s *Server) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	m, err := s.loadMatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req submitRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Ratings) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: no ratings", evaluation.ErrInvalidSubmission))
		return
	}
	res, err := s.deps.Evaluations.SubmitEvaluation(r.Context(), m.ID, id.PersonID, req.Ratings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) recalculate(w http.ResponseWriter, r *http.Request) {
	m, err := s.loadMatch(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	updates, err := s.deps.Evaluations.Recalculate(r.Context(), m.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if updates == nil {
		updates = []model.OVRUpdate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"updates": updates})
}

func (s *Server) pendingEvaluations(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	list, err := s.deps.Evaluations.PendingFor(r.Context(), id.PersonID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(list, id.PersonID))
}

func (s *Server) completedEvaluations(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			s.writeError(w, r, fmt.Errorf("%w: invalid limit", ErrBadRequest))
			return
		}
		limit = v
	}
	list, err := s.deps.Evaluations.CompletedFor(r.Context(), id.PersonID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(list, id.PersonID))
}

func (s *Server) cleanupEvaluations(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Evaluations.CleanupExpiredEvaluations(r.Context())
	if err != nil && n == 0 {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": n})
}

// assignmentView is one evaluation seen by one player: only their own
// assignment is exposed.
type assignmentView struct {
	MatchID    string            `json:"matchId"`
	MatchName  string            `json:"matchName"`
	MatchDate  time.Time         `json:"matchDate"`
	Deadline   time.Time         `json:"deadline"`
	Status     string            `json:"status"`
	Assignment *model.Assignment `json:"assignment,omitempty"`
	ToEvaluate []model.PlayerRef `json:"toEvaluate"`
}

func summarize(list []model.Evaluation, playerID string) []assignmentView {
	out := make([]assignmentView, 0, len(list))
	for _, e := range list {
		v := assignmentView{
			MatchID:   e.MatchID,
			MatchName: e.MatchName,
			MatchDate: e.MatchDate,
			Deadline:  e.Deadline,
			Status:    string(e.Status),
		}
		if a, ok := e.Assignments[playerID]; ok {
			v.Assignment = a
			v.ToEvaluate = a.ToEvaluate
		}
		if v.ToEvaluate == nil {
			v.ToEvaluate = []model.PlayerRef{}
		}
		out = append(out, v)
	}
	return out
}
