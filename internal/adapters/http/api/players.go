package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/middleware"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/storage"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/scoring"
	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

type createPlayerRequest struct {
	Name       string           `json:"name"`
	Position   string           `json:"position"`
	Attributes model.Attributes `json:"attributes"`
	IsGuest    bool             `json:"isGuest"`
}

func (req createPlayerRequest) player(groupID string) (model.Player, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Player{}, fmt.Errorf("%w: name is required", ErrBadRequest)
	}
	pos, err := model.ParsePosition(req.Position)
	if err != nil {
		return model.Player{}, err
	}
	if err := req.Attributes.Validate(); err != nil {
		return model.Player{}, err
	}
	return model.Player{
		GroupID:    groupID,
		Name:       name,
		Position:   pos,
		Attributes: req.Attributes,
		OVR:        scoring.CalculateOVR(req.Attributes),
		IsGuest:    req.IsGuest,
	}, nil
}

type playerResponse struct {
	model.Player
	PhotoURL string `json:"photoUrl,omitempty"`
}

func (s *Server) present(p model.Player) playerResponse {
	out := playerResponse{Player: p}
	if s.deps.Photos != nil {
		out.PhotoURL = s.deps.Photos.URL(p.PhotoRef)
	}
	return out
}

// loadPlayer fetches the {playerID} path player within the caller's group.
func (s *Server) loadPlayer(r *http.Request) (model.Player, error) {
	id, _ := IdentityFrom(r.Context())
	playerID := chi.URLParam(r, "playerID")
	p, err := s.deps.Players.GetPlayer(r.Context(), playerID)
	if err != nil {
		return model.Player{}, err
	}
	if err := sameGroup(id, p.GroupID, "player "+playerID); err != nil {
		return model.Player{}, err
	}
	return p, nil
}

// writeStored answers a player write, 202 when it was queued for replay.
func (s *Server) writeStored(w http.ResponseWriter, r *http.Request, status int, p model.Player, err error) {
	switch {
	case errors.Is(err, middleware.ErrQueued):
		writeJSON(w, http.StatusAccepted, s.present(p))
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, status, s.present(p))
	}
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	players, err := s.deps.Players.ListPlayers(r.Context(), id.GroupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	i18n.SortPlayers(s.deps.Catalog.Match(r.Header.Get("Accept-Language")), players)
	out := make([]playerResponse, len(players))
	for i, p := range players {
		out[i] = s.present(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createPlayer(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req createPlayerRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := req.player(id.GroupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.deps.Players.CreatePlayer(r.Context(), p)
	s.writeStored(w, r, http.StatusCreated, created, err)
}

func (s *Server) getPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.loadPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.present(p))
}

// patchPlayer applies an RFC 7396 merge patch. The patch function runs
// against the stored record and may run again on an offline replay.
func (s *Server) patchPlayer(w http.ResponseWriter, r *http.Request) {
	current, err := s.loadPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	patch, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil || len(patch) == 0 {
		s.writeError(w, r, fmt.Errorf("%w: empty patch", ErrBadRequest))
		return
	}
	// validate once up front so a bad patch is rejected even when queued
	if _, err := repository.ApplyPlayerPatch(current, patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.deps.Players.UpdatePlayer(r.Context(), current.ID, func(p *model.Player) error {
		next, err := repository.ApplyPlayerPatch(*p, patch)
		if err != nil {
			return err
		}
		*p = next
		return nil
	})
	if errors.Is(err, middleware.ErrQueued) {
		updated, _ = repository.ApplyPlayerPatch(current, patch)
	}
	s.writeStored(w, r, http.StatusOK, updated, err)
}

func (s *Server) deletePlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.loadPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Players.DeletePlayer(r.Context(), p.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Photos != nil && p.PhotoRef != "" {
		if err := s.deps.Photos.Delete(r.Context(), p.PhotoRef); err != nil {
			s.log.Warn(r.Context(), "photo cleanup failed", logger.String("key", p.PhotoRef), logger.Error(err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) playerHistory(w http.ResponseWriter, r *http.Request) {
	p, err := s.loadPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	history := p.OVRHistory
	if history == nil {
		history = []model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playerId": p.ID,
		"ovr":      p.OVR,
		"history":  history,
	})
}

func (s *Server) ranking(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	n := defaultRankingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > s.maxRankingLimit {
			s.writeError(w, r, fmt.Errorf("%w: limit must be 1..%d", ErrBadRequest, s.maxRankingLimit))
			return
		}
		n = v
	}
	entries, err := s.deps.Players.TopPlayers(r.Context(), id.GroupID, n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// uploadPhoto stores the raw request body as the player's photo.
func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	if s.deps.Photos == nil {
		s.writeError(w, r, ErrPhotosDisabled)
		return
	}
	p, err := s.loadPlayer(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body := http.MaxBytesReader(w, r.Body, storage.MaxPhotoBytes)
	key, err := s.deps.Photos.Upload(r.Context(), p.ID, r.Header.Get("Content-Type"), body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			err = fmt.Errorf("%w: photo larger than %d bytes", ErrBadRequest, storage.MaxPhotoBytes)
		}
		s.writeError(w, r, err)
		return
	}
	old := p.PhotoRef
	updated, err := s.deps.Players.UpdatePlayer(r.Context(), p.ID, func(cur *model.Player) error {
		cur.PhotoRef = key
		return nil
	})
	if err != nil && !errors.Is(err, middleware.ErrQueued) {
		_ = s.deps.Photos.Delete(r.Context(), key)
		s.writeError(w, r, err)
		return
	}
	if errors.Is(err, middleware.ErrQueued) {
		updated = p
		updated.PhotoRef = key
	} else if old != "" && old != key {
		if err := s.deps.Photos.Delete(r.Context(), old); err != nil {
			s.log.Warn(r.Context(), "old photo cleanup failed", logger.String("key", old), logger.Error(err))
		}
	}
	s.writeStored(w, r, http.StatusOK, updated, err)
}
