package api

import (
	"errors"
	"net/http"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/storage"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/evaluation"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/matches"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrPhotosDisabled = errors.New("photo uploads disabled")
	ErrInFlight       = errors.New("request with this idempotency key in flight")
)

type errorRule struct {
	target error
	status int
	code   string
	msgid  string
}

// first match wins
var errorRules = []errorRule{
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication required"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "Too many requests, slow down"},
	{ErrInFlight, http.StatusConflict, "request_in_progress", "This request is still being processed, try again shortly"},
	{ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{matches.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{matches.ErrPlayerNotFound, http.StatusNotFound, "player_not_found", "Player not found"},
	{evaluation.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{matches.ErrForeignPlayer, http.StatusUnprocessableEntity, "foreign_player", "Player belongs to another group"},
	{matches.ErrInvalidTransition, http.StatusConflict, "invalid_transition", "This match cannot move to that status"},
	{evaluation.ErrAlreadySubmitted, http.StatusConflict, "already_submitted", "You have no pending evaluations for this match"},
	{evaluation.ErrEvaluationExpired, http.StatusGone, "evaluation_expired", "The evaluation period has ended"},
	{evaluation.ErrInvalidSubmission, http.StatusBadRequest, "invalid_submission", "Every assigned teammate needs a rating from 1 to 10"},
	{evaluation.ErrMatchNotCompleted, http.StatusConflict, "match_not_completed", "The match has not finished yet"},
	{evaluation.ErrAlreadyRecalculated, http.StatusConflict, "already_recalculated", "Ratings were already applied"},
	{evaluation.ErrThresholdNotReached, http.StatusConflict, "threshold_not_reached", "Not enough teammates have submitted yet"},
	{evaluation.ErrRecalculationInProgress, http.StatusConflict, "recalculation_in_progress", "Ratings are being applied, try again shortly"},
	{ErrPhotosDisabled, http.StatusServiceUnavailable, "photos_disabled", "Photo uploads are not available"},
	{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType, "unsupported_photo", "Photos must be JPEG, PNG or WebP"},
	{repository.ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{repository.ErrAlreadyExists, http.StatusConflict, "already_exists", "Already exists"},
	{repository.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable, try again"},
	{repository.ErrConflict, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable, try again"},
	{repository.ErrInvalidPatch, http.StatusBadRequest, "invalid_patch", "Invalid request"},
	{repository.ErrInvalidLimit, http.StatusBadRequest, "bad_request", "Invalid request"},
	{model.ErrInvalidPosition, http.StatusBadRequest, "invalid_position", "Invalid request"},
	{model.ErrInvalidFormat, http.StatusBadRequest, "invalid_format", "Invalid request"},
	{model.ErrInvalidAttributes, http.StatusBadRequest, "invalid_attributes", "Invalid request"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request", "Invalid request"},
}

// writeError maps err to a status and writes a localized message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	loc := s.deps.Catalog.Locale(r.Header.Get("Accept-Language"))

	var short *balancer.InsufficientPlayersError
	if errors.As(err, &short) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Code:    "insufficient_players",
			Message: loc.Get("Need %d players, %d more required", short.Required, short.Shortfall()),
		})
		return
	}

	for _, rule := range errorRules {
		if errors.Is(err, rule.target) {
			if rule.status >= http.StatusInternalServerError {
				s.log.Warn(r.Context(), "request failed", logger.String("path", r.URL.Path), logger.Error(err))
			}
			writeJSON(w, rule.status, errorResponse{Code: rule.code, Message: loc.Get(rule.msgid)})
			return
		}
	}

	s.log.Error(r.Context(), "unhandled request error", logger.String("path", r.URL.Path), logger.Error(err))
	metrics.RecordErrorByComponent("api", "internal")
	writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "internal_error", Message: loc.Get("Something went wrong")})
}
