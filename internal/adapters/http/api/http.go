// Package api serves the futbol HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/http/swagger"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/dedupe"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/evaluation"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/matches"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/model"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/types"
	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
)

// MatchFilter selects matches in list queries.
type MatchFilter = repository.MatchFilter

// Players is the roster store seen by the API.
type Players interface {
	GetPlayer(ctx context.Context, id string) (model.Player, error)
	ListPlayers(ctx context.Context, groupID string) ([]model.Player, error)
	CreatePlayer(ctx context.Context, p model.Player) (model.Player, error)
	UpdatePlayer(ctx context.Context, id string, fn func(*model.Player) error) (model.Player, error)
	DeletePlayer(ctx context.Context, id string) error
	TopPlayers(ctx context.Context, groupID string, n int) ([]types.Entry, error)
}

// Matches balances teams and runs the match lifecycle.
type Matches interface {
	Balance(ctx context.Context, groupID string, playerIDs []string, format model.Format) (balancer.Result, error)
	Create(ctx context.Context, req matches.CreateRequest) (model.Match, balancer.Result, error)
	Get(ctx context.Context, id string) (model.Match, error)
	List(ctx context.Context, f MatchFilter) ([]model.Match, error)
	Transition(ctx context.Context, id string, status model.MatchStatus, result *model.Result) (model.Match, *model.Evaluation, error)
	EnsureEvaluation(ctx context.Context, id string) (*model.Evaluation, error)
}

// Evaluations runs the peer evaluation workflow.
type Evaluations interface {
	Get(ctx context.Context, matchID string) (model.Evaluation, error)
	SubmitEvaluation(ctx context.Context, matchID, evaluatorID string, ratings map[string]evaluation.Submission) (evaluation.SubmitResult, error)
	Recalculate(ctx context.Context, matchID string) ([]model.OVRUpdate, error)
	PendingFor(ctx context.Context, playerID string) ([]model.Evaluation, error)
	CompletedFor(ctx context.Context, playerID string, limit int) ([]model.Evaluation, error)
	CleanupExpiredEvaluations(ctx context.Context) (int, error)
}

// Photos stores player photos. Nil disables the photo route.
type Photos interface {
	Upload(ctx context.Context, playerID, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Feed upgrades a request into a live activity subscription.
type Feed interface {
	Serve(w http.ResponseWriter, r *http.Request, groupID, personID string)
}

// Deps bundles what the handlers need.
type Deps struct {
	Players     Players
	Matches     Matches
	Evaluations Evaluations
	Photos      Photos
	Feed        Feed
	Stats       StatsProvider
	Deduper     dedupe.Deduper
	Catalog     *i18n.Catalog
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Deps

	log             logger.Logger
	jwtSecret       []byte
	corsOrigins     []string
	maxRankingLimit int
	submitRate      rate.Limit
	submitBurst     int

	limiters *limiters
}

// NewServer creates an API server. Deps.Catalog and Deps.Deduper get
// defaults when nil.
func NewServer(deps Deps, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		log:             logger.Nop(),
		corsOrigins:     []string{"*"},
		maxRankingLimit: defaultMaxRankingLimit,
		submitRate:      defaultSubmitRate,
		submitBurst:     defaultSubmitBurst,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deps.Catalog == nil {
		s.deps.Catalog = i18n.MustLoad(i18n.DefaultLanguage)
	}
	if s.deps.Deduper == nil {
		s.deps.Deduper = dedupe.NewInMemoryDeduper()
	}
	s.limiters = newLimiters(s.submitRate, s.submitBurst)
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "Idempotency-Key", headerPersonID, headerGroupID},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", NewHealthHandler().HandleHealth)
	r.Get("/stats", NewStatsHandler(s.deps.Stats).HandleStats)
	swagger.Register(r)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.Authenticate)

		r.Route("/players", func(r chi.Router) {
			r.Get("/", s.listPlayers)
			r.With(s.Idempotent).Post("/", s.createPlayer)
			r.Get("/ranking", s.ranking)
			r.Route("/{playerID}", func(r chi.Router) {
				r.Get("/", s.getPlayer)
				r.Patch("/", s.patchPlayer)
				r.Delete("/", s.deletePlayer)
				r.Get("/history", s.playerHistory)
				r.Put("/photo", s.uploadPhoto)
			})
		})

		r.Post("/teams", s.balanceTeams)

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.listMatches)
			r.With(s.Idempotent).Post("/", s.createMatch)
			r.Route("/{matchID}", func(r chi.Router) {
				r.Get("/", s.getMatch)
				r.With(s.Idempotent).Post("/status", s.transitionMatch)
				r.Get("/evaluation", s.getEvaluation)
				r.With(s.SubmitLimit, s.Idempotent).Post("/evaluation", s.submitEvaluation)
				r.Post("/evaluation/open", s.openEvaluation)
				r.Post("/evaluation/recalculate", s.recalculate)
			})
		})

		r.Route("/evaluations", func(r chi.Router) {
			r.Get("/pending", s.pendingEvaluations)
			r.Get("/completed", s.completedEvaluations)
			r.Post("/cleanup", s.cleanupEvaluations)
		})

		r.Get("/feed", s.feed)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const maxBodyBytes = 1 << 20

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadRequest)
	}
	return nil
}

// sameGroup hides records of other groups behind a not-found.
func sameGroup(id Identity, groupID string, what string) error {
	if id.GroupID != "" && groupID != id.GroupID {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}
