package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/irontracks/musclemap/internal/config"
	"github.com/irontracks/musclemap/internal/engine"
	"github.com/irontracks/musclemap/internal/ingest/alpha"
	"github.com/irontracks/musclemap/internal/metrics"
)

// Engine runs the muscle-volume operations.
type Engine interface {
	Week(ctx context.Context, userID int, req engine.WeekRequest) (*engine.WeekResult, error)
	Day(ctx context.Context, userID int, req engine.DayRequest) (*engine.DayResult, error)
	Classify(ctx context.Context, userID int, names []string) (*engine.ClassifyResult, error)
	Backfill(ctx context.Context, userID int, req engine.BackfillRequest) (*engine.BackfillResult, error)
}

// Users maps an authenticated login to a local user id.
type Users interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// Options configures authentication and instrumentation.
type Options struct {
	// AuthMode is one of config.AuthJWT, config.AuthTailscale, config.AuthDev.
	AuthMode  string
	JWTSecret string
	APIKey    string
	Metrics   *metrics.Manager
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	engine    Engine
	users     Users
	alpha     *alpha.Provider
	log       *slog.Logger
	opts      Options
	tailscale WhoIsClient
	router    chi.Router
}

// New creates a new Server with all routes configured.
func New(eng Engine, users Users, alphaProvider *alpha.Provider, opts Options, log *slog.Logger) *Server {
	s := &Server{
		engine: eng,
		users:  users,
		alpha:  alphaProvider,
		log:    log,
		opts:   opts,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale sets the client used to resolve identities in tailscale
// mode. It must be called before serving.
func (s *Server) SetTailscale(c WhoIsClient) {
	s.tailscale = c
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(PanicRecovery(s.opts.Metrics, s.log))
	s.router.Use(RequestLogging(s.log))
	if s.opts.Metrics != nil {
		s.router.Use(RequestMetrics(s.opts.Metrics))
	}
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router.Get("/api/v1/muscles", s.handleMuscles)

	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)
		r.Get("/api/v1/me", s.handleMe)
		r.Post("/api/v1/muscle-map/week", s.handleWeek)
		r.Post("/api/v1/muscle-map/day", s.handleDay)
		r.Post("/api/v1/exercise-muscle-map", s.handleClassify)
		r.Post("/api/v1/exercise-muscle-map/backfill", s.handleBackfill)

		r.With(APIKeyAuth(s.opts.APIKey)).Post("/api/v1/ingest/alpha", s.handleAlphaIngest)
	})
}

// identity picks the identity middleware for the configured mode.
func (s *Server) identity(next http.Handler) http.Handler {
	switch s.opts.AuthMode {
	case config.AuthJWT:
		return JWTIdentity([]byte(s.opts.JWTSecret), s.users, s.log)(next)
	case config.AuthTailscale:
		return TailscaleIdentity(s.whoIs, s.users, s.log)(next)
	default:
		return DevIdentity(next)
	}
}
