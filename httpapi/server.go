package httpapi

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/poiesic/umbratrace/batch"
	"github.com/poiesic/umbratrace/config"
	"github.com/poiesic/umbratrace/core"
	"github.com/poiesic/umbratrace/metrics"
	"github.com/poiesic/umbratrace/storage"
)

// Engine is the search surface served over HTTP.
type Engine interface {
	Search(ctx context.Context, query string, state *core.FilterState) (*core.Response, error)
	SearchBatch(ctx context.Context, queries []string, state *core.FilterState) ([]batch.Result, error)
	History() storage.HistoryRepository
}

type Server struct {
	engine   Engine
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	limiter  *rate.Limiter
	jitter   func(n int64) int64
	router   chi.Router
}

var _ http.Handler = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records request metrics into m and serves g on /metrics.
// A nil g leaves /metrics unmounted.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithJitter replaces the source of simulated latency. jitter returns a
// value in [0, n).
func WithJitter(jitter func(n int64) int64) Option {
	return func(s *Server) {
		if jitter != nil {
			s.jitter = jitter
		}
	}
}

// NewServer builds the router for engine. A nil cfg means config.DefaultConfig().
func NewServer(engine Engine, cfg *config.Config, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		engine: engine,
		config: cfg,
		logger: slog.Default(),
		jitter: rand.Int64N,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recovery)
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(compress)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Group(func(r chi.Router) {
			r.Use(s.simulateLatency)
			r.Get("/search", s.handleSearchQuery)
			r.Post("/search", s.handleSearchBody)
			r.Post("/search/batch", s.handleSearchBatch)
		})

		r.Get("/recent", s.handleRecentList)
		r.Delete("/recent", s.handleRecentClear)
		r.Delete("/recent/{term}", s.handleRecentRemove)
	})

	return r
}
