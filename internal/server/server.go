// Package server provides the HTTP server and routing for aurum.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/aurum/internal/cache"
	"github.com/aristath/aurum/internal/database"
	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/metrics"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool
	DataDir string

	RateLimit int // requests per minute per client IP on /api, 0 disables

	Analysis  AnalysisService
	Prices    PriceService
	News      NewsService
	Updates   UpdateLog
	Cache     *cache.Store
	DB        *database.DB
	Pool      PoolStats
	Scheduler JobLister // nil when the scheduler is disabled
	Bus       *events.Bus
	Metrics   *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	cfg     Config
	log     zerolog.Logger
	started time.Time

	system *SystemHandlers
	stream *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		log:     cfg.Log.With().Str("component", "server").Logger(),
		started: time.Now(),
	}
	s.system = NewSystemHandlers(cfg.DB, cfg.Pool, cfg.Scheduler, cfg.Analysis, cfg.Updates, cfg.DataDir, cfg.Log)
	s.stream = NewEventsStreamHandler(cfg.Bus, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second, // forced refreshes wait on generation
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.cfg.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(newRateLimiter(s.cfg.RateLimit, s.log).middleware)
		}

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/{kind}", s.handleGetAnalysis)
			r.Post("/{kind}/refresh", s.handleRefreshAnalysis)
		})

		r.Route("/prices", func(r chi.Router) {
			// Bounded so a slow quote source cannot pin the request
			r.Use(middleware.Timeout(30 * time.Second))
			r.Get("/realtime", s.handleRealtime)
			r.Get("/info", s.handlePriceInfo)
			r.Get("/history", s.handleHistory)
			r.Get("/statistics", s.handleStatistics)
			r.Get("/indicators", s.handleIndicators)
			r.Get("/correlation", s.handleCorrelation)
		})

		r.Route("/news", func(r chi.Router) {
			r.Get("/", s.handleListNews)
			r.Get("/sentiment", s.handleNewsSentiment)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/status", s.handleCacheStatus)
			r.Delete("/{key}", s.handleClearCacheKey)
			r.Delete("/", s.handleClearCache)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.system.HandleStatus)
			r.Get("/updates", s.system.HandleUpdates)
		})

		r.Get("/events/ws", s.stream.ServeHTTP)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
