// Package server provides the HTTP server and routing for stockwatch.
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

	"github.com/aristath/stockwatch/internal/di"
	alerthandlers "github.com/aristath/stockwatch/internal/modules/alerts/handlers"
	dividendhandlers "github.com/aristath/stockwatch/internal/modules/dividends/handlers"
	fundamentalhandlers "github.com/aristath/stockwatch/internal/modules/fundamentals/handlers"
	instrumenthandlers "github.com/aristath/stockwatch/internal/modules/instruments/handlers"
	portfoliohandlers "github.com/aristath/stockwatch/internal/modules/portfolio/handlers"
	quotehandlers "github.com/aristath/stockwatch/internal/modules/quotes/handlers"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	DataDir   string
	Container *di.Container
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	port      int
	container *di.Container
	system    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		container: cfg.Container,
		system: NewSystemHandlers(
			cfg.DataDir,
			cfg.Container.Databases(),
			cfg.Container.Scheduler,
			cfg.Log,
		),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// event streams stay open, so no WriteTimeout
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5, "application/json", "text/csv"))
	}
}

func (s *Server) setupRoutes() {
	c := s.container

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		stream := NewEventsStreamHandler(c.EventBus, s.log)
		socket := NewEventsSocketHandler(c.EventBus, s.log)
		r.Get("/events/stream", stream.ServeHTTP)
		r.Get("/events/ws", socket.ServeHTTP)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.system.HandleSystemStatus)
			r.Get("/jobs", s.system.HandleJobs)
			r.Get("/database/stats", s.system.HandleDatabaseStats)
		})

		// Request-scoped routes get a timeout; the event streams above must not.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			portfoliohandlers.NewHandler(c.PortfolioService, c.ImportService, c.Comparator, s.log).RegisterRoutes(r)
			instrumenthandlers.NewHandler(c.InstrumentService, s.log).RegisterRoutes(r)
			dividendhandlers.NewHandler(c.DividendService, s.log).RegisterRoutes(r)
			quotehandlers.NewHandler(c.QuoteService, c.InstrumentRepo, s.log).RegisterRoutes(r)
			alerthandlers.NewHandler(c.AlertService, s.log).RegisterRoutes(r)
			fundamentalhandlers.NewHandler(c.FundamentalsService, s.log).RegisterRoutes(r)
		})
	})
}

// Start serves until Shutdown is called. It returns http.ErrServerClosed
// after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
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
