// Package server provides the HTTP server and routing for the simulation service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/montecarlo/internal/database"
	"github.com/aristath/montecarlo/internal/events"
	runshandlers "github.com/aristath/montecarlo/internal/modules/runs/handlers"
	simulationhandlers "github.com/aristath/montecarlo/internal/modules/simulation/handlers"
	"github.com/aristath/montecarlo/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Log               zerolog.Logger
	Port              int
	DevMode           bool
	RequestTimeout    time.Duration
	Workers           int
	RunsDB            *database.DB
	EventBus          *events.Bus
	Metrics           *Metrics
	SimulationHandler *simulationhandlers.Handler
	RunsHandler       *runshandlers.Handler
	Scheduler         JobRunner
	Jobs              []scheduler.Job
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
		systemHandlers: NewSystemHandlers(
			cfg.Log,
			cfg.RunsDB,
			cfg.Metrics,
			cfg.Scheduler,
			cfg.Workers,
			cfg.Jobs...,
		),
	}
	if cfg.EventBus != nil {
		s.eventsStream = NewEventsStreamHandler(cfg.EventBus, cfg.Metrics, cfg.Log)
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream and live simulations hold responses open.
		// Ordinary requests are bounded by the timeout middleware instead.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Router exposes the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	if s.cfg.Metrics != nil {
		s.router.Handle("/metrics", s.cfg.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Streaming endpoints stay outside the request timeout
		if s.eventsStream != nil {
			r.Get("/events/stream", s.eventsStream.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Post("/jobs/{name}", s.systemHandlers.HandleTriggerJob)
			})
		})

		r.Route("/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(s.cfg.RequestTimeout))

				if s.cfg.SimulationHandler != nil {
					s.cfg.SimulationHandler.RegisterRoutes(r)
				}
				if s.cfg.RunsHandler != nil {
					s.cfg.RunsHandler.RegisterRoutes(r)
				}
			})

			if s.cfg.SimulationHandler != nil {
				s.cfg.SimulationHandler.RegisterStreamRoutes(r)
			}
		})
	})
}

// handleHealth reports liveness and runs database reachability
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if s.cfg.RunsDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.cfg.RunsDB.HealthCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["error"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode health response")
	}
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

// loggingMiddleware logs HTTP requests
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
