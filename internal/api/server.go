// Package api provides the HTTP API server and handlers for the PageMark application.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pagemark/pagemark-server/internal/catalog"
	"github.com/pagemark/pagemark-server/internal/http/response"
	"github.com/pagemark/pagemark-server/internal/service"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	trackingService *service.TrackingService
	readingService  *service.ReadingService
	statsService    *service.StatsService
	catalog         *catalog.Catalog
	statsLimiter    *RateLimiter
	router          *chi.Mux
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(trackingService *service.TrackingService, readingService *service.ReadingService, statsService *service.StatsService, catalog *catalog.Catalog, statsLimiter *RateLimiter, logger *slog.Logger) *Server {
	s := &Server{
		trackingService: trackingService,
		readingService:  readingService,
		statsService:    statsService,
		catalog:         catalog,
		statsLimiter:    statsLimiter,
		router:          chi.NewRouter(),
		logger:          logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Session tracking endpoints.
		r.Route("/reading", func(r chi.Router) {
			r.Post("/start", s.handleStartReading)
			r.Post("/end", s.handleEndReading)
		})

		// Surface lifecycle.
		r.Delete("/surfaces/{surfaceID}", s.handleCloseSurface)

		// Documents and read state. Document paths contain slashes,
		// so they travel as a query parameter rather than a URL param.
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Get("/show", s.handleGetDocument)
			r.Get("/sections", s.handleReadSections)
			r.Get("/completion", s.handleCompletion)
		})

		// Stats endpoints (rate limited, aggregation is comparatively expensive).
		r.Route("/stats", func(r chi.Router) {
			r.Use(RateLimitMiddleware(s.statsLimiter, s.logger))
			r.Get("/time-spent", s.handleTimeSpentOnDay)
			r.Get("/words", s.handleTotalWordsRead)
			r.Get("/speed", s.handleReadingSpeed)
			r.Get("/daily", s.handleDailyStats)
			r.Get("/categories", s.handleCategoryStats)
			r.Get("/most-read", s.handleMostRead)
			r.Get("/summary", s.handleSummary)
		})
	})
}

// handleHealthCheck returns server health status. Readiness is reported
// but never fails the check; pre-init responses are just conservative.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]any{
		"status": "healthy",
		"ready":  s.readingService.Ready(),
	}, s.logger)
}
