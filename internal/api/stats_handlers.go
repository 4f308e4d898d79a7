package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pagemark/pagemark-server/internal/http/response"
	"github.com/pagemark/pagemark-server/internal/service"
)

// defaultDailyStatsDays is the daily-stats window when the client does
// not ask for a specific one.
const defaultDailyStatsDays = 7

// maxDailyStatsDays caps the window so one request cannot ask for an
// unbounded zero-filled series.
const maxDailyStatsDays = 366

// handleTimeSpentOnDay returns total reading time for one calendar day.
// Accepts ?date=2026-08-31; defaults to today.
func (s *Server) handleTimeSpentOnDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			response.BadRequest(w, "Invalid date, expected YYYY-MM-DD", s.logger)
			return
		}
		date = parsed
	}

	ms, err := s.statsService.TimeSpentOnDay(ctx, date)
	if err != nil {
		s.logger.Error("Failed to compute time spent", "error", err)
		response.InternalError(w, "Failed to compute time spent", s.logger)
		return
	}

	response.Success(w, map[string]any{
		"date":          date.Format("2006-01-02"),
		"time_spent_ms": ms,
	}, s.logger)
}

// handleTotalWordsRead returns total words read across all events.
func (s *Server) handleTotalWordsRead(w http.ResponseWriter, r *http.Request) {
	words, err := s.statsService.TotalWordsRead(r.Context())
	if err != nil {
		s.logger.Error("Failed to compute words read", "error", err)
		response.InternalError(w, "Failed to compute words read", s.logger)
		return
	}

	response.Success(w, map[string]any{
		"total_words": words,
	}, s.logger)
}

// handleReadingSpeed returns average words per minute.
func (s *Server) handleReadingSpeed(w http.ResponseWriter, r *http.Request) {
	wpm, err := s.statsService.ReadingSpeed(r.Context())
	if err != nil {
		s.logger.Error("Failed to compute reading speed", "error", err)
		response.InternalError(w, "Failed to compute reading speed", s.logger)
		return
	}

	response.Success(w, map[string]any{
		"words_per_minute": wpm,
	}, s.logger)
}

// handleDailyStats returns the per-day reading series. Accepts ?days=N.
func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := defaultDailyStatsDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed <= 0 || parsed > maxDailyStatsDays {
			response.BadRequest(w, "Invalid days, expected 1-366", s.logger)
			return
		}
		days = parsed
	}

	daily, err := s.statsService.DailyReadingStats(ctx, days)
	if err != nil {
		s.logger.Error("Failed to compute daily stats", "error", err)
		response.InternalError(w, "Failed to compute daily stats", s.logger)
		return
	}

	response.Success(w, daily, s.logger)
}

// handleCategoryStats returns per-category aggregates.
func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.statsService.CategoryStats(r.Context())
	if err != nil {
		s.logger.Error("Failed to compute category stats", "error", err)
		response.InternalError(w, "Failed to compute category stats", s.logger)
		return
	}

	response.Success(w, stats, s.logger)
}

// handleMostRead returns the most-read document. Accepts
// ?metric=sections|events; defaults to distinct sections.
func (s *Server) handleMostRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	metric := service.MetricSections
	switch r.URL.Query().Get("metric") {
	case "", "sections":
	case "events":
		metric = service.MetricEvents
	default:
		response.BadRequest(w, "Invalid metric, expected sections or events", s.logger)
		return
	}

	mostRead, err := s.readingService.MostRead(ctx, metric)
	if err != nil {
		s.logger.Error("Failed to compute most read", "error", err)
		response.InternalError(w, "Failed to compute most read", s.logger)
		return
	}

	response.Success(w, mostRead, s.logger)
}

// handleSummary returns the full dashboard payload.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := defaultDailyStatsDays
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil || parsed <= 0 || parsed > maxDailyStatsDays {
			response.BadRequest(w, "Invalid days, expected 1-366", s.logger)
			return
		}
		days = parsed
	}

	summary, err := s.statsService.Summary(ctx, days, s.readingService)
	if err != nil {
		s.logger.Error("Failed to build summary", "error", err)
		response.InternalError(w, "Failed to build summary", s.logger)
		return
	}

	response.Success(w, summary, s.logger)
}
