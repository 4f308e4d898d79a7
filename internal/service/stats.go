package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagemark/pagemark-server/internal/catalog"
	"github.com/pagemark/pagemark-server/internal/domain"
	"github.com/pagemark/pagemark-server/internal/offload"
	"github.com/pagemark/pagemark-server/internal/store"
)

// StatsService answers aggregate reading questions. All folding runs
// through the offload bridge; this layer only loads events, merges
// catalog word-count overrides and shapes results.
type StatsService struct {
	store   *store.Store
	catalog *catalog.Catalog
	bridge  *offload.Bridge
	logger  *slog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(store *store.Store, catalog *catalog.Catalog, bridge *offload.Bridge, logger *slog.Logger) *StatsService {
	return &StatsService{
		store:   store,
		catalog: catalog,
		bridge:  bridge,
		logger:  logger,
	}
}

// loadEvents returns the full ordered event log, or an empty slice when
// the store has not finished initializing. Serving zeros beats serving
// a partial log as if it were complete.
func (s *StatsService) loadEvents(ctx context.Context) ([]*domain.ReadingEvent, error) {
	events, err := s.store.AllEvents(ctx)
	if errors.Is(err, store.ErrNotReady) {
		s.logger.Debug("stats requested before init, serving empty results")
		return []*domain.ReadingEvent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return events, nil
}

// wordCountOverrides merges per-section word counts from every catalog
// document. Used when an event predates word-count capture.
func (s *StatsService) wordCountOverrides() map[string]int {
	overrides := make(map[string]int)
	for _, doc := range s.catalog.Documents() {
		for id, words := range doc.WordCountOverrides() {
			overrides[id] = words
		}
	}
	return overrides
}

// TimeSpentOnDay returns total reading time in milliseconds for the
// local calendar day containing date.
func (s *StatsService) TimeSpentOnDay(ctx context.Context, date time.Time) (int64, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return 0, err
	}

	value, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnTimeSpentOnDay,
		Args: offload.Args{Events: events, Date: date},
	})
	if err != nil {
		return 0, err
	}
	ms, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T for time spent", value)
	}
	return ms, nil
}

// TotalWordsRead returns total words read across all events, with
// catalog word counts filling in events that recorded none.
func (s *StatsService) TotalWordsRead(ctx context.Context) (int, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return 0, err
	}

	value, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnTotalWordsRead,
		Args: offload.Args{Events: events, Overrides: s.wordCountOverrides()},
	})
	if err != nil {
		return 0, err
	}
	words, ok := value.(int)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T for words read", value)
	}
	return words, nil
}

// ReadingSpeed returns average words per minute, 0 when no time has
// been recorded.
func (s *StatsService) ReadingSpeed(ctx context.Context) (float64, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return 0, err
	}

	value, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnReadingSpeed,
		Args: offload.Args{Events: events},
	})
	if err != nil {
		return 0, err
	}
	wpm, ok := value.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type %T for reading speed", value)
	}
	return wpm, nil
}

// DailyReadingStats returns one entry per day for the trailing window,
// oldest first, zero-filled for days without reading.
func (s *StatsService) DailyReadingStats(ctx context.Context, days int) ([]domain.DailyReading, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return nil, err
	}

	value, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnDailyReadingStats,
		Args: offload.Args{Events: events, Now: time.Now(), Days: days},
	})
	if err != nil {
		return nil, err
	}
	daily, ok := value.([]domain.DailyReading)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T for daily stats", value)
	}
	return daily, nil
}

// CategoryStats returns per-category aggregates keyed by category name.
func (s *StatsService) CategoryStats(ctx context.Context) (map[string]domain.CategoryStats, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return nil, err
	}

	value, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnCategoryStats,
		Args: offload.Args{Events: events},
	})
	if err != nil {
		return nil, err
	}
	stats, ok := value.(map[string]domain.CategoryStats)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T for category stats", value)
	}
	return stats, nil
}

// Summary assembles the full dashboard payload in one pass over the
// event log. days controls the daily-stats window.
func (s *StatsService) Summary(ctx context.Context, days int, reading *ReadingService) (*domain.ReadingSummary, error) {
	events, err := s.loadEvents(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	overrides := s.wordCountOverrides()

	totalTime := int64(0)
	for _, e := range events {
		totalTime += e.DurationMs
	}

	wordsVal, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnTotalWordsRead,
		Args: offload.Args{Events: events, Overrides: overrides},
	})
	if err != nil {
		return nil, err
	}
	speedVal, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnReadingSpeed,
		Args: offload.Args{Events: events},
	})
	if err != nil {
		return nil, err
	}
	dailyVal, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnDailyReadingStats,
		Args: offload.Args{Events: events, Now: now, Days: days},
	})
	if err != nil {
		return nil, err
	}
	categoriesVal, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnSortedCategoryStats,
		Args: offload.Args{Events: events},
	})
	if err != nil {
		return nil, err
	}
	todayVal, err := s.bridge.Call(ctx, offload.Request{
		Fn:   offload.FnTimeSpentOnDay,
		Args: offload.Args{Events: events, Date: now},
	})
	if err != nil {
		return nil, err
	}

	words, _ := wordsVal.(int)
	speed, _ := speedVal.(float64)
	daily, _ := dailyVal.([]domain.DailyReading)
	categories, _ := categoriesVal.([]domain.CategoryStats)
	today, _ := todayVal.(int64)

	mostRead, err := reading.MostRead(ctx, MetricSections)
	if err != nil {
		return nil, err
	}

	return &domain.ReadingSummary{
		TotalTimeMs:    totalTime,
		TotalWords:     words,
		WordsPerMinute: speed,
		EventCount:     len(events),
		Daily:          daily,
		Categories:     categories,
		MostRead:       mostRead,
		TimeSpentToday: today,
		GeneratedAt:    now,
	}, nil
}
