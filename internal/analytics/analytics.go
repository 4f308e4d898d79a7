// Package analytics folds an ordered reading event log into
// time-bucketed and category-bucketed statistics. Every function is
// pure and deterministic given its inputs: no IO, no shared state, no
// clock reads, so calls are safe from any goroutine and from the
// offload worker.
package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/pagemark/pagemark-server/internal/domain"
)

// dateKey buckets a time by its local calendar day.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// startOfDay truncates a time to local midnight.
func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// TimeSpentOnDay sums the duration of events whose StartedAt falls on
// the same local calendar day as date.
func TimeSpentOnDay(date time.Time, events []*domain.ReadingEvent) int64 {
	key := dateKey(date)
	var total int64
	for _, e := range events {
		if dateKey(e.StartedAt) == key {
			total += e.DurationMs
		}
	}
	return total
}

// TotalWordsRead sums word counts across events. When an event carries
// no count and overrides has an entry for its section, the override is
// used instead. A nil overrides map is valid.
func TotalWordsRead(events []*domain.ReadingEvent, overrides map[string]int) int {
	total := 0
	for _, e := range events {
		words := e.WordCount
		if words == 0 {
			words = overrides[e.SectionID]
		}
		total += words
	}
	return total
}

// TotalTimeMs sums the duration of all events.
func TotalTimeMs(events []*domain.ReadingEvent) int64 {
	var total int64
	for _, e := range events {
		total += e.DurationMs
	}
	return total
}

// ReadingSpeed returns words per minute across the event set, or 0 when
// no time has been recorded. Never divides by zero.
func ReadingSpeed(events []*domain.ReadingEvent) float64 {
	totalMs := TotalTimeMs(events)
	if totalMs == 0 {
		return 0
	}
	words := TotalWordsRead(events, nil)
	return float64(words) / (float64(totalMs) / 60000.0)
}

// DailyReadingStats produces exactly days entries, one per local
// calendar day ending at the day of now, oldest first (most recent day
// last). Days without events are zero-filled; the entry count never
// varies with event sparsity.
func DailyReadingStats(now time.Time, events []*domain.ReadingEvent, days int) []domain.DailyReading {
	if days <= 0 {
		return []domain.DailyReading{}
	}

	timeByDay := make(map[string]int64)
	wordsByDay := make(map[string]int)
	for _, e := range events {
		key := dateKey(e.StartedAt)
		timeByDay[key] += e.DurationMs
		wordsByDay[key] += e.WordCount
	}

	stats := make([]domain.DailyReading, 0, days)
	for i := days - 1; i >= 0; i-- {
		date := startOfDay(now).AddDate(0, 0, -i)
		key := dateKey(date)
		stats = append(stats, domain.DailyReading{
			Date:        date,
			TimeSpentMs: timeByDay[key],
			WordsRead:   wordsByDay[key],
		})
	}
	return stats
}

// CategoryStats groups events by category: total time, total words,
// session count and average session length per category. Empty input
// yields an empty map.
func CategoryStats(events []*domain.ReadingEvent) map[string]domain.CategoryStats {
	stats := make(map[string]domain.CategoryStats)
	for _, e := range events {
		cs := stats[e.Category]
		cs.Category = e.Category
		cs.TotalTimeMs += e.DurationMs
		cs.TotalWords += e.WordCount
		cs.SessionCount++
		stats[e.Category] = cs
	}

	for category, cs := range stats {
		if cs.SessionCount > 0 {
			cs.AverageSessionMs = cs.TotalTimeMs / int64(cs.SessionCount)
		}
		stats[category] = cs
	}
	return stats
}

// SortedCategoryStats flattens CategoryStats into a slice ordered by
// total time descending, category name ascending on ties. Used for
// display-ready responses.
func SortedCategoryStats(events []*domain.ReadingEvent) []domain.CategoryStats {
	byCategory := CategoryStats(events)

	list := make([]domain.CategoryStats, 0, len(byCategory))
	for _, cs := range byCategory {
		list = append(list, cs)
	}

	slices.SortFunc(list, func(a, b domain.CategoryStats) int {
		if a.TotalTimeMs != b.TotalTimeMs {
			if b.TotalTimeMs > a.TotalTimeMs {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Category, b.Category)
	})
	return list
}
