package domain

import "time"

// DailyReading represents reading activity for a single calendar day.
type DailyReading struct {
	Date        time.Time `json:"date"`
	TimeSpentMs int64     `json:"time_spent_ms"`
	WordsRead   int       `json:"words_read"`
}

// CategoryStats aggregates reading activity for one category.
type CategoryStats struct {
	Category         string `json:"category"`
	TotalTimeMs      int64  `json:"total_time_ms"`
	TotalWords       int    `json:"total_words"`
	SessionCount     int    `json:"session_count"`
	AverageSessionMs int64  `json:"average_session_ms"`
}

// MostRead identifies the document with the highest read count.
// Count semantics depend on the requested metric (distinct sections or
// total events). A zero-valued MostRead (empty Path) means no document
// has any reading activity yet.
type MostRead struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

// None reports whether this is the sentinel "no documents read" value.
func (m MostRead) None() bool {
	return m.Path == ""
}

// ReadingSummary is the combined overview served by the stats API.
// All fields are pure derivations of the event log, recomputed on demand.
type ReadingSummary struct {
	TotalTimeMs    int64           `json:"total_time_ms"`
	TotalWords     int             `json:"total_words"`
	WordsPerMinute float64         `json:"words_per_minute"`
	EventCount     int             `json:"event_count"`
	Daily          []DailyReading  `json:"daily"`
	Categories     []CategoryStats `json:"categories"`
	MostRead       MostRead        `json:"most_read"`
	TimeSpentToday int64           `json:"time_spent_today_ms"`
	GeneratedAt    time.Time       `json:"generated_at"`
}
