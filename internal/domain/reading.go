package domain

import "time"

// ReadingEvent is the atomic, immutable record of reading activity.
// Events are append-only - read state and statistics derive from them.
type ReadingEvent struct {
	ID           string `json:"id"`
	DocumentPath string `json:"document_path"`
	SectionID    string `json:"section_id"`

	// Category is derived from the document's path at record time and
	// used for aggregation. Opaque to the store.
	Category string `json:"category"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	DurationMs int64 `json:"duration_ms"`

	// WordCount is the words attributed to the section. Zero when unknown;
	// analytics may substitute from an override table.
	WordCount int `json:"word_count"`

	CreatedAt time.Time `json:"created_at"`
}

// NewReadingEvent creates a new event with computed fields.
// Duration is clamped to zero so a skewed clock never produces a
// negative reading time.
func NewReadingEvent(
	id, documentPath, sectionID, category string,
	startedAt, endedAt time.Time,
	wordCount int,
) *ReadingEvent {
	durationMs := endedAt.Sub(startedAt).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
		endedAt = startedAt
	}

	return &ReadingEvent{
		ID:           id,
		DocumentPath: documentPath,
		SectionID:    sectionID,
		Category:     category,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		DurationMs:   durationMs,
		WordCount:    wordCount,
		CreatedAt:    time.Now(),
	}
}

// Day returns the event's local calendar day (midnight, local zone of
// StartedAt). Daily aggregation buckets by this value.
func (e *ReadingEvent) Day() time.Time {
	year, month, day := e.StartedAt.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, e.StartedAt.Location())
}

// SessionState is the ephemeral in-progress tracking state between a
// section becoming active and becoming inactive. Never persisted.
type SessionState struct {
	DocumentPath string
	SectionID    string
	StartedAt    time.Time
}

// SameTarget reports whether the session is tracking the given
// document/section pair.
func (s *SessionState) SameTarget(documentPath, sectionID string) bool {
	return s.DocumentPath == documentPath && s.SectionID == sectionID
}
