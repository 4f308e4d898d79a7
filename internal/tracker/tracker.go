// Package tracker turns section-visibility transitions into immutable
// reading events. Each UI surface owns one Tracker; two open documents
// need two instances to avoid cross-talk.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pagemark/pagemark-server/internal/domain"
	"github.com/pagemark/pagemark-server/internal/id"
)

// EventSink receives completed reading events. Satisfied by *store.Store.
type EventSink interface {
	AppendEvent(ctx context.Context, event *domain.ReadingEvent) error
}

// MetadataSource resolves the category and word count for a section at
// the moment an event is built. Satisfied by *catalog.Catalog.
type MetadataSource interface {
	SectionMetadata(documentPath, sectionID string) (category string, wordCount int)
}

// Tracker is a two-state machine (idle / active) with exactly one
// mutable field: the active session. Transitions are synchronous and
// never blocked on persistence.
type Tracker struct {
	sink   EventSink
	meta   MetadataSource
	logger *slog.Logger

	// now is swapped in tests for deterministic durations.
	now func() time.Time

	mu     sync.Mutex
	active *domain.SessionState
}

// New creates a tracker writing completed events to sink. meta may be
// nil, in which case events carry a path-derived category and zero word
// count.
func New(sink EventSink, meta MetadataSource, logger *slog.Logger) *Tracker {
	return &Tracker{
		sink:   sink,
		meta:   meta,
		logger: logger,
		now:    time.Now,
	}
}

// StartReading opens a session for the given document section.
// Calling it again with the same pair is a no-op, which makes re-render
// cycles safe. Calling it with a different pair first ends the current
// session (emitting its event) and then opens the new one.
func (t *Tracker) StartReading(ctx context.Context, documentPath, sectionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		if t.active.SameTarget(documentPath, sectionID) {
			return nil
		}
		// Implicit end of the previous target. The new session opens
		// even if persisting the old event fails.
		if err := t.endLocked(ctx); err != nil {
			t.active = &domain.SessionState{
				DocumentPath: documentPath,
				SectionID:    sectionID,
				StartedAt:    t.now(),
			}
			return err
		}
	}

	t.active = &domain.SessionState{
		DocumentPath: documentPath,
		SectionID:    sectionID,
		StartedAt:    t.now(),
	}
	return nil
}

// EndReading closes the active session, emitting one reading event.
// With no active session it is a no-op, so an effect-cleanup path and
// an explicit exit action can both fire for the same transition without
// double-counting.
func (t *Tracker) EndReading(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endLocked(ctx)
}

// endLocked converts the active session into an event and appends it.
// The in-memory state clears before the write so a persistence failure
// drops the event (reported via the returned error) rather than
// wedging the state machine.
func (t *Tracker) endLocked(ctx context.Context) error {
	if t.active == nil {
		return nil
	}

	session := t.active
	t.active = nil

	event, err := t.buildEvent(session)
	if err != nil {
		return err
	}

	if err := t.sink.AppendEvent(ctx, event); err != nil {
		if t.logger != nil {
			t.logger.Error("failed to persist reading event",
				"document_path", event.DocumentPath,
				"section_id", event.SectionID,
				"duration_ms", event.DurationMs,
				"error", err)
		}
		return fmt.Errorf("append reading event: %w", err)
	}

	if t.logger != nil {
		t.logger.Debug("recorded reading event",
			"event_id", event.ID,
			"document_path", event.DocumentPath,
			"section_id", event.SectionID,
			"duration_ms", event.DurationMs)
	}
	return nil
}

// buildEvent assembles the immutable event for a finished session.
func (t *Tracker) buildEvent(session *domain.SessionState) (*domain.ReadingEvent, error) {
	eventID, err := id.Generate("revt")
	if err != nil {
		return nil, fmt.Errorf("generate event ID: %w", err)
	}

	category := domain.CategoryForPath(session.DocumentPath)
	wordCount := 0
	if t.meta != nil {
		if c, wc := t.meta.SectionMetadata(session.DocumentPath, session.SectionID); c != "" {
			category, wordCount = c, wc
		} else {
			wordCount = wc
		}
	}

	return domain.NewReadingEvent(
		eventID,
		session.DocumentPath,
		session.SectionID,
		category,
		session.StartedAt,
		t.now(),
		wordCount,
	), nil
}

// Active returns a copy of the current session state, if any.
func (t *Tracker) Active() (domain.SessionState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return domain.SessionState{}, false
	}
	return *t.active, true
}

// Close ends any active session with a fire-and-forget write. It is
// safe to call from teardown paths that cannot wait on IO and cannot
// tolerate a panic; persistence errors are logged, never raised.
func (t *Tracker) Close() {
	t.mu.Lock()
	session := t.active
	t.active = nil
	t.mu.Unlock()

	if session == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil && t.logger != nil {
				t.logger.Error("panic in teardown persistence", "panic", r)
			}
		}()

		event, err := t.buildEvent(session)
		if err != nil {
			if t.logger != nil {
				t.logger.Error("failed to build teardown event", "error", err)
			}
			return
		}
		if err := t.sink.AppendEvent(context.Background(), event); err != nil && t.logger != nil {
			t.logger.Error("failed to persist teardown event",
				"document_path", event.DocumentPath,
				"section_id", event.SectionID,
				"error", err)
		}
	}()
}

// SetNowFunc overrides the tracker's clock. Tests only.
func (t *Tracker) SetNowFunc(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}
