package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pagemark/pagemark-server/internal/domain"
)

// AppendEvent persists a reading event and its document index
// atomically. Events are immutable - no Update method exists, and
// duplicate content is legitimate (re-reading a section appends a
// second event).
func (s *Store) AppendEvent(ctx context.Context, event *domain.ReadingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return ErrInvalidInput.WithMessage("marshal event").WithCause(err)
	}

	seq, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next event sequence: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(eventKey(seq), data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}

		if err := txn.Set(docIndexKey(event.DocumentPath, event.ID), []byte(event.SectionID)); err != nil {
			return fmt.Errorf("set document index: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if s.eventEmitter != nil {
		s.eventEmitter.Emit(event)
	}

	return nil
}

// ReadSections returns the distinct section IDs with at least one event
// for the document. Only the document index is scanned; event bodies
// are never fetched.
func (s *Store) ReadSections(ctx context.Context, documentPath string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Ready() {
		return nil, ErrNotReady
	}

	sections := make(map[string]bool)
	prefix := docIndexPrefix(documentPath)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				sections[string(val)] = true
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan read sections for %s: %w", documentPath, err)
	}

	return sections, nil
}

// AllEvents returns the full event log ordered by StartedAt, ties
// broken by insertion order. This is the canonical analytics input.
func (s *Store) AllEvents(ctx context.Context) ([]*domain.ReadingEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Ready() {
		return nil, ErrNotReady
	}

	var events []*domain.ReadingEvent

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Key order is insertion order (zero-padded sequence).
		for it.Seek([]byte(eventPrefix)); it.ValidForPrefix([]byte(eventPrefix)); it.Next() {
			var event domain.ReadingEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("skipping corrupt event record",
						"key", string(it.Item().Key()),
						"error", err)
				}
				continue
			}
			events = append(events, &event)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}

	// Stable sort keeps the insertion-order tiebreak for equal timestamps.
	slices.SortStableFunc(events, func(a, b *domain.ReadingEvent) int {
		return a.StartedAt.Compare(b.StartedAt)
	})

	return events, nil
}

// EventsForDocument returns the ordered events for one document.
func (s *Store) EventsForDocument(ctx context.Context, documentPath string) ([]*domain.ReadingEvent, error) {
	all, err := s.AllEvents(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*domain.ReadingEvent
	for _, e := range all {
		if e.DocumentPath == documentPath {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// EventsInRange returns events whose StartedAt falls within [start, end).
// Zero start means the beginning of time.
func (s *Store) EventsInRange(ctx context.Context, start, end time.Time) ([]*domain.ReadingEvent, error) {
	all, err := s.AllEvents(ctx)
	if err != nil {
		return nil, err
	}

	var filtered []*domain.ReadingEvent
	for _, e := range all {
		if (start.IsZero() || !e.StartedAt.Before(start)) && e.StartedAt.Before(end) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

// CountEvents returns the total number of persisted events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(eventPrefix)); it.ValidForPrefix([]byte(eventPrefix)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

// PruneEventsBefore deletes events with StartedAt older than cutoff and
// their index entries. Returns the number of events removed. Retention
// is the only sanctioned mutation of the log besides append.
func (s *Store) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type victim struct {
		primary []byte
		index   []byte
	}
	var victims []victim

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(eventPrefix)); it.ValidForPrefix([]byte(eventPrefix)); it.Next() {
			var event domain.ReadingEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				continue
			}
			if event.StartedAt.Before(cutoff) {
				victims = append(victims, victim{
					primary: it.Item().KeyCopy(nil),
					index:   docIndexKey(event.DocumentPath, event.ID),
				})
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan for retention: %w", err)
	}

	if len(victims) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, v := range victims {
		if err := wb.Delete(v.primary); err != nil {
			return 0, fmt.Errorf("delete event: %w", err)
		}
		if err := wb.Delete(v.index); err != nil {
			return 0, fmt.Errorf("delete index: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush retention batch: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("pruned reading events",
			"deleted", len(victims),
			"cutoff", cutoff.Format(time.RFC3339))
	}

	return len(victims), nil
}
