package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

// EventEmitter is the interface for broadcasting store changes.
// Store uses this to publish appends without depending on any
// transport; the API layer may subscribe or simply poll.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Store wraps a Badger database holding the append-only reading event
// log. Reads are only reliable after Init completes; callers that need
// trustworthy results check Ready first.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	eventEmitter EventEmitter

	// seq orders appended events for the insertion-order tiebreak.
	seq *badger.Sequence

	ready atomic.Bool
}

// New opens the database at path. The returned store is not ready until
// Init has been called.
func New(path string, logger *slog.Logger, emitter EventEmitter) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Writes survive process crashes between sessions
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	seq, err := db.GetSequence([]byte(eventSeqKey), 128)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open event sequence: %w", err)
	}

	store := &Store{
		db:           db,
		logger:       logger,
		eventEmitter: emitter,
		seq:          seq,
	}

	if logger != nil {
		logger.Info("Badger database opened successfully", "path", path)
	}

	return store, nil
}

// Init performs the startup load: it walks the event log once to verify
// the keyspace is readable, then marks the store ready. Reads issued
// before Init completes fail with ErrNotReady.
func (s *Store) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
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
		return fmt.Errorf("warm-up scan: %w", err)
	}

	s.ready.Store(true)

	if s.logger != nil {
		s.logger.Info("store initialized", "event_count", count)
	}
	return nil
}

// Ready reports whether the startup load has completed. Results read
// before this returns true may be stale or empty.
func (s *Store) Ready() bool {
	return s.ready.Load()
}

// Close releases the event sequence and closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	if err := s.seq.Release(); err != nil && s.logger != nil {
		s.logger.Warn("failed to release event sequence", "error", err)
	}
	return s.db.Close()
}

