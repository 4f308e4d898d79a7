package tracker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pagemark/pagemark-server/internal/domain"
	"github.com/pagemark/pagemark-server/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects appended events in memory.
type recordingSink struct {
	mu     sync.Mutex
	events []*domain.ReadingEvent
	err    error
}

func (s *recordingSink) AppendEvent(_ context.Context, event *domain.ReadingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) all() []*domain.ReadingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.ReadingEvent(nil), s.events...)
}

// staticMeta answers every section with fixed metadata.
type staticMeta struct {
	category  string
	wordCount int
}

func (m staticMeta) SectionMetadata(_, _ string) (string, int) {
	return m.category, m.wordCount
}

// fakeClock steps time manually.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(sink *recordingSink, meta tracker.MetadataSource) (*tracker.Tracker, *fakeClock) {
	tr := tracker.New(sink, meta, nil)
	clock := &fakeClock{now: time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)}
	tr.SetNowFunc(clock.Now)
	return tr, clock
}

func TestStartReadingOpensSession(t *testing.T) {
	sink := &recordingSink{}
	tr, _ := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))

	active, ok := tr.Active()
	require.True(t, ok)
	assert.Equal(t, "doc.md", active.DocumentPath)
	assert.Equal(t, "sec-1", active.SectionID)
	assert.Empty(t, sink.all())
}

func TestStartReadingSameTargetIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	tr, clock := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	started, _ := tr.Active()

	// Re-render storms repeat the same transition.
	clock.Advance(2 * time.Second)
	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))

	active, ok := tr.Active()
	require.True(t, ok)
	assert.Equal(t, started.StartedAt, active.StartedAt, "original start time must survive")
	assert.Empty(t, sink.all(), "no event until the session ends")
}

func TestStartReadingNewTargetEndsPreviousSession(t *testing.T) {
	sink := &recordingSink{}
	tr, clock := newTestTracker(sink, staticMeta{category: "science", wordCount: 300})
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	clock.Advance(5 * time.Second)
	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-2"))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, "sec-1", events[0].SectionID)
	assert.Equal(t, int64(5000), events[0].DurationMs)
	assert.Equal(t, "science", events[0].Category)
	assert.Equal(t, 300, events[0].WordCount)

	active, ok := tr.Active()
	require.True(t, ok)
	assert.Equal(t, "sec-2", active.SectionID)
}

func TestEndReadingEmitsEvent(t *testing.T) {
	sink := &recordingSink{}
	tr, clock := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "science/physics.md", "sec-1"))
	clock.Advance(90 * time.Second)
	require.NoError(t, tr.EndReading(ctx))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, int64(90000), events[0].DurationMs)
	assert.Equal(t, "science", events[0].Category, "category derives from path without metadata")
	assert.NotEmpty(t, events[0].ID)

	_, ok := tr.Active()
	assert.False(t, ok)
}

func TestEndReadingWhenIdleIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	tr, _ := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.EndReading(ctx))

	// Cleanup path and explicit exit can both fire.
	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	require.NoError(t, tr.EndReading(ctx))
	require.NoError(t, tr.EndReading(ctx))

	assert.Len(t, sink.all(), 1)
}

func TestFailedPersistDropsEventAndResetsState(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	tr, clock := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	clock.Advance(time.Second)

	err := tr.EndReading(ctx)
	require.Error(t, err)

	// State machine is not wedged; the event is simply lost.
	_, ok := tr.Active()
	assert.False(t, ok)
	require.NoError(t, tr.EndReading(ctx))
}

func TestFailedPersistStillOpensNewSession(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	tr, clock := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	clock.Advance(time.Second)

	err := tr.StartReading(ctx, "doc.md", "sec-2")
	require.Error(t, err, "the lost event is reported")

	active, ok := tr.Active()
	require.True(t, ok)
	assert.Equal(t, "sec-2", active.SectionID, "new session opens regardless")
}

func TestCloseFlushesActiveSession(t *testing.T) {
	sink := &recordingSink{}
	tr, clock := newTestTracker(sink, nil)
	ctx := context.Background()

	require.NoError(t, tr.StartReading(ctx, "doc.md", "sec-1"))
	clock.Advance(3 * time.Second)

	tr.Close()

	// The teardown write is fire-and-forget.
	require.Eventually(t, func() bool {
		return len(sink.all()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3000), sink.all()[0].DurationMs)

	_, ok := tr.Active()
	assert.False(t, ok)
}

func TestCloseWhenIdleIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	tr, _ := newTestTracker(sink, nil)

	tr.Close()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.all())
}
