package service_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagemark/pagemark-server/internal/catalog"
	"github.com/pagemark/pagemark-server/internal/domain"
	"github.com/pagemark/pagemark-server/internal/offload"
	"github.com/pagemark/pagemark-server/internal/service"
	"github.com/pagemark/pagemark-server/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	store    *store.Store
	catalog  *catalog.Catalog
	bridge   *offload.Bridge
	tracking *service.TrackingService
	reading  *service.ReadingService
	stats    *service.StatsService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbDir, err := os.MkdirTemp("", "service-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dbDir) })

	s, err := store.New(filepath.Join(dbDir, "db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })

	manifestDir := t.TempDir()
	writeManifest(t, manifestDir, "physics.json", `{
		"path": "science/physics.md",
		"title": "Physics",
		"sections": [
			{"id": "sec-1", "word_count": 300},
			{"id": "sec-2", "word_count": 200},
			{"id": "sec-3", "word_count": 100},
			{"id": "sec-4", "word_count": 400}
		]
	}`)
	writeManifest(t, manifestDir, "rome.json", `{
		"path": "history/rome.md",
		"title": "Rome",
		"sections": [
			{"id": "sec-1", "word_count": 500},
			{"id": "sec-2", "word_count": 250}
		]
	}`)

	c, err := catalog.New(manifestDir, nil)
	require.NoError(t, err)

	bridge := offload.New(nil)
	bridge.Start()
	t.Cleanup(bridge.Stop)

	return &testEnv{
		store:    s,
		catalog:  c,
		bridge:   bridge,
		tracking: service.NewTrackingService(s, c, discardLogger()),
		reading:  service.NewReadingService(s, c, discardLogger()),
		stats:    service.NewStatsService(s, c, bridge, discardLogger()),
	}
}

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func appendEvent(t *testing.T, s *store.Store, id, docPath, sectionID string, startedAt time.Time, durationMs int64, words int) {
	t.Helper()
	require.NoError(t, s.AppendEvent(context.Background(), &domain.ReadingEvent{
		ID:           id,
		DocumentPath: docPath,
		SectionID:    sectionID,
		Category:     domain.CategoryForPath(docPath),
		StartedAt:    startedAt,
		EndedAt:      startedAt.Add(time.Duration(durationMs) * time.Millisecond),
		DurationMs:   durationMs,
		WordCount:    words,
		CreatedAt:    time.Now(),
	}))
}

func TestStartReadingValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	err := env.tracking.StartReading(ctx, service.StartReadingRequest{
		DocumentPath: "doc.md",
		SectionID:    "sec-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surface_id")

	err = env.tracking.StartReading(ctx, service.StartReadingRequest{
		SurfaceID: "surface-1",
		SectionID: "sec-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document_path")
}

func TestTrackingFlowRecordsEvents(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tracking.StartReading(ctx, service.StartReadingRequest{
		SurfaceID:    "surface-1",
		DocumentPath: "science/physics.md",
		SectionID:    "sec-1",
	}))

	// Switching sections closes the first session.
	require.NoError(t, env.tracking.StartReading(ctx, service.StartReadingRequest{
		SurfaceID:    "surface-1",
		DocumentPath: "science/physics.md",
		SectionID:    "sec-2",
	}))

	require.NoError(t, env.tracking.EndReading(ctx, service.EndReadingRequest{SurfaceID: "surface-1"}))

	events, err := env.store.AllEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "sec-1", events[0].SectionID)
	assert.Equal(t, "sec-2", events[1].SectionID)
	assert.Equal(t, "science", events[0].Category)
	assert.Equal(t, 300, events[0].WordCount, "word count resolved from catalog")
}

func TestSurfacesAreIndependent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.tracking.StartReading(ctx, service.StartReadingRequest{
		SurfaceID:    "surface-1",
		DocumentPath: "science/physics.md",
		SectionID:    "sec-1",
	}))
	require.NoError(t, env.tracking.StartReading(ctx, service.StartReadingRequest{
		SurfaceID:    "surface-2",
		DocumentPath: "history/rome.md",
		SectionID:    "sec-1",
	}))

	// Ending one surface leaves the other's session open.
	require.NoError(t, env.tracking.EndReading(ctx, service.EndReadingRequest{SurfaceID: "surface-1"}))

	events, err := env.store.AllEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "science/physics.md", events[0].DocumentPath)
}

func TestEndReadingUnknownSurfaceIsNoOp(t *testing.T) {
	env := setupTestEnv(t)

	require.NoError(t, env.tracking.EndReading(context.Background(), service.EndReadingRequest{
		SurfaceID: "never-seen",
	}))
}

func TestCompletionPercentage(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	// 2 of 4 sections read, one of them twice.
	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-2", "science/physics.md", "sec-2", now, 1000, 0)
	appendEvent(t, env.store, "revt-3", "science/physics.md", "sec-1", now, 1000, 0)

	pct, err := env.reading.DocumentCompletion(ctx, "science/physics.md")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, pct, 0.001)
}

func TestCompletionPercentageZeroSections(t *testing.T) {
	env := setupTestEnv(t)

	pct, err := env.reading.CompletionPercentage(context.Background(), "science/physics.md", 0)
	require.NoError(t, err)
	assert.Zero(t, pct)
}

func TestCompletionIgnoresStaleSections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	// sec-gone no longer exists in the manifest.
	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-2", "science/physics.md", "sec-gone", now, 1000, 0)

	pct, err := env.reading.DocumentCompletion(ctx, "science/physics.md")
	require.NoError(t, err)
	assert.InDelta(t, 25.0, pct, 0.001)
}

func TestMostReadSentinelWhenEmpty(t *testing.T) {
	env := setupTestEnv(t)

	mostRead, err := env.reading.MostRead(context.Background(), service.MetricSections)
	require.NoError(t, err)
	assert.Empty(t, mostRead.Path)
	assert.Zero(t, mostRead.Count)
}

func TestMostReadByDistinctSections(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	// physics: 2 distinct sections across 3 events. rome: 1 section.
	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-2", "science/physics.md", "sec-2", now, 1000, 0)
	appendEvent(t, env.store, "revt-3", "science/physics.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-4", "history/rome.md", "sec-1", now, 1000, 0)

	mostRead, err := env.reading.MostRead(ctx, service.MetricSections)
	require.NoError(t, err)
	assert.Equal(t, "science/physics.md", mostRead.Path)
	assert.Equal(t, "Physics", mostRead.Title)
	assert.Equal(t, 2, mostRead.Count)
}

func TestMostReadTieKeepsEarliestPath(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-2", "history/rome.md", "sec-1", now, 1000, 0)

	mostRead, err := env.reading.MostRead(ctx, service.MetricSections)
	require.NoError(t, err)
	// "history/rome.md" < "science/physics.md" lexicographically.
	assert.Equal(t, "history/rome.md", mostRead.Path)
}

func TestMostReadByEventCount(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	// rome wins on events despite fewer distinct sections.
	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-2", "science/physics.md", "sec-2", now, 1000, 0)
	appendEvent(t, env.store, "revt-3", "history/rome.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-4", "history/rome.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-5", "history/rome.md", "sec-1", now, 1000, 0)

	mostRead, err := env.reading.MostRead(ctx, service.MetricEvents)
	require.NoError(t, err)
	assert.Equal(t, "history/rome.md", mostRead.Path)
	assert.Equal(t, 3, mostRead.Count)
}

func TestMostReadIncludesUncatalogedDocuments(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	// notes/scratch.md has no manifest but out-reads every catalog doc.
	appendEvent(t, env.store, "revt-1", "notes/scratch.md", "sec-1", now, 1000, 0)
	appendEvent(t, env.store, "revt-2", "notes/scratch.md", "sec-2", now, 1000, 0)
	appendEvent(t, env.store, "revt-3", "notes/scratch.md", "sec-3", now, 1000, 0)
	appendEvent(t, env.store, "revt-4", "science/physics.md", "sec-1", now, 1000, 0)

	mostRead, err := env.reading.MostRead(ctx, service.MetricSections)
	require.NoError(t, err)
	assert.Equal(t, "notes/scratch.md", mostRead.Path)
	// No manifest, so the path stands in for the title.
	assert.Equal(t, "notes/scratch.md", mostRead.Title)
	assert.Equal(t, 3, mostRead.Count)
}

func TestStatsOnEmptyLog(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	words, err := env.stats.TotalWordsRead(ctx)
	require.NoError(t, err)
	assert.Zero(t, words)

	wpm, err := env.stats.ReadingSpeed(ctx)
	require.NoError(t, err)
	assert.Zero(t, wpm)

	daily, err := env.stats.DailyReadingStats(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, daily, 7)

	categories, err := env.stats.CategoryStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestStatsAggregation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 60000, 300)
	appendEvent(t, env.store, "revt-2", "science/physics.md", "sec-2", now, 30000, 0)
	appendEvent(t, env.store, "revt-3", "history/rome.md", "sec-1", now, 10000, 500)

	words, err := env.stats.TotalWordsRead(ctx)
	require.NoError(t, err)
	// The zero-count event picks up sec-2's catalog word count.
	assert.Equal(t, 1000, words)

	ms, err := env.stats.TimeSpentOnDay(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), ms)

	categories, err := env.stats.CategoryStats(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, 2, categories["science"].SessionCount)
	assert.Equal(t, int64(45000), categories["science"].AverageSessionMs)
}

func TestSummary(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now()

	appendEvent(t, env.store, "revt-1", "science/physics.md", "sec-1", now, 60000, 300)
	appendEvent(t, env.store, "revt-2", "science/physics.md", "sec-2", now, 60000, 200)

	summary, err := env.stats.Summary(ctx, 7, env.reading)
	require.NoError(t, err)

	assert.Equal(t, int64(120000), summary.TotalTimeMs)
	assert.Equal(t, 500, summary.TotalWords)
	assert.InDelta(t, 250.0, summary.WordsPerMinute, 0.001)
	assert.Equal(t, 2, summary.EventCount)
	assert.Len(t, summary.Daily, 7)
	require.Len(t, summary.Categories, 1)
	assert.Equal(t, "science", summary.Categories[0].Category)
	assert.Equal(t, "science/physics.md", summary.MostRead.Path)
	assert.Equal(t, int64(120000), summary.TimeSpentToday)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestQueriesBeforeInitServeEmptyResults(t *testing.T) {
	dbDir, err := os.MkdirTemp("", "service-notready-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dbDir) })

	s, err := store.New(filepath.Join(dbDir, "db"), nil, store.NewNoopEmitter())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	manifestDir := t.TempDir()
	writeManifest(t, manifestDir, "physics.json", `{
		"path": "science/physics.md",
		"title": "Physics",
		"sections": [{"id": "sec-1", "word_count": 300}]
	}`)
	c, err := catalog.New(manifestDir, nil)
	require.NoError(t, err)

	bridge := offload.New(nil)
	reading := service.NewReadingService(s, c, discardLogger())
	stats := service.NewStatsService(s, c, bridge, discardLogger())

	ctx := context.Background()

	assert.False(t, reading.Ready())

	sections, err := reading.ReadSections(ctx, "science/physics.md")
	require.NoError(t, err)
	assert.Empty(t, sections)

	pct, err := reading.DocumentCompletion(ctx, "science/physics.md")
	require.NoError(t, err)
	assert.Zero(t, pct)

	words, err := stats.TotalWordsRead(ctx)
	require.NoError(t, err)
	assert.Zero(t, words)

	require.NoError(t, s.Init(ctx))
	assert.True(t, reading.Ready())
}
