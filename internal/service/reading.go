package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/pagemark/pagemark-server/internal/catalog"
	"github.com/pagemark/pagemark-server/internal/domain"
	"github.com/pagemark/pagemark-server/internal/store"
)

// MostReadMetric selects how MostRead counts a document's activity.
type MostReadMetric string

// MostRead metrics.
const (
	// MetricSections counts distinct read sections per document.
	MetricSections MostReadMetric = "sections"
	// MetricEvents counts total reading events per document.
	MetricEvents MostReadMetric = "events"
)

// ReadingService serves read-state and completion queries. Every call
// is a pure read against the store's current snapshot, so polling
// callers accumulate no state and leak no timers here.
type ReadingService struct {
	store   *store.Store
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewReadingService creates a new reading service.
func NewReadingService(store *store.Store, catalog *catalog.Catalog, logger *slog.Logger) *ReadingService {
	return &ReadingService{
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

// Ready reports whether the store's startup load has completed.
// Results served before readiness are conservative empties.
func (s *ReadingService) Ready() bool {
	return s.store.Ready()
}

// ReadSections returns the set of section IDs with at least one
// reading event for the document. Before the store is ready it returns
// an empty set rather than blocking.
func (s *ReadingService) ReadSections(ctx context.Context, documentPath string) (map[string]bool, error) {
	sections, err := s.store.ReadSections(ctx, documentPath)
	if errors.Is(err, store.ErrNotReady) {
		s.logger.Debug("read-state requested before init", "document_path", documentPath)
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load read sections: %w", err)
	}
	return sections, nil
}

// IsSectionRead reports whether the section has at least one event.
func (s *ReadingService) IsSectionRead(ctx context.Context, documentPath, sectionID string) (bool, error) {
	sections, err := s.ReadSections(ctx, documentPath)
	if err != nil {
		return false, err
	}
	return sections[sectionID], nil
}

// CompletionPercentage returns the fraction of totalSections with at
// least one event, in [0, 100], unrounded. totalSections == 0 yields 0.
// Sections unknown to the catalog's copy of the document do not count,
// so stale events for removed sections cannot push completion past the
// document's real size.
func (s *ReadingService) CompletionPercentage(ctx context.Context, documentPath string, totalSections int) (float64, error) {
	if totalSections <= 0 {
		return 0, nil
	}

	readSections, err := s.ReadSections(ctx, documentPath)
	if err != nil {
		return 0, err
	}

	count := 0
	if doc, ok := s.catalog.Get(documentPath); ok {
		for sectionID := range readSections {
			if doc.HasSection(sectionID) {
				count++
			}
		}
	} else {
		count = len(readSections)
	}

	pct := 100 * float64(count) / float64(totalSections)
	if pct > 100 {
		pct = 100
	}
	return pct, nil
}

// DocumentCompletion is CompletionPercentage with the section count
// taken from the catalog.
func (s *ReadingService) DocumentCompletion(ctx context.Context, documentPath string) (float64, error) {
	doc, ok := s.catalog.Get(documentPath)
	if !ok {
		return 0, nil
	}
	return s.CompletionPercentage(ctx, documentPath, doc.TotalSections())
}

// MostRead returns the document with the highest read count under the
// given metric. Candidates come from the event log itself, so documents
// the catalog has never seen still compete; the catalog only supplies
// titles. Paths are visited in lexicographic order and ties keep the
// earliest, so the answer is deterministic. The sentinel zero value is
// returned when nothing has been read.
func (s *ReadingService) MostRead(ctx context.Context, metric MostReadMetric) (domain.MostRead, error) {
	events, err := s.store.AllEvents(ctx)
	if errors.Is(err, store.ErrNotReady) {
		return domain.MostRead{}, nil
	}
	if err != nil {
		return domain.MostRead{}, fmt.Errorf("load events: %w", err)
	}

	counts := make(map[string]int)
	seen := make(map[string]map[string]bool)
	for _, e := range events {
		switch metric {
		case MetricEvents:
			counts[e.DocumentPath]++
		default:
			sections := seen[e.DocumentPath]
			if sections == nil {
				sections = make(map[string]bool)
				seen[e.DocumentPath] = sections
			}
			if !sections[e.SectionID] {
				sections[e.SectionID] = true
				counts[e.DocumentPath]++
			}
		}
	}

	paths := make([]string, 0, len(counts))
	for path := range counts {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	var best domain.MostRead
	for _, path := range paths {
		if counts[path] > best.Count {
			title := path
			if doc, ok := s.catalog.Get(path); ok {
				title = doc.Title
			}
			best = domain.MostRead{
				Path:  path,
				Title: title,
				Count: counts[path],
			}
		}
	}

	return best, nil
}
