// Package catalog supplies document and section metadata to the
// tracking subsystem. Documents arrive as JSON manifests produced by
// the external parsing pipeline; the catalog never parses source
// documents itself. Manifests are hot-reloaded when their directory
// changes.
package catalog

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pagemark/pagemark-server/internal/domain"
)

// Catalog holds the current set of known documents, keyed by document
// path. All reads are served from an in-memory snapshot.
type Catalog struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	docs map[string]*domain.Document

	watcher *fsnotify.Watcher
}

// New creates a catalog over a directory of *.json manifests and
// performs the initial load.
func New(dir string, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		dir:    dir,
		logger: logger,
		docs:   make(map[string]*domain.Document),
	}

	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the document set from the manifest directory.
// Unreadable or malformed manifests are skipped with a warning so one
// bad file never hides the rest of the catalog.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read catalog dir %s: %w", c.dir, err)
	}

	docs := make(map[string]*domain.Document)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(c.dir, entry.Name())
		doc, err := loadManifest(path)
		if err != nil {
			if c.logger != nil {
				c.logger.Warn("skipping unreadable manifest", "path", path, "error", err)
			}
			continue
		}
		docs[doc.Path] = doc
	}

	c.mu.Lock()
	c.docs = docs
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("catalog loaded", "documents", len(docs))
	}
	return nil
}

// loadManifest reads one document manifest.
func loadManifest(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- manifest paths come from the configured catalog dir
	if err != nil {
		return nil, err
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if doc.Path == "" {
		return nil, fmt.Errorf("manifest %s has no document path", filepath.Base(path))
	}
	if doc.Category == "" {
		doc.Category = domain.CategoryForPath(doc.Path)
	}
	return &doc, nil
}

// Get returns the document for a path.
func (c *Catalog) Get(documentPath string) (*domain.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[documentPath]
	return doc, ok
}

// Documents returns all known documents ordered by path. The ordering
// makes downstream tie-breaking deterministic.
func (c *Catalog) Documents() []*domain.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	docs := make([]*domain.Document, 0, len(c.docs))
	for _, doc := range c.docs {
		docs = append(docs, doc)
	}
	slices.SortFunc(docs, func(a, b *domain.Document) int {
		return strings.Compare(a.Path, b.Path)
	})
	return docs
}

// SectionMetadata resolves the category and word count for a section.
// Unknown documents fall back to a path-derived category and zero word
// count, so tracking keeps working for documents the catalog has not
// seen yet.
func (c *Catalog) SectionMetadata(documentPath, sectionID string) (string, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[documentPath]
	if !ok {
		return domain.CategoryForPath(documentPath), 0
	}
	return doc.EffectiveCategory(), doc.SectionWordCount(sectionID)
}

// Watch starts the manifest directory watcher and blocks until ctx is
// done. Any create/write/remove in the directory triggers a full
// reload; manifests are small enough that diffing is not worth it.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	c.watcher = watcher

	if err := watcher.Add(c.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}

	if c.logger != nil {
		c.logger.Info("watching catalog directory", "dir", c.dir)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := c.Reload(); err != nil && c.logger != nil {
				c.logger.Warn("catalog reload failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if c.logger != nil {
				c.logger.Warn("catalog watcher error", "error", err)
			}
		case <-ctx.Done():
			return watcher.Close()
		}
	}
}
