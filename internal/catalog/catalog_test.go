package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pagemark/pagemark-server/internal/catalog"
	"github.com/pagemark/pagemark-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestCatalogLoadsManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "physics.json", `{
		"path": "science/physics.md",
		"title": "Physics",
		"sections": [
			{"id": "sec-1", "title": "Mechanics", "word_count": 300},
			{"id": "sec-2", "title": "Optics", "word_count": 150}
		]
	}`)
	writeManifest(t, dir, "history.json", `{
		"path": "history/rome.md",
		"title": "Rome",
		"category": "antiquity",
		"sections": [{"id": "sec-1", "word_count": 500}]
	}`)

	c, err := catalog.New(dir, nil)
	require.NoError(t, err)

	doc, ok := c.Get("science/physics.md")
	require.True(t, ok)
	assert.Equal(t, "Physics", doc.Title)
	assert.Equal(t, 2, doc.TotalSections())
	assert.Equal(t, "science", doc.Category, "category defaults from path")

	rome, ok := c.Get("history/rome.md")
	require.True(t, ok)
	assert.Equal(t, "antiquity", rome.Category, "explicit category wins")
}

func TestCatalogSkipsBadManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.json", `{"path": "doc.md", "title": "Doc", "sections": []}`)
	writeManifest(t, dir, "broken.json", `{not json`)
	writeManifest(t, dir, "no-path.json", `{"title": "Missing path"}`)
	writeManifest(t, dir, "notes.txt", "not a manifest")

	c, err := catalog.New(dir, nil)
	require.NoError(t, err)

	docs := c.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "doc.md", docs[0].Path)
}

func TestCatalogDocumentsOrderedByPath(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "c.json", `{"path": "c.md", "title": "C", "sections": []}`)
	writeManifest(t, dir, "a.json", `{"path": "a.md", "title": "A", "sections": []}`)
	writeManifest(t, dir, "b.json", `{"path": "b.md", "title": "B", "sections": []}`)

	c, err := catalog.New(dir, nil)
	require.NoError(t, err)

	docs := c.Documents()
	require.Len(t, docs, 3)
	assert.Equal(t, "a.md", docs[0].Path)
	assert.Equal(t, "b.md", docs[1].Path)
	assert.Equal(t, "c.md", docs[2].Path)
}

func TestSectionMetadata(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "physics.json", `{
		"path": "science/physics.md",
		"title": "Physics",
		"sections": [{"id": "sec-1", "word_count": 300}]
	}`)

	c, err := catalog.New(dir, nil)
	require.NoError(t, err)

	category, words := c.SectionMetadata("science/physics.md", "sec-1")
	assert.Equal(t, "science", category)
	assert.Equal(t, 300, words)

	// Unknown section of a known document.
	_, words = c.SectionMetadata("science/physics.md", "sec-9")
	assert.Zero(t, words)

	// Unknown document falls back to path-derived category.
	category, words = c.SectionMetadata("guides/setup.md", "sec-1")
	assert.Equal(t, "guides", category)
	assert.Zero(t, words)

	category, _ = c.SectionMetadata("orphan.md", "sec-1")
	assert.Equal(t, domain.DefaultCategory, category)
}

func TestReloadPicksUpChanges(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.json", `{"path": "a.md", "title": "A", "sections": []}`)

	c, err := catalog.New(dir, nil)
	require.NoError(t, err)
	require.Len(t, c.Documents(), 1)

	writeManifest(t, dir, "b.json", `{"path": "b.md", "title": "B", "sections": []}`)
	require.NoError(t, c.Reload())
	assert.Len(t, c.Documents(), 2)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.json")))
	require.NoError(t, c.Reload())

	docs := c.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "b.md", docs[0].Path)
}
