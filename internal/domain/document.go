package domain

import "strings"

// Section is a user-addressable subdivision of a document, supplied by
// the external document source. The tracker never parses documents
// itself; it only consumes these tuples.
type Section struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	WordCount int    `json:"word_count"`
}

// Document is the metadata for one tracked document.
type Document struct {
	Path     string    `json:"path"`
	Title    string    `json:"title"`
	Category string    `json:"category,omitempty"`
	Sections []Section `json:"sections"`
}

// TotalSections returns the number of sections in the document.
func (d *Document) TotalSections() int {
	return len(d.Sections)
}

// SectionWordCount returns the word count for a section, or 0 if the
// section is unknown.
func (d *Document) SectionWordCount(sectionID string) int {
	for _, s := range d.Sections {
		if s.ID == sectionID {
			return s.WordCount
		}
	}
	return 0
}

// HasSection reports whether the document contains the given section.
func (d *Document) HasSection(sectionID string) bool {
	for _, s := range d.Sections {
		if s.ID == sectionID {
			return true
		}
	}
	return false
}

// WordCountOverrides returns a sectionID -> word count map for analytics
// calls that need to substitute counts for events recorded before the
// section had a known word count.
func (d *Document) WordCountOverrides() map[string]int {
	overrides := make(map[string]int, len(d.Sections))
	for _, s := range d.Sections {
		if s.WordCount > 0 {
			overrides[s.ID] = s.WordCount
		}
	}
	return overrides
}

// DefaultCategory is used when a document path has no category segment.
const DefaultCategory = "uncategorized"

// CategoryForPath derives the coarse category from a document path:
// the first path segment ("guides/setup.md" -> "guides"). Documents at
// the root fall back to DefaultCategory.
func CategoryForPath(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return DefaultCategory
}

// EffectiveCategory returns the document's explicit category if set,
// otherwise the category derived from its path.
func (d *Document) EffectiveCategory() string {
	if d.Category != "" {
		return d.Category
	}
	return CategoryForPath(d.Path)
}
