package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryForPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"nested path", "science/physics.md", "science"},
		{"deeply nested", "guides/setup/linux.md", "guides"},
		{"leading slash", "/science/physics.md", "science"},
		{"root document", "readme.md", DefaultCategory},
		{"empty path", "", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryForPath(tt.path))
		})
	}
}

func TestDocumentSectionHelpers(t *testing.T) {
	doc := &Document{
		Path:  "science/physics.md",
		Title: "Physics",
		Sections: []Section{
			{ID: "sec-1", WordCount: 300},
			{ID: "sec-2", WordCount: 0},
			{ID: "sec-3", WordCount: 150},
		},
	}

	assert.Equal(t, 3, doc.TotalSections())
	assert.True(t, doc.HasSection("sec-2"))
	assert.False(t, doc.HasSection("sec-9"))
	assert.Equal(t, 300, doc.SectionWordCount("sec-1"))
	assert.Zero(t, doc.SectionWordCount("sec-9"))

	// Only sections with known counts appear as overrides.
	overrides := doc.WordCountOverrides()
	assert.Len(t, overrides, 2)
	assert.Equal(t, 150, overrides["sec-3"])
	assert.NotContains(t, overrides, "sec-2")
}

func TestEffectiveCategory(t *testing.T) {
	explicit := &Document{Path: "science/physics.md", Category: "textbooks"}
	assert.Equal(t, "textbooks", explicit.EffectiveCategory())

	derived := &Document{Path: "science/physics.md"}
	assert.Equal(t, "science", derived.EffectiveCategory())
}
