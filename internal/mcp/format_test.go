package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/ragstore/internal/search"
	"github.com/Aman-CERP/ragstore/internal/store"
)

func TestFormatSearchResults_Basic(t *testing.T) {
	// Given: one result with metadata and a highlight
	results := []search.Result{
		{
			Document: &store.Document{
				ID:       "chunk-1",
				SourceID: "src-1",
				Content:  "The quick brown fox jumps over the lazy dog.",
				Metadata: store.Metadata{"lang": "en", "author": "ann"},
			},
			Score:         0.95,
			SemanticScore: 0.9,
			KeywordScore:  1,
			Highlights:    []string{"The quick brown fox jumps over the lazy dog"},
		},
	}

	// When: formatting results
	markdown := FormatSearchResults("fox", results)

	// Then: markdown contains expected elements
	assert.Contains(t, markdown, "## Search Results")
	assert.Contains(t, markdown, `"fox"`)
	assert.Contains(t, markdown, "Found 1 result\n")
	assert.Contains(t, markdown, "### 1. chunk-1 (score: 0.95)")
	assert.Contains(t, markdown, "semantic 0.90")
	assert.Contains(t, markdown, "keyword 1.00")
	assert.Contains(t, markdown, "source `src-1`")
	assert.Contains(t, markdown, "**Metadata:** `author=ann`, `lang=en`")
	assert.Contains(t, markdown, "> The quick brown fox")
	assert.Contains(t, markdown, "```\nThe quick brown fox")
}

func TestFormatSearchResults_MultipleResults_Numbered(t *testing.T) {
	// Given: multiple results
	results := []search.Result{
		{Document: &store.Document{ID: "a", Content: "first"}, Score: 0.9},
		{Document: &store.Document{ID: "b", Content: "second"}, Score: 0.5},
	}

	// When: formatting results
	markdown := FormatSearchResults("q", results)

	// Then: both are listed in order
	assert.Contains(t, markdown, "Found 2 results")
	first := strings.Index(markdown, "### 1. a")
	second := strings.Index(markdown, "### 2. b")
	assert.True(t, first >= 0 && second > first)
}

func TestFormatSearchResults_Empty(t *testing.T) {
	// Given: no results
	// When: formatting
	markdown := FormatSearchResults("nothing", nil)

	// Then: a graceful message is returned
	assert.Equal(t, `No results found for "nothing"`, markdown)
}

func TestFormatSearchResults_SkipsNilDocuments(t *testing.T) {
	// Given: a result without a document
	results := []search.Result{
		{Document: nil, Score: 1},
		{Document: &store.Document{ID: "ok", Content: "kept"}, Score: 0.4},
	}

	// When: formatting
	markdown := FormatSearchResults("q", results)

	// Then: only the valid result is shown
	assert.Contains(t, markdown, "Found 1 result")
	assert.Contains(t, markdown, "### 1. ok")
}

func TestFormatSearchResults_LongContent_Truncated(t *testing.T) {
	// Given: content longer than the preview limit
	long := strings.Repeat("é", maxPreviewLength+50)
	results := []search.Result{{Document: &store.Document{ID: "x", Content: long}, Score: 1}}

	// When: formatting
	markdown := FormatSearchResults("q", results)

	// Then: the preview is cut on a rune boundary
	assert.Contains(t, markdown, strings.Repeat("é", maxPreviewLength)+"...")
	assert.NotContains(t, markdown, strings.Repeat("é", maxPreviewLength+1))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero uses default", 0, 5},
		{"negative uses default", -3, 5},
		{"within range", 7, 7},
		{"above max", 500, 50},
		{"at min", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clampLimit(tt.limit, 5, 1, 50))
		})
	}
}
