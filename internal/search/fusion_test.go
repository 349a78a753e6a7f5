package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragstore/internal/store"
)

// =============================================================================
// Keyword normalization
// =============================================================================

func TestNormalizeKeywordScores_NegativeBM25(t *testing.T) {
	// Given: FTS5-style scores where lower is better
	hits := []store.KeywordHit{{ID: "a", Score: -4}, {ID: "b", Score: -2}, {ID: "c", Score: -1}}

	// When: normalizing
	scores := NormalizeKeywordScores(hits)

	// Then: the best match is ~1 and the rest scale by magnitude
	assert.InDelta(t, 1.0, scores["a"], 1e-6)
	assert.InDelta(t, 0.5, scores["b"], 1e-6)
	assert.InDelta(t, 0.25, scores["c"], 1e-6)
}

func TestNormalizeKeywordScores_PositiveScores(t *testing.T) {
	scores := NormalizeKeywordScores([]store.KeywordHit{{ID: "a", Score: 3}, {ID: "b", Score: 1.5}})

	assert.InDelta(t, 1.0, scores["a"], 1e-6)
	assert.InDelta(t, 0.5, scores["b"], 1e-6)
}

func TestNormalizeKeywordScores_EdgeCases(t *testing.T) {
	assert.Nil(t, NormalizeKeywordScores(nil))

	zeros := NormalizeKeywordScores([]store.KeywordHit{{ID: "a", Score: 0}})
	assert.Equal(t, 0.0, zeros["a"])
}

// =============================================================================
// Fusion
// =============================================================================

func TestFuse_AdditiveUnion(t *testing.T) {
	// Given: semantic [A, B] and keyword [B, C]
	semantic := []store.Hit{{ID: "A", Score: 0.9}, {ID: "B", Score: 0.5}}
	keyword := []store.KeywordHit{{ID: "B", Score: -2}, {ID: "C", Score: -1}}

	// When: fusing at alpha 0.5
	fused := Fuse(semantic, keyword, 0.5)

	// Then: every id appears once with the missing leg scoring 0
	require.Len(t, fused, 3)
	byID := map[string]*FusedResult{}
	for _, f := range fused {
		byID[f.ID] = f
	}
	assert.InDelta(t, 0.45, byID["A"].Score, 1e-6)
	assert.InDelta(t, 0.5*0.5+0.5*1.0, byID["B"].Score, 1e-6)
	assert.InDelta(t, 0.25, byID["C"].Score, 1e-6)
	assert.Equal(t, 0.0, byID["A"].Keyword)
	assert.Equal(t, 0.0, byID["C"].Semantic)

	// And: ordered by combined score
	assert.Equal(t, []string{"B", "A", "C"}, fusedIDs(fused))
}

func TestFuse_StableOnTies(t *testing.T) {
	// Given: all candidates tie at zero combined score
	semantic := []store.Hit{{ID: "s1", Score: 0}, {ID: "s2", Score: 0}}
	keyword := []store.KeywordHit{{ID: "k1", Score: 0}, {ID: "k2", Score: 0}}

	fused := Fuse(semantic, keyword, 0.5)

	// Then: semantic order first, then keyword order
	assert.Equal(t, []string{"s1", "s2", "k1", "k2"}, fusedIDs(fused))
}

func TestFuse_AlphaExtremes(t *testing.T) {
	semantic := []store.Hit{{ID: "A", Score: 0.2}}
	keyword := []store.KeywordHit{{ID: "B", Score: -3}}

	pureSemantic := Fuse(semantic, keyword, 1)
	pureKeyword := Fuse(semantic, keyword, 0)

	assert.Equal(t, []string{"A", "B"}, fusedIDs(pureSemantic))
	assert.Equal(t, []string{"B", "A"}, fusedIDs(pureKeyword))
}

func TestFuse_Empty(t *testing.T) {
	fused := Fuse(nil, nil, 0.7)

	assert.NotNil(t, fused)
	assert.Empty(t, fused)
}

func fusedIDs(fused []*FusedResult) []string {
	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
	}
	return ids
}

// =============================================================================
// Metadata filter
// =============================================================================

func TestMatchesFilter(t *testing.T) {
	meta := store.Metadata{"lang": "en", "page": float64(2), "tags": []any{"a", "b"}}

	tests := []struct {
		name   string
		filter map[string]any
		want   bool
	}{
		{"nil filter", nil, true},
		{"string match", map[string]any{"lang": "en"}, true},
		{"int matches stored float", map[string]any{"page": 2}, true},
		{"slice match", map[string]any{"tags": []string{"a", "b"}}, true},
		{"value differs", map[string]any{"lang": "de"}, false},
		{"missing key", map[string]any{"author": "x"}, false},
		{"all keys must match", map[string]any{"lang": "en", "page": 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesFilter(meta, tt.filter))
		})
	}
}

// =============================================================================
// Highlights
// =============================================================================

func TestExtractHighlights(t *testing.T) {
	content := "The fox ran. A dog barked! Was it the FOX? Birds sang. Fox again. And fox once more."

	highlights := extractHighlights(content, []string{"fox"})

	assert.Equal(t, []string{"The fox ran", "Was it the FOX", "Fox again"}, highlights)
}

func TestExtractHighlights_TruncatesLongSentences(t *testing.T) {
	long := "fox " + strings.Repeat("x", 300)

	highlights := extractHighlights(long, []string{"fox"})

	require.Len(t, highlights, 1)
	assert.Len(t, []rune(highlights[0]), maxHighlightLength+3)
	assert.True(t, strings.HasSuffix(highlights[0], "..."))
}

func TestExtractHighlights_NoMatch(t *testing.T) {
	assert.Empty(t, extractHighlights("Nothing relevant here.", []string{"fox"}))
	assert.Empty(t, extractHighlights("fox", nil))
}
