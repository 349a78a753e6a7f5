package search

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/ragstore/internal/store"
)

// FusedResult is a candidate after linear fusion, before hydration.
type FusedResult struct {
	ID       string
	Score    float64 // alpha*Semantic + (1-alpha)*Keyword
	Semantic float64 // Cosine similarity, 0 if absent from the vector leg
	Keyword  float64 // Normalized keyword score, 0 if absent from the keyword leg
}

// NormalizeKeywordScores maps raw keyword scores onto [0,1] by dividing
// each magnitude by the largest magnitude. FTS5 bm25() scores are negative
// with lower being better, so the best match normalizes to ~1 either way.
func NormalizeKeywordScores(hits []store.KeywordHit) map[string]float64 {
	if len(hits) == 0 {
		return nil
	}
	maxAbs := 0.0
	for _, h := range hits {
		maxAbs = max(maxAbs, math.Abs(h.Score))
	}
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		scores[h.ID] = math.Abs(h.Score) / (maxAbs + keywordEpsilon)
	}
	return scores
}

// Fuse combines semantic and keyword candidates into one list ordered by
// combined score. Candidates present in only one leg score 0 in the other.
// The sort is stable: ties keep semantic order, then keyword order.
func Fuse(semantic []store.Hit, keyword []store.KeywordHit, alpha float64) []*FusedResult {
	if len(semantic) == 0 && len(keyword) == 0 {
		return []*FusedResult{}
	}

	byID := make(map[string]*FusedResult, len(semantic)+len(keyword))
	results := make([]*FusedResult, 0, len(semantic)+len(keyword))
	getOrCreate := func(id string) *FusedResult {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedResult{ID: id}
		byID[id] = r
		results = append(results, r)
		return r
	}

	for _, h := range semantic {
		getOrCreate(h.ID).Semantic = h.Score
	}
	normalized := NormalizeKeywordScores(keyword)
	for _, h := range keyword {
		getOrCreate(h.ID).Keyword = normalized[h.ID]
	}

	for _, r := range results {
		r.Score = alpha*r.Semantic + (1-alpha)*r.Keyword
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// matchesFilter reports whether metadata holds every filter key with a
// JSON-equal value. Comparing JSON encodings makes 1 equal 1.0, matching
// metadata that was stored and read back.
func matchesFilter(metadata store.Metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok || !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return string(ab) == string(bb)
}

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// extractHighlights returns up to three sentences of content that contain
// a query term, case-insensitively. Long sentences are cut to 200
// characters plus "...".
func extractHighlights(content string, terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	var highlights []string
	for _, sentence := range sentenceBoundary.Split(content, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, term := range lowered {
			if strings.Contains(lower, term) {
				highlights = append(highlights, truncate(sentence, maxHighlightLength))
				break
			}
		}
		if len(highlights) == maxHighlights {
			break
		}
	}
	return highlights
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
