package mcp

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/Aman-CERP/ragstore/internal/search"
)

// maxPreviewLength caps the content shown per result in markdown.
const maxPreviewLength = 500

// FormatSearchResults formats search results as markdown.
func FormatSearchResults(query string, results []search.Result) string {
	valid := filterValidResults(results)
	if len(valid) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d result", len(valid))
	if len(valid) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range valid {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

// filterValidResults removes results without a document.
func filterValidResults(results []search.Result) []search.Result {
	valid := make([]search.Result, 0, len(results))
	for _, r := range results {
		if r.Document != nil {
			valid = append(valid, r)
		}
	}
	return valid
}

// formatResult formats a single result.
func formatResult(sb *strings.Builder, num int, r search.Result) {
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, r.Document.ID, r.Score)
	fmt.Fprintf(sb, "semantic %.2f · keyword %.2f · source `%s`\n\n",
		r.SemanticScore, r.KeywordScore, r.Document.SourceID)

	if len(r.Document.Metadata) > 0 {
		keys := slices.Sorted(maps.Keys(r.Document.Metadata))
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("`%s=%v`", k, r.Document.Metadata[k])
		}
		fmt.Fprintf(sb, "**Metadata:** %s\n\n", strings.Join(pairs, ", "))
	}

	for _, h := range r.Highlights {
		fmt.Fprintf(sb, "> %s\n", h)
	}
	if len(r.Highlights) > 0 {
		sb.WriteString("\n")
	}

	fmt.Fprintf(sb, "```\n%s\n```\n\n", preview(r.Document.Content, maxPreviewLength))
}

// preview cuts s to n characters.
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, lo, hi int) int {
	if limit <= 0 {
		return defaultVal
	}
	return min(max(limit, lo), hi)
}
