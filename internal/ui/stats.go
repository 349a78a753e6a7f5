package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/Aman-CERP/ragstore/internal/search"
)

// StatsInfo is search.Stats plus on-disk sizes.
type StatsInfo struct {
	search.Stats
	DatabaseSize int64 `json:"database_size"`
	VectorSize   int64 `json:"vector_size"`
	KeywordSize  int64 `json:"keyword_size"`
}

// TotalSize sums the on-disk sizes.
func (s StatsInfo) TotalSize() int64 {
	return s.DatabaseSize + s.VectorSize + s.KeywordSize
}

// StatsRenderer displays store statistics.
type StatsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays stats to the terminal.
func (r *StatsRenderer) Render(info StatsInfo) error {
	location := info.StoragePath
	if location == "" {
		location = "(in-memory)"
	}
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Store: "+location))

	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.DocumentCount)
	_, _ = fmt.Fprintf(r.out, "  Chunks:     %d\n", info.ChunkCount)
	_, _ = fmt.Fprintf(r.out, "  Vectors:    %d", info.VectorCount)
	if info.Tombstones > 0 {
		_, _ = fmt.Fprintf(r.out, " %s", r.styles.Warning.Render(fmt.Sprintf("(%d tombstones, run compact)", info.Tombstones)))
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Backends:")
	_, _ = fmt.Fprintf(r.out, "    Vector:   %s\n", info.VectorBackend)
	_, _ = fmt.Fprintf(r.out, "    Keyword:  %s\n", info.KeywordBackend)
	_, _ = fmt.Fprintf(r.out, "    Embedder: %s (%d dims)\n", info.EmbedderModel, info.Dimension)

	if info.TotalSize() > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Storage:")
		_, _ = fmt.Fprintf(r.out, "    Database: %s\n", FormatBytes(info.DatabaseSize))
		_, _ = fmt.Fprintf(r.out, "    Vectors:  %s\n", FormatBytes(info.VectorSize))
		if info.KeywordSize > 0 {
			_, _ = fmt.Fprintf(r.out, "    Keyword:  %s\n", FormatBytes(info.KeywordSize))
		}
		_, _ = fmt.Fprintf(r.out, "    Total:    %s\n", FormatBytes(info.TotalSize()))
	}
	return nil
}

// RenderJSON outputs stats as JSON.
func (r *StatsRenderer) RenderJSON(info StatsInfo) error {
	return writeJSON(r.out, info)
}

// ResultsRenderer displays search results.
type ResultsRenderer struct {
	out     io.Writer
	styles  Styles
	preview int
}

// NewResultsRenderer creates a results renderer. preview caps the content
// runes printed per result; 0 prints everything.
func NewResultsRenderer(out io.Writer, noColor bool, preview int) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: GetStyles(noColor), preview: preview}
}

// Render prints results best first.
func (r *ResultsRenderer) Render(query string, results []search.Result) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintf(r.out, "No results for %q\n", query)
		return nil
	}

	for i, res := range results {
		if res.Document == nil {
			continue
		}
		doc := res.Document
		_, _ = fmt.Fprintf(r.out, "%s %s  %s\n",
			r.styles.Header.Render(fmt.Sprintf("%d.", i+1)),
			r.styles.Active.Render(doc.ID),
			r.styles.Score.Render(fmt.Sprintf("%.3f", res.Score)))
		_, _ = fmt.Fprintf(r.out, "   %s\n", r.styles.Label.Render(fmt.Sprintf(
			"semantic %.3f · keyword %.3f · source %s", res.SemanticScore, res.KeywordScore, doc.SourceID)))

		if len(doc.Metadata) > 0 {
			keys := slices.Sorted(maps.Keys(doc.Metadata))
			pairs := make([]string, len(keys))
			for j, k := range keys {
				pairs[j] = fmt.Sprintf("%s=%v", k, doc.Metadata[k])
			}
			_, _ = fmt.Fprintf(r.out, "   %s\n", r.styles.Dim.Render(strings.Join(pairs, " ")))
		}

		content := strings.Join(strings.Fields(doc.Content), " ")
		if r.preview > 0 {
			content = truncateRight(content, r.preview)
		}
		_, _ = fmt.Fprintf(r.out, "   %s\n", content)
		for _, h := range res.Highlights {
			_, _ = fmt.Fprintf(r.out, "   %s %s\n", r.styles.Success.Render("›"), h)
		}
		_, _ = fmt.Fprintln(r.out)
	}
	return nil
}

// RenderJSON outputs results as JSON.
func (r *ResultsRenderer) RenderJSON(results []search.Result) error {
	if results == nil {
		results = []search.Result{}
	}
	return writeJSON(r.out, results)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// truncateRight keeps the first n runes of s followed by "...".
func truncateRight(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
