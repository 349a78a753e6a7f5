package mcp

import (
	"time"

	"github.com/Aman-CERP/ragstore/internal/search"
	"github.com/Aman-CERP/ragstore/internal/store"
	"github.com/Aman-CERP/ragstore/internal/telemetry"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query  string         `json:"query" jsonschema:"the search query to execute"`
	K      int            `json:"k,omitempty" jsonschema:"maximum number of results, default 5"`
	Alpha  *float64       `json:"alpha,omitempty" jsonschema:"semantic weight between 0 (keyword only) and 1 (semantic only)"`
	Filter map[string]any `json:"filter,omitempty" jsonschema:"metadata key/value pairs every result must match"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"list of search results, best first"`
}

// SearchResultOutput defines a single search result.
type SearchResultOutput struct {
	ID            string         `json:"id" jsonschema:"chunk id, usable with get_document and delete"`
	SourceID      string         `json:"source_id" jsonschema:"id shared by all chunks of the same source text"`
	Content       string         `json:"content" jsonschema:"chunk text"`
	Score         float64        `json:"score" jsonschema:"combined relevance score"`
	SemanticScore float64        `json:"semantic_score" jsonschema:"cosine similarity to the query"`
	KeywordScore  float64        `json:"keyword_score" jsonschema:"normalized keyword relevance between 0 and 1"`
	Highlights    []string       `json:"highlights,omitempty" jsonschema:"sentences containing query terms"`
	Metadata      map[string]any `json:"metadata,omitempty" jsonschema:"document metadata"`
}

// AddTextInput defines the input schema for the add_text tool.
type AddTextInput struct {
	Text     string         `json:"text" jsonschema:"the text to store"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"metadata stored with every chunk"`
	Chunk    *bool          `json:"chunk,omitempty" jsonschema:"split the text into overlapping chunks, default true"`
}

// AddTextOutput defines the output schema for the add_text tool.
type AddTextOutput struct {
	IDs      []string `json:"ids" jsonschema:"ids of the stored chunks"`
	SourceID string   `json:"source_id,omitempty" jsonschema:"id that deletes every chunk of this text"`
}

// GetDocumentInput defines the input schema for the get_document tool.
type GetDocumentInput struct {
	ID string `json:"id" jsonschema:"chunk id"`
}

// DocumentOutput defines the output schema for the get_document tool.
type DocumentOutput struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// DeleteInput defines the input schema for the delete tool.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"chunk id or source id to delete"`
}

// DeleteOutput defines the output schema for the delete tool.
type DeleteOutput struct {
	ID      string `json:"id"`
	Deleted int    `json:"deleted" jsonschema:"number of chunks removed"`
}

// StatsInput defines the input schema for the stats tool (no parameters).
type StatsInput struct{}

// StatsOutput defines the output schema for the stats tool.
type StatsOutput = search.Stats

// QueryStatsInput defines the input schema for the query_stats tool.
type QueryStatsInput struct {
	Top int `json:"top,omitempty" jsonschema:"number of top query terms to report, default 10"`
}

// QueryStatsOutput defines the output schema for the query_stats tool.
type QueryStatsOutput = telemetry.Snapshot

func toSearchResultOutput(r search.Result) SearchResultOutput {
	return SearchResultOutput{
		ID:            r.Document.ID,
		SourceID:      r.Document.SourceID,
		Content:       r.Document.Content,
		Score:         r.Score,
		SemanticScore: r.SemanticScore,
		KeywordScore:  r.KeywordScore,
		Highlights:    r.Highlights,
		Metadata:      r.Document.Metadata,
	}
}

func toDocumentOutput(d *store.Document) DocumentOutput {
	return DocumentOutput{
		ID:        d.ID,
		SourceID:  d.SourceID,
		Content:   d.Content,
		Metadata:  d.Metadata,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
	}
}
