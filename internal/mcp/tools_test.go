package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragstore/internal/chunk"
	"github.com/Aman-CERP/ragstore/internal/search"
)

// newEngineServer returns a server over a real in-memory engine.
func newEngineServer(t *testing.T) *Server {
	t.Helper()
	engine, err := search.New(context.Background(), search.DefaultEngineConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	srv, err := NewServer(engine, 0)
	require.NoError(t, err)
	return srv
}

func addText(t *testing.T, srv *Server, args map[string]any) AddTextOutput {
	t.Helper()
	out, err := srv.CallTool(context.Background(), "add_text", args)
	require.NoError(t, err)
	res, ok := out.(AddTextOutput)
	require.True(t, ok)
	return res
}

func TestAddTextTool_StoresAndReturnsIDs(t *testing.T) {
	// Given: a server over an empty engine
	srv := newEngineServer(t)
	text := "The quick brown fox jumps over the lazy dog."

	// When: adding a text with metadata
	res := addText(t, srv, map[string]any{"text": text, "metadata": map[string]any{"lang": "en"}})

	// Then: ids and the source id are returned
	require.NotEmpty(t, res.IDs)
	assert.Equal(t, chunk.SourceID(text), res.SourceID)

	// And: the stored chunk is retrievable with its metadata
	out, err := srv.CallTool(context.Background(), "get_document", map[string]any{"id": res.IDs[0]})
	require.NoError(t, err)
	doc := out.(DocumentOutput)
	assert.Equal(t, res.IDs[0], doc.ID)
	assert.Equal(t, res.SourceID, doc.SourceID)
	assert.Equal(t, "en", doc.Metadata["lang"])
	_, perr := time.Parse(time.RFC3339, doc.CreatedAt)
	assert.NoError(t, perr)
}

func TestAddTextTool_ChunkFalse_StoresSingleDocument(t *testing.T) {
	srv := newEngineServer(t)

	res := addText(t, srv, map[string]any{"text": "one. two. three.", "chunk": false})

	assert.Len(t, res.IDs, 1)
}

func TestAddTextTool_EmptyText_ReturnsInvalidParams(t *testing.T) {
	srv := newEngineServer(t)

	_, err := srv.CallTool(context.Background(), "add_text", map[string]any{"text": "  "})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestSearchTool_FindsStoredText(t *testing.T) {
	// Given: two stored texts
	srv := newEngineServer(t)
	fox := addText(t, srv, map[string]any{"text": "The quick brown fox jumps.", "metadata": map[string]any{"animal": "fox"}})
	addText(t, srv, map[string]any{"text": "Bananas are yellow fruit.", "metadata": map[string]any{"animal": "none"}})

	// When: searching keyword-only for a fox term
	out, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "fox", "alpha": 0.0})

	// Then: the fox chunk ranks first with full keyword score
	require.NoError(t, err)
	res := out.(SearchOutput)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, fox.IDs[0], res.Results[0].ID)
	assert.InDelta(t, 1.0, res.Results[0].KeywordScore, 1e-6)
	assert.NotEmpty(t, res.Results[0].Highlights)
}

func TestSearchTool_FilterRestrictsResults(t *testing.T) {
	// Given: texts with distinct metadata
	srv := newEngineServer(t)
	addText(t, srv, map[string]any{"text": "Red apples grow on trees.", "metadata": map[string]any{"kind": "a"}})
	keep := addText(t, srv, map[string]any{"text": "Green apples are sour.", "metadata": map[string]any{"kind": "b"}})

	// When: filtering on kind=b
	out, err := srv.CallTool(context.Background(), "search", map[string]any{
		"query":  "apples",
		"filter": map[string]any{"kind": "b"},
	})

	// Then: only the matching text is returned
	require.NoError(t, err)
	res := out.(SearchOutput)
	require.Len(t, res.Results, 1)
	assert.Equal(t, keep.IDs[0], res.Results[0].ID)
}

func TestSearchTool_EmptyStore_ReturnsEmptyResults(t *testing.T) {
	srv := newEngineServer(t)

	out, err := srv.CallTool(context.Background(), "search", map[string]any{"query": "anything"})

	require.NoError(t, err)
	res := out.(SearchOutput)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
}

func TestGetDocumentTool_UnknownID_ReturnsNotFound(t *testing.T) {
	srv := newEngineServer(t)

	_, err := srv.CallTool(context.Background(), "get_document", map[string]any{"id": "missing"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestGetDocumentTool_MissingID_ReturnsInvalidParams(t *testing.T) {
	srv := newEngineServer(t)

	_, err := srv.CallTool(context.Background(), "get_document", map[string]any{})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestDeleteTool_BySourceID_RemovesAllChunks(t *testing.T) {
	// Given: a stored text
	srv := newEngineServer(t)
	res := addText(t, srv, map[string]any{"text": "Alpha beta gamma. Delta epsilon."})

	// When: deleting by source id
	out, err := srv.CallTool(context.Background(), "delete", map[string]any{"id": res.SourceID})

	// Then: every chunk is removed
	require.NoError(t, err)
	del := out.(DeleteOutput)
	assert.Equal(t, len(res.IDs), del.Deleted)
	for _, id := range res.IDs {
		_, err := srv.CallTool(context.Background(), "get_document", map[string]any{"id": id})
		assert.Error(t, err)
	}
}

func TestDeleteTool_UnknownID_ReturnsNotFound(t *testing.T) {
	srv := newEngineServer(t)

	_, err := srv.CallTool(context.Background(), "delete", map[string]any{"id": "nope"})

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeDocumentNotFound, mcpErr.Code)
}

func TestStatsTool_ReflectsStoredChunks(t *testing.T) {
	// Given: one stored text
	srv := newEngineServer(t)
	res := addText(t, srv, map[string]any{"text": "Stats should count this chunk."})

	// When: requesting stats
	out, err := srv.CallTool(context.Background(), "stats", nil)

	// Then: counts match
	require.NoError(t, err)
	stats := out.(*StatsOutput)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, len(res.IDs), stats.ChunkCount)
	assert.Equal(t, len(res.IDs), stats.VectorCount)
	assert.NotEmpty(t, stats.EmbedderModel)
}
