package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragstore/internal/search"
	"github.com/Aman-CERP/ragstore/internal/ui"
)

// seedStore adds two files with distinct topics and team metadata.
func seedStore(t *testing.T) (string, []addedSource) {
	t.Helper()
	store := setupCLI(t)
	dir := t.TempDir()
	foxes := writeFile(t, dir, "foxes.txt", "Foxes are small omnivorous mammals with bushy tails.")
	rust := writeFile(t, dir, "rust.txt", "Iron oxide forms rust when exposed to water and oxygen.")

	added := addJSON(t, store, foxes, "--meta", "team=zoo")
	added = append(added, addJSON(t, store, rust, "--meta", "team=lab")...)
	require.Len(t, added, 2)
	return store, added
}

func searchJSON(t *testing.T, store string, args ...string) []search.Result {
	t.Helper()
	out, err := runCLI(t, nil, append([]string{"--path", store, "search", "--json"}, args...)...)
	require.NoError(t, err)

	var results []search.Result
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	return results
}

// =============================================================================
// search
// =============================================================================

func TestSearchCmd_KeywordMatchRanksFirst(t *testing.T) {
	// Given: a seeded store
	store, added := seedStore(t)

	// When: searching for a word in one document, keyword only
	results := searchJSON(t, store, "bushy", "tails", "--alpha", "0")

	// Then: that document ranks first
	require.NotEmpty(t, results)
	assert.Equal(t, added[0].ChunkIDs[0], results[0].Document.ID)
	assert.Greater(t, results[0].KeywordScore, 0.0)
}

func TestSearchCmd_Filter(t *testing.T) {
	store, added := seedStore(t)

	results := searchJSON(t, store, "water", "--filter", "team=zoo")

	for _, r := range results {
		assert.Equal(t, "zoo", r.Document.Metadata["team"])
		assert.NotEqual(t, added[1].ChunkIDs[0], r.Document.ID)
	}
}

func TestSearchCmd_Limit(t *testing.T) {
	store, _ := seedStore(t)

	results := searchJSON(t, store, "mammals oxide", "-n", "1")

	assert.LessOrEqual(t, len(results), 1)
}

func TestSearchCmd_InvalidAlpha(t *testing.T) {
	store, _ := seedStore(t)

	_, err := runCLI(t, nil, "--path", store, "search", "foxes", "--alpha", "1.5")

	assert.Error(t, err)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	store := setupCLI(t)

	_, err := runCLI(t, nil, "--path", store, "search")

	assert.Error(t, err)
}

func TestSearchCmd_TextOutput(t *testing.T) {
	store, _ := seedStore(t)

	out, err := runCLI(t, nil, "--path", store, "search", "bushy tails")

	require.NoError(t, err)
	assert.Contains(t, out, "1.")
	assert.Contains(t, out, "team=zoo")
}

func TestSearchCmd_EmptyStore(t *testing.T) {
	store := setupCLI(t)

	out, err := runCLI(t, nil, "--path", store, "search", "anything")

	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestSearchOptions_AlphaOnlyWhenChanged(t *testing.T) {
	// Given: the search command
	cmd := newSearchCmd(&globalOptions{})
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "3"}))

	// When: alpha is not given
	opts, err := searchOptions{limit: 3}.toSearchOptions(cmd)

	// Then: it stays nil so the configured default applies
	require.NoError(t, err)
	assert.Nil(t, opts.Alpha)
	assert.Equal(t, 3, opts.K)

	// When: alpha is explicitly 0
	require.NoError(t, cmd.ParseFlags([]string{"--alpha", "0"}))
	opts, err = searchOptions{alpha: 0}.toSearchOptions(cmd)

	// Then: it is carried as pure keyword
	require.NoError(t, err)
	require.NotNil(t, opts.Alpha)
	assert.Equal(t, 0.0, *opts.Alpha)
}

// =============================================================================
// get / delete
// =============================================================================

func TestGetCmd_Text(t *testing.T) {
	store, added := seedStore(t)

	out, err := runCLI(t, nil, "--path", store, "get", added[0].ChunkIDs[0])

	require.NoError(t, err)
	assert.Contains(t, out, added[0].ChunkIDs[0])
	assert.Contains(t, out, "bushy tails")
	assert.Contains(t, out, "meta.team")
}

func TestGetCmd_NotFound(t *testing.T) {
	store, _ := seedStore(t)

	_, err := runCLI(t, nil, "--path", store, "get", "missing-id")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDeleteCmd_BySource(t *testing.T) {
	// Given: a seeded store
	store, added := seedStore(t)

	// When: deleting by source id
	out, err := runCLI(t, nil, "--path", store, "delete", added[0].SourceID)

	// Then: its chunks are gone and the other source remains
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 chunk(s)")

	_, err = runCLI(t, nil, "--path", store, "get", added[0].ChunkIDs[0])
	assert.Error(t, err)
	_, err = runCLI(t, nil, "--path", store, "get", added[1].ChunkIDs[0])
	assert.NoError(t, err)
}

func TestDeleteCmd_Unknown(t *testing.T) {
	store, _ := seedStore(t)

	_, err := runCLI(t, nil, "--path", store, "delete", "nope")

	assert.Error(t, err)
}

// =============================================================================
// stats / check / compact
// =============================================================================

func TestStatsCmd_JSON(t *testing.T) {
	store, _ := seedStore(t)

	out, err := runCLI(t, nil, "--path", store, "stats", "--json")
	require.NoError(t, err)

	var info ui.StatsInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 2, info.DocumentCount)
	assert.Equal(t, 2, info.ChunkCount)
	assert.Equal(t, 2, info.VectorCount)
	assert.Equal(t, store, info.StoragePath)
	assert.Positive(t, info.DatabaseSize)
	assert.Positive(t, info.VectorSize)
}

func TestStatsCmd_Text(t *testing.T) {
	store, _ := seedStore(t)

	out, err := runCLI(t, nil, "--path", store, "stats")

	require.NoError(t, err)
	assert.Contains(t, out, "Store: "+store)
	assert.Contains(t, out, "Documents:  2")
}

func TestCheckCmd_Consistent(t *testing.T) {
	store, _ := seedStore(t)

	out, err := runCLI(t, nil, "--path", store, "check")

	require.NoError(t, err)
	assert.Contains(t, out, "consistent")
}

func TestCheckCmd_JSON(t *testing.T) {
	store, _ := seedStore(t)

	out, err := runCLI(t, nil, "--path", store, "check", "--json")
	require.NoError(t, err)

	var report search.ConsistencyReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Consistent())
	assert.Equal(t, 2, report.Documents)
}

func TestCompactCmd_ReclaimsTombstones(t *testing.T) {
	// Given: a store with a deleted document
	store, added := seedStore(t)
	_, err := runCLI(t, nil, "--path", store, "delete", added[0].ChunkIDs[0])
	require.NoError(t, err)

	// When: compacting
	out, err := runCLI(t, nil, "--path", store, "compact")

	// Then: the tombstone is reclaimed
	require.NoError(t, err)
	assert.Contains(t, out, "Reclaimed 1 tombstones")

	// And: a second compact has nothing to do
	out, err = runCLI(t, nil, "--path", store, "compact")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "Nothing to compact"))
}
