package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragstore/internal/chunk"
)

func TestAddCmd_File(t *testing.T) {
	// Given: a text file
	store := setupCLI(t)
	path := writeFile(t, t.TempDir(), "fox.txt", "The quick brown fox jumps over the lazy dog.")

	// When: adding it
	added := addJSON(t, store, path)

	// Then: one source with one chunk is reported under the content hash
	require.Len(t, added, 1)
	assert.Equal(t, path, added[0].Source)
	assert.Equal(t, chunk.SourceID("The quick brown fox jumps over the lazy dog."), added[0].SourceID)
	assert.Len(t, added[0].ChunkIDs, 1)
	assert.Empty(t, added[0].Error)
}

func TestAddCmd_Directory_FiltersExtensions(t *testing.T) {
	// Given: a directory with matching, non-matching and hidden files
	store := setupCLI(t)
	dir := t.TempDir()
	writeFile(t, dir, "b.md", "beta notes")
	writeFile(t, dir, "a.txt", "alpha notes")
	writeFile(t, dir, "image.png", "not text")
	writeFile(t, dir, ".git/config.txt", "hidden")

	// When: adding the directory
	added := addJSON(t, store, dir)

	// Then: only .txt and .md outside hidden dirs are added, in lexical order
	require.Len(t, added, 2)
	assert.Equal(t, filepath.Join(dir, "a.txt"), added[0].Source)
	assert.Equal(t, filepath.Join(dir, "b.md"), added[1].Source)
}

func TestAddCmd_Directory_HonorsIgnoreFiles(t *testing.T) {
	// Given: a directory whose ignore files exclude drafts and a subtree
	store := setupCLI(t)
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "*.draft.md\n")
	writeFile(t, dir, ".ragignore", "archive/\n")
	writeFile(t, dir, "guide.md", "the guide")
	writeFile(t, dir, "plan.draft.md", "unfinished plan")
	writeFile(t, dir, "archive/old.md", "old notes")

	// When: adding the directory
	added := addJSON(t, store, dir)

	// Then: only the unignored file is added
	require.Len(t, added, 1)
	assert.Equal(t, filepath.Join(dir, "guide.md"), added[0].Source)
}

func TestAddCmd_CustomExtensions(t *testing.T) {
	store := setupCLI(t)
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main")
	writeFile(t, dir, "notes.txt", "notes")

	added := addJSON(t, store, dir, "--ext", "go")

	require.Len(t, added, 1)
	assert.Equal(t, filepath.Join(dir, "main.go"), added[0].Source)
}

func TestAddCmd_Stdin(t *testing.T) {
	// Given: text on stdin
	store := setupCLI(t)

	// When: adding with no path
	out, err := runCLI(t, strings.NewReader("piped text about ducks"),
		"--path", store, "add", "--json", "--meta", "lang=en")

	// Then: the stdin source is stored
	require.NoError(t, err)
	var added []addedSource
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	require.Len(t, added, 1)
	assert.Equal(t, stdinSource, added[0].Source)
	require.Len(t, added[0].ChunkIDs, 1)

	// And: metadata from --meta is attached without a source key
	got, err := runCLI(t, nil, "--path", store, "get", "--json", added[0].ChunkIDs[0])
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(got), &doc))
	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "en", meta["lang"])
	assert.NotContains(t, meta, "source")
}

func TestAddCmd_CustomID(t *testing.T) {
	store := setupCLI(t)
	path := writeFile(t, t.TempDir(), "design.txt", "design document for the store")

	added := addJSON(t, store, path, "--id", "design-v2")

	require.Len(t, added, 1)
	assert.Equal(t, "design-v2", added[0].SourceID)

	out, err := runCLI(t, nil, "--path", store, "get", "--json", added[0].ChunkIDs[0])
	require.NoError(t, err)
	assert.Contains(t, out, `"source_id": "design-v2"`)
}

func TestAddCmd_CustomID_RequiresSingleInput(t *testing.T) {
	store := setupCLI(t)
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")

	_, err := runCLI(t, nil, "--path", store, "add", "--id", "x", a, b)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--id")
}

func TestAddCmd_NoChunk(t *testing.T) {
	// Given: text longer than one chunk
	store := setupCLI(t)
	text := strings.Repeat("word ", 400)
	path := writeFile(t, t.TempDir(), "long.txt", text)

	// When: adding with --no-chunk
	added := addJSON(t, store, path, "--no-chunk")

	// Then: it is stored as a single document
	require.Len(t, added, 1)
	assert.Len(t, added[0].ChunkIDs, 1)
}

func TestAddCmd_Idempotent(t *testing.T) {
	// Given: a file added once
	store := setupCLI(t)
	path := writeFile(t, t.TempDir(), "same.txt", "identical content")
	first := addJSON(t, store, path)

	// When: adding it again
	second := addJSON(t, store, path)

	// Then: the same chunk ids come back and nothing is duplicated
	assert.Equal(t, first[0].ChunkIDs, second[0].ChunkIDs)
	out, err := runCLI(t, nil, "--path", store, "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"chunk_count": 1`)
}

func TestAddCmd_MissingPath(t *testing.T) {
	store := setupCLI(t)

	_, err := runCLI(t, nil, "--path", store, "add", filepath.Join(t.TempDir(), "nope.txt"))

	assert.Error(t, err)
}

func TestAddCmd_PlainProgress(t *testing.T) {
	// Given: a non-terminal output
	store := setupCLI(t)
	path := writeFile(t, t.TempDir(), "p.txt", "progress output check")

	// When: adding without --json
	out, err := runCLI(t, nil, "--path", store, "add", path)

	// Then: plain progress and the summary are printed
	require.NoError(t, err)
	assert.Contains(t, out, "[READ]")
	assert.Contains(t, out, "[INGEST]")
	assert.Contains(t, out, "Complete: 1 sources, 1 chunks")
	assert.Contains(t, out, "Embedder:")
}

// =============================================================================
// expandInputs
// =============================================================================

func TestExpandInputs_NoArgsIsStdin(t *testing.T) {
	paths, err := expandInputs(nil, []string{".txt"})

	require.NoError(t, err)
	assert.Equal(t, []string{stdinSource}, paths)
}

func TestExpandInputs_EmptyDirectory(t *testing.T) {
	_, err := expandInputs([]string{t.TempDir()}, []string{".txt"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")
}
