package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Matcher
// =============================================================================

func TestMatcher_Patterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		isDir    bool
		want     bool
	}{
		{"extension any depth", []string{"*.log"}, "a/b/debug.log", false, true},
		{"extension no match", []string{"*.log"}, "notes.md", false, false},
		{"dir only matches dir", []string{"tmp/"}, "tmp", true, true},
		{"dir only skips file", []string{"tmp/"}, "tmp", false, false},
		{"dir only covers contents", []string{"tmp/"}, "x/tmp/a.md", false, true},
		{"rooted matches root", []string{"/build"}, "build", true, true},
		{"rooted skips nested", []string{"/build"}, "src/build", true, false},
		{"inner slash is rooted", []string{"doc/draft.md"}, "doc/draft.md", false, true},
		{"inner slash not at depth", []string{"doc/draft.md"}, "x/doc/draft.md", false, false},
		{"double star prefix", []string{"**/secret.md"}, "a/b/secret.md", false, true},
		{"double star suffix", []string{"vendor/**"}, "vendor/x/y.md", false, true},
		{"double star middle", []string{"a/**/z.md"}, "a/b/c/z.md", false, true},
		{"question mark", []string{"note?.md"}, "note1.md", false, true},
		{"char class negated", []string{"v[!0-9].md"}, "v1.md", false, false},
		{"char class", []string{"v[0-9].md"}, "v1.md", false, true},
		{"negation re-includes", []string{"*.md", "!keep.md"}, "keep.md", false, false},
		{"last rule wins", []string{"!keep.md", "*.md"}, "keep.md", false, true},
		{"escaped hash", []string{`\#notes.md`}, "#notes.md", false, true},
		{"escaped bang", []string{`\!important.md`}, "!important.md", false, true},
		{"comment ignored", []string{"# *.md"}, "a.md", false, false},
		{"escaped trailing space", []string{`name\ `}, "name ", false, true},
		{"literal dot", []string{"a.md"}, "aXmd", false, false},
		{"root never matches", []string{"*"}, ".", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a matcher with the patterns
			m := New()
			for _, p := range tt.patterns {
				m.Add(p, "")
			}

			// When/Then: the path matches as expected
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_BaseScopesPattern(t *testing.T) {
	// Given: a pattern declared in docs/.gitignore
	m := New()
	m.Add("*.tmp", "docs")

	// Then: it applies under docs only
	assert.True(t, m.Match("docs/a.tmp", false))
	assert.True(t, m.Match("docs/sub/a.tmp", false))
	assert.False(t, m.Match("a.tmp", false))
	assert.False(t, m.Match("docsx/a.tmp", false))
}

func TestMatcher_AddFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitignore")
	require.NoError(t, os.WriteFile(path, []byte("# drafts\n\n*.draft\n!final.draft\n"), 0o644))

	m := New()
	require.NoError(t, m.AddFile(path, ""))

	assert.True(t, m.Match("a.draft", false))
	assert.False(t, m.Match("final.draft", false))
}

func TestMatcher_AddFile_Missing(t *testing.T) {
	err := New().AddFile(filepath.Join(t.TempDir(), "absent"), "")
	require.Error(t, err)
}

// =============================================================================
// Walk
// =============================================================================

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func isMarkdown(path string) bool {
	return strings.HasSuffix(path, ".md")
}

func TestWalk_HonorsIgnoreFiles(t *testing.T) {
	// Given: a tree with root and nested ignore files
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".gitignore":         "build/\n*.draft.md\n",
		"readme.md":          "r",
		"notes.draft.md":     "d",
		"build/out.md":       "b",
		"docs/.ragignore":    "private.md\n",
		"docs/guide.md":      "g",
		"docs/private.md":    "p",
		"private.md":         "top level is not under docs",
		".hidden/secret.md":  "h",
		"docs/sub/deep.md":   "d",
		"docs/sub/script.go": "package x",
		"other/.gitignore":   "*\n!keep.md\n",
		"other/keep.md":      "k",
		"other/drop.md":      "x",
	})

	// When: walking for markdown files
	found, err := Walk(root, isMarkdown)

	// Then: ignored, hidden and filtered files are skipped, sorted
	require.NoError(t, err)
	assert.Equal(t, []string{
		"docs/guide.md",
		"docs/sub/deep.md",
		"other/keep.md",
		"private.md",
		"readme.md",
	}, relAll(t, root, found))
}

func TestWalk_NoIgnoreFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"b.md": "b", "a/c.md": "c"})

	found, err := Walk(root, isMarkdown)

	require.NoError(t, err)
	assert.Equal(t, []string{"a/c.md", "b.md"}, relAll(t, root, found))
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "absent"), isMarkdown)
	require.Error(t, err)
}
