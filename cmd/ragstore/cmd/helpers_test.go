package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupCLI isolates HOME, the user config and the working directory, and
// returns a store directory.
func setupCLI(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{
		"RAGSTORE_PATH", "RAGSTORE_HYBRID_ALPHA", "RAGSTORE_KEYWORD_BACKEND",
		"RAGSTORE_INDEX_BACKEND", "RAGSTORE_EMBEDDER", "RAGSTORE_EMBEDDINGS_MODEL",
		"RAGSTORE_EMBEDDINGS_DIMENSIONS", "RAGSTORE_LOG_LEVEL", "NO_COLOR",
	} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())

	return filepath.Join(home, "store")
}

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

// writeFile creates dir/name with content and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// addJSON adds paths to store and decodes the --json report.
func addJSON(t *testing.T, store string, args ...string) []addedSource {
	t.Helper()
	out, err := runCLI(t, nil, append([]string{"--path", store, "add", "--json"}, args...)...)
	require.NoError(t, err)

	var added []addedSource
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	return added
}
