package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != "server.log" {
		t.Errorf("DefaultLogPath should end with server.log, got: %s", path)
	}
	if !strings.Contains(path, ".ragstore") {
		t.Errorf("DefaultLogPath should live under .ragstore, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation defaults: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if !cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be true")
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: logPath,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("stage", "name", "chunked")
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"stage"`) || !strings.Contains(string(data), `"name":"chunked"`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestSetup_RespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, _ := os.ReadFile(logPath)
	if strings.Contains(string(data), "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("warn line should be written")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"INFO", "INFO"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
	}

	for _, tt := range tests {
		if got := LevelFromString(tt.input).String(); got != tt.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.log")
	w, err := NewRotatingWriter(path, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = w.Close() }()

	chunk := []byte(strings.Repeat("x", 600*1024) + "\n")
	for i := 0; i < 4; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, suffix := range []string{"", ".1", ".2"} {
		if _, err := os.Stat(path + suffix); err != nil {
			t.Errorf("expected %s to exist: %v", path+suffix, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("rotation should keep at most 2 backups")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(path, 10, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = fmt.Fprintf(w, "writer=%d line=%d\n", id, j)
			}
		}(i)
	}
	wg.Wait()
	_ = w.Close()

	data, _ := os.ReadFile(path)
	if lines := strings.Count(string(data), "\n"); lines != 400 {
		t.Errorf("expected 400 lines, got %d", lines)
	}
}

func TestTail_FiltersByLevelAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tail.log")
	content := strings.Join([]string{
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"one"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"two","k":5}`,
		`not json`,
		`{"time":"2026-01-02T10:00:02Z","level":"WARN","msg":"three"}`,
		`{"time":"2026-01-02T10:00:03Z","level":"ERROR","msg":"four"}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := Tail(path, 2, "info")
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Msg != "three" || entries[1].Msg != "four" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	all, _ := Tail(path, 0, "debug")
	if len(all) != 5 {
		t.Errorf("expected 5 entries, got %d", len(all))
	}
	if all[2].IsValid {
		t.Error("non-JSON line should be marked invalid")
	}
	if got := Format(all[1]); !strings.Contains(got, "INFO  two k=5") {
		t.Errorf("unexpected format: %q", got)
	}
}

func TestFindLogFile_ExplicitMissing(t *testing.T) {
	if _, err := FindLogFile(filepath.Join(t.TempDir(), "missing.log")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}
