package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/config"
	"github.com/Aman-CERP/ragstore/internal/output"
	"github.com/Aman-CERP/ragstore/internal/search"
)

// loadConfig loads the effective configuration for the working directory
// and applies the --path override.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if o.storagePath != "" {
		cfg.Storage.Path = o.storagePath
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	return cfg, nil
}

// openEngine opens the store named by the effective configuration. The
// caller must Close the engine.
func (o *globalOptions) openEngine(ctx context.Context) (*search.Engine, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	engine, err := search.New(ctx, search.EngineConfigFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("engine_opened",
		slog.String("path", cfg.Storage.Path),
		slog.String("embedder", cfg.Embeddings.Provider))
	return engine, cfg, nil
}

// closeEngine closes engine, logging rather than returning the error so it
// never masks the command's own result.
func closeEngine(engine *search.Engine) {
	if err := engine.Close(); err != nil {
		slog.Warn("engine_close_failed", slog.String("error", err.Error()))
	}
}

// output returns a status writer for cmd's stdout honoring --no-color.
func (o *globalOptions) output(cmd *cobra.Command) *output.Writer {
	if o.noColor {
		return output.NewWithColor(cmd.OutOrStdout(), false)
	}
	return output.New(cmd.OutOrStdout())
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// parseKeyValues converts k=v flag pairs to metadata. Values that parse as
// JSON scalars (numbers, booleans, quoted strings, null) keep their type;
// anything else is a plain string.
func parseKeyValues(pairs map[string]string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for k, raw := range pairs {
		if k == "" {
			return nil, fmt.Errorf("empty key in %q", "="+raw)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			out[k] = raw
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("value for %q must be a scalar", k)
		}
		out[k] = v
	}
	return out, nil
}
