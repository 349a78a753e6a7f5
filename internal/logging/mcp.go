package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for the MCP stdio server.
// Logs go ONLY to the rotating file: stdout is reserved for JSON-RPC and
// any stray write corrupts the protocol stream.
func SetupMCPMode(level string, path string) (func(), error) {
	if path == "" {
		path = DefaultLogPath()
	}
	cfg := Config{
		Level:         level,
		FilePath:      path,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
