// Package logging configures structured slog output for ragstore.
// Logs are JSON lines written to a size-rotated file under ~/.ragstore/logs/,
// optionally teed to stderr. The MCP server mode never touches stdout or
// stderr because stdout carries the JSON-RPC stream.
package logging
