package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/logging"
	"github.com/Aman-CERP/ragstore/internal/maintenance"
	"github.com/Aman-CERP/ragstore/internal/mcp"
	"github.com/Aman-CERP/ragstore/internal/search"
)

// activityEngine reports every search to the compaction manager so
// compaction waits for the store to go idle.
type activityEngine struct {
	mcp.Engine
	compactor *maintenance.CompactionManager
}

func (e activityEngine) Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	e.compactor.Touch()
	return e.Engine.Search(ctx, query, opts)
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store to MCP clients",
		Long: `Start an MCP server exposing search, add_text, get_document, delete and
stats tools.

stdout carries JSON-RPC only: all logging goes to the log file. While
serving, the vector index is compacted in the background once tombstones
pass compaction.tombstone_threshold and the store has been idle for
compaction.idle_timeout.`,
		Args: cobra.NoArgs,
		// Replaces the root hook: nothing may reach stdout or stderr before
		// the transport starts.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return g.startProfiling()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			level := cfg.Server.LogLevel
			if g.debug {
				level = "debug"
			}
			cleanup, err := logging.SetupMCPMode(level, g.logFile)
			if err != nil {
				return err
			}
			g.loggingCleanup = cleanup

			engine, _, err := g.openEngine(ctx)
			if err != nil {
				slog.Error("engine_open_failed", slog.String("error", err.Error()))
				return err
			}
			defer closeEngine(engine)

			compactor, err := maintenance.NewCompactionManager(engine, cfg.Compaction)
			if err != nil {
				return err
			}
			compactor.Start(ctx)
			defer compactor.Stop()

			server, err := mcp.NewServer(activityEngine{Engine: engine, compactor: compactor}, cfg.Search.DefaultK)
			if err != nil {
				return err
			}
			if transport == "" {
				transport = cfg.Server.Transport
			}
			slog.Info("serve_started",
				slog.String("transport", transport),
				slog.String("path", cfg.Storage.Path))
			return server.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (default: server.transport)")
	return cmd
}
