// Package cmd provides the CLI commands for ragstore.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
	"github.com/Aman-CERP/ragstore/internal/logging"
	"github.com/Aman-CERP/ragstore/internal/profiling"
	"github.com/Aman-CERP/ragstore/pkg/version"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	storagePath string
	debug       bool
	noColor     bool
	logFile     string
	profile     profiling.Options

	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the ragstore CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ragstore",
		Short: "Local hybrid retrieval store for RAG",
		Long: `ragstore stores text as embedded chunks and retrieves them with hybrid
search: cosine similarity over an HNSW vector index fused with BM25 keyword
relevance from SQLite FTS5.

Everything lives in one local directory. Run 'ragstore serve' to expose the
store to MCP clients over stdio.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := opts.startLogging(); err != nil {
				return err
			}
			return opts.startProfiling()
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			err := opts.stopProfiling()
			opts.stopLogging()
			return err
		},
	}

	cmd.SetVersionTemplate("ragstore version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.storagePath, "path", "", "Store directory (overrides storage.path)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to stderr and the log file")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Log file (default: ~/.ragstore/logs/server.log)")
	cmd.PersistentFlags().StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newAddCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newGetCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newCompactCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sends CLI logs to the rotating file. --debug lowers the level
// and mirrors records to stderr.
func (o *globalOptions) startLogging() error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if o.logFile != "" {
		cfg.FilePath = o.logFile
	}
	if o.debug {
		cfg.Level = "debug"
		cfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.Debug("debug logging enabled", slog.String("log_file", cfg.FilePath))
	return nil
}

func (o *globalOptions) stopLogging() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

func (o *globalOptions) startProfiling() error {
	if !o.profile.Enabled() {
		return nil
	}
	session, err := profiling.Start(o.profile)
	if err != nil {
		return err
	}
	o.profiler = session
	return nil
}

func (o *globalOptions) stopProfiling() error {
	if o.profiler == nil {
		return nil
	}
	err := o.profiler.Stop()
	o.profiler = nil
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return nil
}

// Execute runs the root command, cancelling its context on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, ragerrors.FormatForCLI(err))
	}
	return err
}
