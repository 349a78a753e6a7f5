package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/logging"
)

func newLogsCmd(g *globalOptions) *cobra.Command {
	var (
		lines int
		level string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries",
		Long: `Print the last entries of the ragstore log file in a readable form.

The file defaults to ~/.ragstore/logs/server.log; --log-file picks another.`,
		Example: `  ragstore logs
  ragstore logs -n 100 --level warn`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(g.logFile)
			if err != nil {
				return err
			}
			entries, err := logging.Tail(path, lines, level)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), logging.Format(e)); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries to show (0 for all)")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level: debug, info, warn, error")
	return cmd
}
