package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newDeleteCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a chunk, or every chunk of a source",
		Long: `Delete a chunk by id. When the id names a source instead, every chunk
added from that source is removed.

Vectors are tombstoned; run 'ragstore compact' to reclaim their space.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := g.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEngine(engine)

			n, err := engine.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			slog.Info("delete_complete", slog.String("id", args[0]), slog.Int("chunks", n))

			out := g.output(cmd)
			out.Successf("Deleted %d chunk(s) for %s", n, args[0])
			return nil
		},
	}
}
