package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

func newCompactCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Reclaim space held by deleted vectors",
		Long: `Rebuild the vector index without tombstoned entries and checkpoint the
SQLite write-ahead log.

Deletes only tombstone vectors, so the index grows until compacted. No
re-embedding is needed: vectors are kept in the index itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := g.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEngine(engine)

			out := g.output(cmd)
			start := time.Now()
			reclaimed, err := engine.Compact(cmd.Context())
			if err != nil {
				return err
			}
			if reclaimed == 0 {
				out.Success("Nothing to compact")
				return nil
			}
			out.Successf("Reclaimed %d tombstones in %s", reclaimed, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
