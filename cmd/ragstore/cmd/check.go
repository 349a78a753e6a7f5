package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/search"
)

// maxListedIDs caps how many ids the text report prints per category.
const maxListedIDs = 10

func newCheckCmd(g *globalOptions) *cobra.Command {
	var (
		repair     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify documents and vectors agree",
		Long: `Compare the documents in SQLite against the live vectors in the index.

A missing vector makes a document invisible to semantic search; an orphan
vector points at a document that no longer exists. With --repair, orphans
are tombstoned and missing vectors restored from stored embeddings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := g.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEngine(engine)

			var report *search.ConsistencyReport
			if repair {
				report, err = engine.Repair(cmd.Context())
			} else {
				report, err = engine.CheckConsistency(cmd.Context())
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := g.output(cmd)
			out.Statusf("", "Documents: %d  Vectors: %d", report.Documents, report.Vectors)
			if report.Consistent() {
				out.Success("Store is consistent")
				return nil
			}

			listIDs := func(label string, ids []string) {
				if len(ids) == 0 {
					return
				}
				out.Warningf("%d %s", len(ids), label)
				shown := ids[:min(len(ids), maxListedIDs)]
				out.List(shown)
				if len(ids) > len(shown) {
					out.Statusf("", "   ... and %d more", len(ids)-len(shown))
				}
			}
			listIDs("documents without vectors", report.MissingVectors)
			listIDs("vectors without documents", report.OrphanVectors)

			if repair {
				out.Success("Repaired")
				return nil
			}
			return fmt.Errorf("store is inconsistent, run 'ragstore check --repair'")
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Fix the inconsistencies found")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the report as JSON")
	return cmd
}
