package cmd

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/store"
	"github.com/Aman-CERP/ragstore/internal/ui"
)

func newStatsCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Long: `Show document, chunk and vector counts, the active backends and the
on-disk size of the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, cfg, err := g.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEngine(engine)

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}
			info := collectSizes(ui.StatsInfo{Stats: *stats}, cfg.Storage.Path)

			renderer := ui.NewStatsRenderer(cmd.OutOrStdout(), g.noColor || !ui.IsTTY(cmd.OutOrStdout()))
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// collectSizes adds on-disk sizes of the store files under dir.
func collectSizes(stats ui.StatsInfo, dir string) ui.StatsInfo {
	if dir == "" {
		return stats
	}
	db := filepath.Join(dir, store.DocumentsFile)
	vectors := filepath.Join(dir, store.VectorsFile)

	stats.DatabaseSize = fileSize(db) + fileSize(db+"-wal") + fileSize(db+"-shm")
	stats.VectorSize = fileSize(vectors) + fileSize(vectors+".hnsw")
	stats.KeywordSize = dirSize(filepath.Join(dir, store.BleveDir))
	return stats
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
