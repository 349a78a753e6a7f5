package cmd

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/embed"
	"github.com/Aman-CERP/ragstore/internal/preflight"
	"github.com/Aman-CERP/ragstore/internal/search"
)

// doctorReport is the --json output of doctor.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(g *globalOptions) *cobra.Command {
	var (
		jsonOutput bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment before using the store",
		Long: `Check that the storage directory is writable with enough free space,
that no other process holds the store, and that the configured embedding
provider answers with vectors of the configured dimension.

The store itself is not opened, so doctor also works while serve runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			opts := []preflight.Option{preflight.WithProbeTimeout(cfg.Embeddings.Timeout)}
			embedder, embedErr := embed.NewEmbedder(ctx, search.EngineConfigFromConfig(cfg).Embeddings)
			if embedErr == nil {
				defer func() { _ = embedder.Close() }()
				opts = append(opts, preflight.WithEmbedder(embedder))
			}

			results := preflight.New(opts...).Run(ctx, cfg.Storage.Path)
			if embedErr != nil {
				results = append(results, preflight.CheckResult{
					Name:     "embedder",
					Status:   preflight.StatusFail,
					Message:  embedErr.Error(),
					Required: true,
				})
			}
			status := preflight.SummaryStatus(results)
			slog.Info("doctor_completed", slog.String("status", status))

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(doctorReport{Status: status, Checks: results}); err != nil {
					return err
				}
			} else {
				preflight.Print(cmd.OutOrStdout(), results, verbose)
			}

			if preflight.HasCriticalFailures(results) {
				return errors.New("environment checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")
	return cmd
}
