package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/search"
	"github.com/Aman-CERP/ragstore/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit      int
	alpha      float64
	filter     map[string]string
	jsonOutput bool
	preview    int
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the store",
		Long: `Search the store using hybrid retrieval.

Each result's score is alpha * semantic + (1 - alpha) * keyword, where the
semantic score is cosine similarity and the keyword score is BM25 relevance
normalized to [0, 1]. --alpha 1 is pure semantic, --alpha 0 pure keyword.`,
		Example: `  ragstore search "vector index compaction"
  ragstore search "error handling" --limit 3 --alpha 0.3
  ragstore search "release notes" --filter team=search --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			searchOpts, err := opts.toSearchOptions(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, g, query, searchOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.default_k)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", 0, "Semantic weight in [0,1] (default: search.hybrid_alpha)")
	cmd.Flags().StringToStringVar(&opts.filter, "filter", nil, "Metadata key=value results must match (repeatable)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().IntVar(&opts.preview, "preview", 300, "Characters of content shown per result (0 for all)")

	return cmd
}

// toSearchOptions converts flags to engine options. Alpha is only set when
// the flag was given, so 0 stays distinguishable from unset.
func (o searchOptions) toSearchOptions(cmd *cobra.Command) (search.Options, error) {
	filter, err := parseKeyValues(o.filter)
	if err != nil {
		return search.Options{}, fmt.Errorf("invalid --filter: %w", err)
	}
	opts := search.Options{K: o.limit, Filter: filter}
	if cmd.Flags().Changed("alpha") {
		opts.Alpha = search.Alpha(o.alpha)
	}
	return opts, nil
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globalOptions, query string, searchOpts search.Options, opts searchOptions) error {
	engine, _, err := g.openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	start := time.Now()
	results, err := engine.Search(ctx, query, searchOpts)
	if err != nil {
		return err
	}
	slog.Info("search_complete",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Duration("duration", time.Since(start)))

	renderer := ui.NewResultsRenderer(cmd.OutOrStdout(), g.noColor || !ui.IsTTY(cmd.OutOrStdout()), opts.preview)
	if opts.jsonOutput {
		return renderer.RenderJSON(results)
	}
	return renderer.Render(query, results)
}
