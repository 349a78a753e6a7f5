package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/output"
	"github.com/Aman-CERP/ragstore/internal/store"
)

func newGetCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a stored chunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := g.openEngine(cmd.Context())
			if err != nil {
				return err
			}
			defer closeEngine(engine)

			doc, err := engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			renderDocument(g.output(cmd), doc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderDocument(out *output.Writer, doc *store.Document) {
	out.Header(doc.ID)
	kv := map[string]string{
		"source":  doc.SourceID,
		"created": doc.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		"length":  strconv.Itoa(len([]rune(doc.Content))),
	}
	for _, k := range slices.Sorted(maps.Keys(doc.Metadata)) {
		kv["meta."+k] = fmt.Sprint(doc.Metadata[k])
	}
	out.KeyValues(kv)
	out.Newline()
	out.Code(doc.Content)
}
