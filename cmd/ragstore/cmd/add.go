package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragstore/internal/chunk"
	"github.com/Aman-CERP/ragstore/internal/ignore"
	"github.com/Aman-CERP/ragstore/internal/search"
	"github.com/Aman-CERP/ragstore/internal/ui"
)

// stdinSource names text read from standard input.
const stdinSource = "-"

// addOptions holds CLI flags for add.
type addOptions struct {
	meta       map[string]string
	noChunk    bool
	id         string
	extensions []string
	plain      bool
	jsonOutput bool
}

// addedSource reports what one input produced.
type addedSource struct {
	Source   string   `json:"source"`
	SourceID string   `json:"source_id"`
	ChunkIDs []string `json:"chunk_ids"`
	Error    string   `json:"error,omitempty"`
}

// sourceText is one input ready to ingest.
type sourceText struct {
	name string
	text string
}

func newAddCmd(g *globalOptions) *cobra.Command {
	opts := addOptions{}

	cmd := &cobra.Command{
		Use:   "add [path...]",
		Short: "Add text files to the store",
		Long: `Add text to the store. Each file is split into overlapping chunks,
embedded and indexed for both semantic and keyword search.

Directories are walked for files with the extensions given by --ext.
Hidden directories are skipped, as is anything matched by a .gitignore or
.ragignore file in the walked tree. With no path, or the path "-", text is read from standard input.

Re-adding unchanged text is a no-op: chunk ids are derived from content.`,
		Example: `  ragstore add notes.md
  ragstore add docs/ --ext .md,.txt --meta team=search
  echo "some text" | ragstore add --meta lang=en
  ragstore add design.txt --id design-v2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), cmd, g, args, opts)
		},
	}

	cmd.Flags().StringToStringVar(&opts.meta, "meta", nil, "Metadata key=value attached to every chunk (repeatable)")
	cmd.Flags().BoolVar(&opts.noChunk, "no-chunk", false, "Store each input as a single document")
	cmd.Flags().StringVar(&opts.id, "id", "", "Source id for a single input (default: content hash)")
	cmd.Flags().StringSliceVar(&opts.extensions, "ext", []string{".txt", ".md"}, "File extensions to include when walking directories")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain progress output (no TUI)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print added ids as JSON instead of progress")

	return cmd
}

func runAdd(ctx context.Context, cmd *cobra.Command, g *globalOptions, args []string, opts addOptions) error {
	metadata, err := parseKeyValues(opts.meta)
	if err != nil {
		return fmt.Errorf("invalid --meta: %w", err)
	}

	paths, err := expandInputs(args, opts.extensions)
	if err != nil {
		return err
	}
	if opts.id != "" && len(paths) != 1 {
		return fmt.Errorf("--id needs exactly one input, got %d", len(paths))
	}
	if opts.id != "" && opts.noChunk {
		return fmt.Errorf("--id and --no-chunk cannot be combined")
	}

	engine, cfg, err := g.openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	var renderer ui.Renderer
	if !opts.jsonOutput {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.plain),
			ui.WithNoColor(g.noColor),
			ui.WithStoragePath(cfg.Storage.Path)))
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = renderer.Stop() }()
	}
	report := newAddReporter(renderer)

	start := time.Now()
	sources := readSources(cmd.InOrStdin(), paths, report)

	report.stage(ui.StageIngesting, len(sources))
	results := make([]addedSource, 0, len(sources))
	chunks, failed := 0, 0
	for i, src := range sources {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		added := ingestSource(ctx, engine, src, metadata, opts)
		results = append(results, added)
		if added.Error != "" {
			failed++
			report.fail(src.name, errors.New(added.Error))
		}
		chunks += len(added.ChunkIDs)
		report.progress(ui.StageIngesting, i+1, len(sources), chunks, src.name,
			fmt.Sprintf("%s: %d chunks (source %s)", src.name, len(added.ChunkIDs), added.SourceID))
	}

	slog.Info("add_completed",
		slog.Int("sources", len(sources)),
		slog.Int("chunks", chunks),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		renderer.Complete(ui.IngestSummary{
			Sources:  len(sources) - failed,
			Chunks:   chunks,
			Duration: time.Since(start),
			Errors:   report.errors,
			Embedder: ui.EmbedderInfo{
				Model:      engine.Embedder().ModelName(),
				Dimensions: engine.Embedder().Dimensions(),
			},
		})
	}

	if report.errors > 0 {
		return fmt.Errorf("%d of %d inputs failed", report.errors, len(paths))
	}
	return nil
}

// ingestSource stores one input and reports its ids.
func ingestSource(ctx context.Context, engine *search.Engine, src sourceText, metadata map[string]any, opts addOptions) addedSource {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	if src.name != stdinSource {
		meta["source"] = src.name
	}

	added := addedSource{Source: src.name, SourceID: chunk.SourceID(src.text)}

	var (
		ids []string
		err error
	)
	switch {
	case opts.noChunk:
		ids, err = engine.AddText(ctx, src.text, meta, false)
	case opts.id != "":
		added.SourceID = opts.id
		ids, err = engine.AddDocuments(ctx, []search.DocumentInput{{ID: opts.id, Text: src.text, Metadata: meta}})
	default:
		ids, err = engine.AddText(ctx, src.text, meta, true)
	}
	if err != nil {
		added.Error = err.Error()
		return added
	}
	added.ChunkIDs = ids
	return added
}

// readSources reads every input, reporting unreadable files and skipping
// them.
func readSources(stdin io.Reader, paths []string, report *addReporter) []sourceText {
	report.stage(ui.StageReading, len(paths))

	sources := make([]sourceText, 0, len(paths))
	for i, p := range paths {
		var (
			data []byte
			err  error
		)
		if p == stdinSource {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			report.fail(p, err)
			continue
		}
		sources = append(sources, sourceText{name: p, text: string(data)})
		report.progress(ui.StageReading, i+1, len(paths), 0, p, "")
	}
	return sources
}

// expandInputs resolves args to file paths. No args means stdin;
// directories expand to their matching files in lexical order.
func expandInputs(args []string, extensions []string) ([]string, error) {
	if len(args) == 0 {
		return []string{stdinSource}, nil
	}

	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	var paths []string
	for _, arg := range args {
		if arg == stdinSource {
			paths = append(paths, stdinSource)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		found, err := ignore.Walk(arg, func(path string) bool {
			return exts[strings.ToLower(filepath.Ext(path))]
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
		paths = append(paths, found...)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matching %s found", strings.Join(extensions, ","))
	}
	return paths, nil
}

// addReporter forwards progress to an optional renderer and counts errors.
type addReporter struct {
	renderer ui.Renderer
	errors   int
}

func newAddReporter(r ui.Renderer) *addReporter {
	return &addReporter{renderer: r}
}

func (r *addReporter) stage(stage ui.Stage, total int) {
	if r.renderer != nil {
		r.renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   stage,
			Total:   total,
			Message: fmt.Sprintf("%s %d inputs", stage, total),
		})
	}
}

func (r *addReporter) progress(stage ui.Stage, current, total, chunks int, source, message string) {
	if r.renderer == nil {
		return
	}
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   stage,
		Current: current,
		Total:   total,
		Source:  source,
		Chunks:  chunks,
		Message: message,
	})
}

func (r *addReporter) fail(source string, err error) {
	r.errors++
	slog.Warn("add_source_failed", slog.String("source", source), slog.String("error", err.Error()))
	if r.renderer != nil {
		r.renderer.AddError(ui.ErrorEvent{Source: source, Err: err})
	}
}
