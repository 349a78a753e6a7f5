package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/ragstore/internal/chunk"
	"github.com/Aman-CERP/ragstore/internal/search"
	"github.com/Aman-CERP/ragstore/internal/store"
	"github.com/Aman-CERP/ragstore/internal/telemetry"
	"github.com/Aman-CERP/ragstore/pkg/version"
)

// serverName identifies ragstore to MCP clients.
const serverName = "ragstore"

// Result limits for the search tool.
const (
	defaultSearchK = 5
	maxSearchK     = 50
)

// defaultTopTerms is how many terms query_stats reports when unasked.
const defaultTopTerms = 10

// Engine is the retrieval API the server exposes. *search.Engine
// implements it.
type Engine interface {
	Search(ctx context.Context, query string, opts search.Options) ([]search.Result, error)
	AddText(ctx context.Context, text string, metadata map[string]any, doChunk bool) ([]string, error)
	Get(ctx context.Context, id string) (*store.Document, error)
	Delete(ctx context.Context, id string) (int, error)
	Stats(ctx context.Context) (*search.Stats, error)
}

var _ Engine = (*search.Engine)(nil)

// Server is the MCP server for ragstore. It bridges AI clients with the
// hybrid retrieval engine.
type Server struct {
	mcp      *mcp.Server
	engine   Engine
	defaultK int
	logger   *slog.Logger
	queries  *telemetry.QueryMetrics
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// tools lists every registered tool.
var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Hybrid search over stored documents. Combines semantic similarity with keyword relevance; alpha weights the two (1 = semantic only, 0 = keyword only). Supports metadata filters.",
	},
	{
		Name:        "add_text",
		Description: "Store a text. Long texts are split into overlapping chunks, each embedded and indexed. Returns the chunk ids and the source id.",
	},
	{
		Name:        "get_document",
		Description: "Fetch a stored chunk by id, with its metadata.",
	},
	{
		Name:        "delete",
		Description: "Delete a chunk by chunk id, or every chunk of a text by source id.",
	},
	{
		Name:        "stats",
		Description: "Report document, chunk and vector counts, the embedding model and the active index backends.",
	},
	{
		Name:        "query_stats",
		Description: "Report statistics about searches served since the server started: counts by mode, latency histogram, top terms and recent queries that found nothing.",
	},
}

// NewServer creates a new MCP server. defaultK <= 0 uses 5.
func NewServer(engine Engine, defaultK int) (*Server, error) {
	if engine == nil {
		return nil, errors.New("retrieval engine is required")
	}
	if defaultK <= 0 {
		defaultK = defaultSearchK
	}

	s := &Server{
		engine:   engine,
		defaultK: defaultK,
		logger:   slog.Default(),
		queries:  telemetry.NewQueryMetrics(telemetry.DefaultConfig()),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func toolDescription(name string) string {
	for _, t := range tools {
		if t.Name == name {
			return t.Description
		}
	}
	return ""
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "search", Description: toolDescription("search")}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "add_text", Description: toolDescription("add_text")}, s.mcpAddTextHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "get_document", Description: toolDescription("get_document")}, s.mcpGetDocumentHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "delete", Description: toolDescription("delete")}, s.mcpDeleteHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "stats", Description: toolDescription("stats")}, s.mcpStatsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: "query_stats", Description: toolDescription("query_stats")}, s.mcpQueryStatsHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool by name with JSON-style arguments, as a client
// would. It returns the tool's structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.search(ctx, in)
	case "add_text":
		var in AddTextInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.addText(ctx, in)
	case "get_document":
		var in GetDocumentInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.getDocument(ctx, in)
	case "delete":
		var in DeleteInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.deleteDocument(ctx, in)
	case "stats":
		return s.stats(ctx)
	case "query_stats":
		var in QueryStatsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.queryStats(in), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// decodeArgs converts loosely typed arguments into a tool input.
func decodeArgs(args map[string]any, into any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// =============================================================================
// Tool implementations
// =============================================================================

func (s *Server) search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(in.Query) == "" {
		return SearchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if in.Alpha != nil && (*in.Alpha < 0 || *in.Alpha > 1) {
		return SearchOutput{}, NewInvalidParamsError(fmt.Sprintf("alpha must be between 0 and 1, got %v", *in.Alpha))
	}
	k := clampLimit(in.K, s.defaultK, 1, maxSearchK)

	s.logger.Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("k", k))

	results, err := s.engine.Search(ctx, in.Query, search.Options{K: k, Filter: in.Filter, Alpha: in.Alpha})
	duration := time.Since(start)
	s.queries.Record(telemetry.QueryEvent{
		Query:       in.Query,
		Mode:        telemetry.ModeForAlpha(in.Alpha),
		Filtered:    len(in.Filter) > 0,
		ResultCount: len(results),
		Latency:     duration,
		Failed:      err != nil,
	})
	if err != nil {
		s.logger.Error("search failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return SearchOutput{}, MapError(err)
	}

	s.logger.Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", duration),
		slog.Int("result_count", len(results)))

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range filterValidResults(results) {
		out.Results = append(out.Results, toSearchResultOutput(r))
	}
	return out, nil
}

func (s *Server) addText(ctx context.Context, in AddTextInput) (AddTextOutput, error) {
	if strings.TrimSpace(in.Text) == "" {
		return AddTextOutput{}, NewInvalidParamsError("text cannot be empty")
	}
	doChunk := in.Chunk == nil || *in.Chunk

	ids, err := s.engine.AddText(ctx, in.Text, in.Metadata, doChunk)
	if err != nil {
		s.logger.Error("add_text failed", slog.String("error", err.Error()))
		return AddTextOutput{}, MapError(err)
	}
	s.logger.Info("add_text completed", slog.Int("chunks", len(ids)))
	return AddTextOutput{IDs: ids, SourceID: chunk.SourceID(in.Text)}, nil
}

func (s *Server) getDocument(ctx context.Context, in GetDocumentInput) (DocumentOutput, error) {
	if in.ID == "" {
		return DocumentOutput{}, NewInvalidParamsError("id parameter is required")
	}
	doc, err := s.engine.Get(ctx, in.ID)
	if err != nil {
		return DocumentOutput{}, MapError(err)
	}
	return toDocumentOutput(doc), nil
}

func (s *Server) deleteDocument(ctx context.Context, in DeleteInput) (DeleteOutput, error) {
	if in.ID == "" {
		return DeleteOutput{}, NewInvalidParamsError("id parameter is required")
	}
	n, err := s.engine.Delete(ctx, in.ID)
	if err != nil {
		return DeleteOutput{}, MapError(err)
	}
	s.logger.Info("delete completed", slog.String("id", in.ID), slog.Int("chunks", n))
	return DeleteOutput{ID: in.ID, Deleted: n}, nil
}

func (s *Server) stats(ctx context.Context) (*StatsOutput, error) {
	stats, err := s.engine.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return stats, nil
}

func (s *Server) queryStats(in QueryStatsInput) *QueryStatsOutput {
	top := in.Top
	if top <= 0 {
		top = defaultTopTerms
	}
	snap := s.queries.Snapshot(top)
	return &snap
}

// =============================================================================
// MCP SDK handlers
// =============================================================================

// mcpSearchHandler returns the structured results plus a markdown rendering.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	results := make([]search.Result, len(out.Results))
	for i, r := range out.Results {
		results[i] = search.Result{
			Document: &store.Document{
				ID: r.ID, SourceID: r.SourceID, Content: r.Content, Metadata: r.Metadata,
			},
			Score:         r.Score,
			SemanticScore: r.SemanticScore,
			KeywordScore:  r.KeywordScore,
			Highlights:    r.Highlights,
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(input.Query, results)}},
	}, out, nil
}

func (s *Server) mcpAddTextHandler(ctx context.Context, _ *mcp.CallToolRequest, input AddTextInput) (
	*mcp.CallToolResult,
	AddTextOutput,
	error,
) {
	out, err := s.addText(ctx, input)
	return nil, out, err
}

func (s *Server) mcpGetDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentInput) (
	*mcp.CallToolResult,
	DocumentOutput,
	error,
) {
	out, err := s.getDocument(ctx, input)
	return nil, out, err
}

func (s *Server) mcpDeleteHandler(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (
	*mcp.CallToolResult,
	DeleteOutput,
	error,
) {
	out, err := s.deleteDocument(ctx, input)
	return nil, out, err
}

func (s *Server) mcpStatsHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatsInput) (
	*mcp.CallToolResult,
	*StatsOutput,
	error,
) {
	out, err := s.stats(ctx)
	return nil, out, err
}

func (s *Server) mcpQueryStatsHandler(_ context.Context, _ *mcp.CallToolRequest, input QueryStatsInput) (
	*mcp.CallToolResult,
	*QueryStatsOutput,
	error,
) {
	return nil, s.queryStats(input), nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	return uuid.New().String()[:8]
}
