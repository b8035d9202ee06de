// Package mcp exposes the memory operations as MCP tools. The server is a
// thin pass-through to the usecase layer; limit defaulting is the only
// transport-side behavior.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	memoryuc "github.com/m-mizutani/kioku/pkg/usecase/memory"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultSearchLimit = 5

// Server wraps an MCP server with the three memory tools registered
type Server struct {
	uc  *memoryuc.UseCase
	mcp *mcp.Server
}

type addMemoryInput struct {
	Content string `json:"content"`
}

type searchMemoryInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// New creates an MCP server bound to the given usecase
func New(uc *memoryuc.UseCase) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kioku",
		Version: "0.1.0",
	}, nil)

	x := &Server{uc: uc, mcp: server}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_memory",
		Description: "Store a new memory. The content is embedded and becomes searchable immediately.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"content": {
					Type:        "string",
					Description: "Text content to store",
				},
			},
			Required: []string{"content"},
		},
	}, x.addMemory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_memories",
		Description: "List all stored memories in insertion order.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, x.listMemories)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_memory",
		Description: "Search stored memories by semantic similarity.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Natural language search query",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of results (defaults to 5)",
				},
			},
			Required: []string{"query"},
		},
	}, x.searchMemory)

	return x
}

func (x *Server) addMemory(ctx context.Context, req *mcp.CallToolRequest, input *addMemoryInput) (*mcp.CallToolResult, any, error) {
	mem, err := x.uc.Add(ctx, input.Content)
	if err != nil {
		return nil, nil, err
	}

	return textResult(map[string]any{
		"id":         mem.ID,
		"created_at": mem.CreatedAt,
	})
}

func (x *Server) listMemories(ctx context.Context, req *mcp.CallToolRequest, input *struct{}) (*mcp.CallToolResult, any, error) {
	memories, err := x.uc.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	items := make([]map[string]any, 0, len(memories))
	for _, m := range memories {
		items = append(items, map[string]any{
			"id":         m.ID,
			"content":    m.Content,
			"created_at": m.CreatedAt,
		})
	}

	return textResult(map[string]any{"memories": items})
}

func (x *Server) searchMemory(ctx context.Context, req *mcp.CallToolRequest, input *searchMemoryInput) (*mcp.CallToolResult, any, error) {
	limit := input.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}

	results, err := x.uc.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, nil, err
	}

	items := make([]map[string]any, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]any{
			"id":      r.ID,
			"content": r.Content,
			"score":   r.Score,
		})
	}

	return textResult(map[string]any{"results": items})
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// Run serves MCP sessions over the given transport until ctx is done
func (x *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := x.mcp.Run(ctx, transport); err != nil {
		return goerr.Wrap(err, "MCP server failed")
	}
	return nil
}

// ServeStdio serves a single MCP session over stdin/stdout
func (x *Server) ServeStdio(ctx context.Context) error {
	return x.Run(ctx, &mcp.StdioTransport{})
}

// ServeHTTP serves MCP over streamable HTTP until ctx is done
func (x *Server) ServeHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return x.mcp
	}, nil)

	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.From(ctx).Warn("failed to shut down MCP HTTP server", "error", err)
		}
	}()

	logging.From(ctx).Info("serving MCP over HTTP", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return goerr.Wrap(err, "MCP HTTP server failed", goerr.V("addr", addr))
	}
	return nil
}
