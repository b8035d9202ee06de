package cli

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	mcpserver "github.com/m-mizutani/kioku/pkg/service/mcp"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	var cfg config

	cmd := &cli.Command{
		Name:  "kioku",
		Usage: "Memory server with pluggable storage backends",
		Flags: globalFlags(&cfg),
		Commands: []*cli.Command{
			serveCommand(&cfg),
			addCommand(&cfg),
			listCommand(&cfg),
			searchCommand(&cfg),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// setupLogging binds the configured logger to the context. Logs go to
// stderr: stdout is the MCP channel in stdio mode.
func (cfg *config) setupLogging(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

func serveCommand(cfg *config) *cli.Command {
	var (
		transport string
		addr      string
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the memory tools over MCP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "transport",
				Aliases:     []string{"t"},
				Usage:       "MCP transport (stdio or http)",
				Value:       "stdio",
				Sources:     cli.EnvVars("KIOKU_TRANSPORT"),
				Destination: &transport,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "Listen address for the http transport",
				Value:       "127.0.0.1:8080",
				Sources:     cli.EnvVars("KIOKU_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			logging.From(ctx).Info("starting MCP server",
				"backend", cfg.backend, "transport", transport)

			server := mcpserver.New(uc)
			switch transport {
			case "stdio":
				return server.ServeStdio(ctx)
			case "http":
				return server.ServeHTTP(ctx, addr)
			default:
				return goerr.New("unsupported transport",
					goerr.V("transport", transport),
					goerr.V("supported", []string{"stdio", "http"}))
			}
		},
	}
}

func addCommand(cfg *config) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Store a new memory",
		ArgsUsage: "<content>",
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)
			content := strings.Join(c.Args().Slice(), " ")

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			mem, err := uc.Add(ctx, content)
			if err != nil {
				return err
			}

			return printJSON(map[string]any{
				"id":         mem.ID,
				"created_at": mem.CreatedAt,
			})
		},
	}
}

func listCommand(cfg *config) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List all stored memories",
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			memories, err := uc.List(ctx)
			if err != nil {
				return err
			}

			items := make([]map[string]any, 0, len(memories))
			for _, m := range memories {
				items = append(items, map[string]any{
					"id":         m.ID,
					"content":    m.Content,
					"created_at": m.CreatedAt,
				})
			}
			return printJSON(map[string]any{"memories": items})
		},
	}
}

func searchCommand(cfg *config) *cli.Command {
	var limit int64

	return &cli.Command{
		Name:      "search",
		Usage:     "Search memories by semantic similarity",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "limit",
				Aliases:     []string{"n"},
				Usage:       "Maximum number of results",
				Value:       5,
				Destination: &limit,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)
			query := strings.Join(c.Args().Slice(), " ")

			uc, closer, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closer()

			results, err := uc.Search(ctx, query, int(limit))
			if err != nil {
				return err
			}

			items := make([]map[string]any, 0, len(results))
			for _, r := range results {
				items = append(items, map[string]any{
					"id":      r.ID,
					"content": r.Content,
					"score":   r.Score,
				})
			}
			return printJSON(map[string]any{"results": items})
		},
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}
