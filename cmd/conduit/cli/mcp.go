package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduitdb/conduit/internal/dialect"
	"github.com/conduitdb/conduit/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		addr      string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server, exposing the declared query and
batch endpoints as tools for LLM clients.

The stdio transport is for local clients that spawn conduit as a subprocess
(Claude Desktop and similar); the http transport serves streamable HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs must not pollute the stdio protocol stream.
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			store, err := openConfigStore()
			if err != nil {
				return err
			}
			defer store.Close()

			registry := dialect.NewRegistry()
			defer registry.CloseAll()
			connectServices(cmd.Context(), store, registry, logger)

			srv := mcp.NewMCPServer(registry, store, logger)

			switch transport {
			case "stdio":
				return srv.ServeStdio()
			case "http":
				logger.Info("starting MCP server", "transport", "http", "addr", addr)
				return srv.ServeHTTP(addr)
			default:
				return fmt.Errorf("unknown transport %q: use stdio or http", transport)
			}
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "transport: stdio or http")
	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address for the http transport")
	return cmd
}
