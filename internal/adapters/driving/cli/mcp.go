package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/brief-cli/internal/adapters/driving/mcp"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search the
knowledge base, assemble context and ingest text.

The server speaks JSON-RPC over stdio unless --port is given, in which case it
serves the streamable HTTP transport on --host:--port. The ingest_text tool is
only offered when a knowledge store is configured.

Examples:
  # Stdio mode (default)
  brief mcp serve

  # HTTP on all interfaces with a metrics endpoint
  brief mcp serve --host 0.0.0.0 --port 8080 --metrics-addr :9464

Assistant configuration:
  {
    "mcpServers": {
      "brief": {
        "command": "/path/to/brief",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().String("host", "127.0.0.1", "HTTP listen host")
	mcpServeCmd.Flags().String("metrics-addr", "", "Metrics listen address (default from settings)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", domain.ErrInvalidInput, port)
	}

	ports := &mcp.Ports{
		Search:   searchService,
		Context:  contextService,
		Ingest:   ingestService,
		Document: documentService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	stopMetrics, err := startMetrics(cmd)
	if err != nil {
		return err
	}
	defer stopMetrics()

	if port > 0 {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
