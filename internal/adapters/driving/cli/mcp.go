package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/addrcrawl/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can read
address books through the get_contacts and get_contacts_tree tools.

By default, the server communicates over stdio using JSON-RPC.
Use --port to start an HTTP server instead. HTTP callers must send
"Authorization: Token <token>" (see the token command) and can only
read the account the token was issued to.

Examples:
  # Stdio mode (default)
  addrcrawl mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  addrcrawl mcp serve --port 8080`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if contactsService == nil {
		return errors.New("contacts service not configured")
	}

	server, err := mcp.NewServer(&mcp.Ports{Contacts: contactsService})
	if err != nil {
		return err
	}

	if port > 0 {
		if tokenVerifier == nil {
			return errors.New("token verifier not configured: set auth.secret to serve MCP over HTTP")
		}
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s%s\n", addr, mcp.Path)
		return server.RunHTTP(cmd.Context(), addr, tokenVerifier)
	}

	return server.Run(cmd.Context())
}
