package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/addrcrawl/internal/adapters/driving/mcp"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driving/rest"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

var (
	serveListen string
	serveNoMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the delegation server",
	Long: `Start the HTTP server that peer servers delegate shared folder crawls to.

Endpoints:
  POST /service/extension/contacts/remotefolder  delegated crawl
  GET  /version                                  build version
  GET  /metrics                                  Prometheus metrics
  /mcp                                           MCP over streamable HTTP
                                                 (requires Authorization: Token)

The config file is watched while the server runs; changes to the directory
attribute table and the delegation timeout apply to crawls started afterwards.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoMCP, "no-mcp", false, "do not mount the MCP endpoint")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if remoteFolderService == nil {
		return errors.New("remote folder service not configured")
	}

	addr := serveListen
	if addr == "" {
		addr = listenAddr
	}
	if addr == "" {
		return errors.New("no listen address configured")
	}

	ports := &rest.Ports{
		RemoteFolder: remoteFolderService,
		Metrics:      metricsHandler,
	}
	if !serveNoMCP && contactsService != nil {
		handler, err := mcpHandler()
		if err != nil {
			return err
		}
		ports.MCP = handler
	}

	server, err := rest.NewServer(ports, version)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return server.RunHTTP(ctx, addr)
	})
	if configWatcher != nil && configReloader != nil {
		g.Go(func() error {
			return watchConfig(ctx)
		})
	}

	cmd.Printf("Delegation server listening on %s\n", addr)
	return g.Wait()
}

// mcpHandler builds the authenticated MCP endpoint. It returns nil when no
// token verifier is configured, leaving /mcp unmounted.
func mcpHandler() (http.Handler, error) {
	if tokenVerifier == nil {
		logger.Warn("No auth secret configured, %s is not served", mcp.Path)
		return nil, nil
	}
	server, err := mcp.NewServer(&mcp.Ports{Contacts: contactsService})
	if err != nil {
		return nil, err
	}
	return server.Handler(tokenVerifier)
}

// watchConfig reloads the running services whenever the config file changes.
// A failed reload keeps the previous configuration.
func watchConfig(ctx context.Context) error {
	err := configWatcher(ctx, func() {
		if err := configReloader(); err != nil {
			logger.Warn("Config reload failed, keeping previous settings: %v", err)
			return
		}
		logger.Info("Configuration reloaded")
	})
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	return nil
}
