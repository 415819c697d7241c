// Command addrcrawl crawls address books and serves delegated crawls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/auth"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/codec"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/config"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/config/file"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/delegate"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/metrics"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/addrcrawl/internal/adapters/driving/cli"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/core/services"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// homeEnv overrides the configuration directory.
const homeEnv = "ADDRCRAWL_HOME"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// 1. Configuration
	cfgStore, err := file.NewConfigStore(os.Getenv(homeEnv))
	if err != nil {
		return report(fmt.Errorf("open config: %w", err))
	}
	cfg, err := config.Load(cfgStore)
	if err != nil {
		return report(err)
	}

	// 2. Storage
	store, err := sqlite.NewStore(cfg.StoragePath, cfg.ServerName)
	if err != nil {
		return report(err)
	}
	defer store.Close()
	if err := syncServers(ctx, store, cfg); err != nil {
		return report(err)
	}

	// 3. Crawler and its collaborators
	collector := metrics.NewCollector()
	client := delegate.NewClient(store, delegate.Options{
		Rate:            cfg.DelegationRate,
		Burst:           cfg.DelegationBurst,
		BreakerFailures: uint32(cfg.BreakerFailures),
	})
	crawler := services.NewCrawler(cfg.ServerName, store, store, codec.NewJSONCodec(), client, collector, crawlOptions(cfg))

	// 4. Session tokens, only when a secret is configured
	var (
		issuer   driven.TokenIssuer
		verifier driven.TokenVerifier
	)
	if cfg.AuthSecret != "" {
		tokens, err := auth.NewTokenService(cfg.AuthSecret, cfg.AuthTTL)
		if err != nil {
			return report(err)
		}
		issuer, verifier = tokens, tokens
	} else {
		logger.Debug("No %s configured, remote shares and delegated crawls are disabled", config.KeyAuthSecret)
	}

	// 5. Driving side
	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Contacts:     services.NewContactsService(crawler, store, issuer),
		RemoteFolder: services.NewRemoteFolderService(crawler, verifier),
		Settings:     store,
		Tokens:       issuer,
		Verifier:     verifier,
		Metrics:      collector.Handler(),
		Listen:       cfg.Listen,
		Watch:        cfgStore.Watch,
		Reload: func() error {
			next, err := config.Load(cfgStore)
			if err != nil {
				return err
			}
			if err := syncServers(ctx, store, next); err != nil {
				return err
			}
			crawler.SetOptions(crawlOptions(next))
			return nil
		},
	})

	return cli.Execute(ctx)
}

func crawlOptions(cfg config.AppConfig) services.CrawlOptions {
	return services.CrawlOptions{
		Parallelism:       cfg.Parallelism,
		DelegationTimeout: cfg.DelegationTimeout,
		DirectoryAttrs:    cfg.DirectoryAttrs,
	}
}

// syncServers records the configured peers so URL resolution can find them.
func syncServers(ctx context.Context, store *sqlite.Store, cfg config.AppConfig) error {
	for _, srv := range cfg.Servers {
		if err := store.SaveServer(ctx, srv); err != nil {
			return err
		}
	}
	return nil
}

func report(err error) error {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return err
}
