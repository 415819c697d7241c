// Package config turns the raw configuration store into typed settings.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/addrcrawl/internal/core/domain"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

// Configuration keys.
const (
	KeyServerName        = "server.name"
	KeyListen            = "server.listen"
	KeyAuthSecret        = "auth.secret"
	KeyAuthTTL           = "auth.ttl"
	KeyDelegationTimeout = "delegation.timeout"
	KeyDelegationRate    = "delegation.rate"
	KeyDelegationBurst   = "delegation.burst"
	KeyBreakerFailures   = "delegation.breaker_failures"
	KeyParallelism       = "crawl.parallelism"
	KeyStoragePath       = "storage.path"
	KeyDirectoryAttrs    = "directory.attrs"
	KeyServers           = "servers"
)

const (
	defaultServerName      = "localhost"
	defaultListen          = ":7071"
	defaultDatabaseName    = "addrcrawl.db"
	defaultAuthTTL         = time.Hour
	defaultTimeout         = 30 * time.Second
	defaultRate            = 10
	defaultBurst           = 5
	defaultBreakerFailures = 5
	defaultParallelism     = 4
)

// ErrInvalidConfig indicates the configuration failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// AppConfig is the typed application configuration.
type AppConfig struct {
	ServerName        string `validate:"required"`
	Listen            string `validate:"required"`
	AuthSecret        string
	AuthTTL           time.Duration `validate:"gt=0"`
	DelegationTimeout time.Duration `validate:"gt=0"`
	DelegationRate    float64       `validate:"gt=0"`
	DelegationBurst   int           `validate:"gte=1"`
	BreakerFailures   int           `validate:"gte=1"`
	Parallelism       int           `validate:"gte=1"`
	StoragePath       string        `validate:"required"`
	DirectoryAttrs    map[string]string // nil selects the crawler defaults
	Servers           []domain.Server `validate:"dive"`
}

var validate = validator.New()

// Load reads the application configuration from store, filling defaults.
func Load(store driven.ConfigStore) (AppConfig, error) {
	cfg := AppConfig{
		ServerName:        orString(store.GetString(KeyServerName), defaultServerName),
		Listen:            orString(store.GetString(KeyListen), defaultListen),
		AuthSecret:        store.GetString(KeyAuthSecret),
		AuthTTL:           orDuration(store.GetDuration(KeyAuthTTL), defaultAuthTTL),
		DelegationTimeout: orDuration(store.GetDuration(KeyDelegationTimeout), defaultTimeout),
		DelegationRate:    store.GetFloat(KeyDelegationRate),
		DelegationBurst:   orInt(store.GetInt(KeyDelegationBurst), defaultBurst),
		BreakerFailures:   orInt(store.GetInt(KeyBreakerFailures), defaultBreakerFailures),
		Parallelism:       orInt(store.GetInt(KeyParallelism), defaultParallelism),
		StoragePath:       store.GetString(KeyStoragePath),
		DirectoryAttrs:    store.GetStringMap(KeyDirectoryAttrs),
	}
	if cfg.DelegationRate <= 0 {
		cfg.DelegationRate = defaultRate
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = filepath.Join(filepath.Dir(store.Path()), defaultDatabaseName)
	}
	if len(cfg.DirectoryAttrs) == 0 {
		// crawler falls back to its built-in table
		cfg.DirectoryAttrs = nil
	}

	servers, err := loadServers(store)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Servers = servers

	if err := validate.Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Server returns the configured peer with the given name.
func (c AppConfig) Server(name string) (domain.Server, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return domain.Server{}, false
}

func loadServers(store driven.ConfigStore) ([]domain.Server, error) {
	names := store.Keys(KeyServers)
	sort.Strings(names)

	servers := make([]domain.Server, 0, len(names))
	for _, name := range names {
		prefix := KeyServers + "." + name + "."
		s := domain.Server{
			Name:    name,
			Host:    store.GetString(prefix + "host"),
			Mode:    domain.ServerMode(store.GetString(prefix + "mode")),
			Port:    store.GetInt(prefix + "port"),
			SSLPort: store.GetInt(prefix + "ssl_port"),
		}
		if s.Mode == "" {
			s.Mode = domain.ServerModeHTTPS
		}
		if !s.Mode.IsValid() {
			return nil, fmt.Errorf("%w: server %s: unknown mode %q", ErrInvalidConfig, name, s.Mode)
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
