// Package api parses data API flags and runs the player record service.
package api

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	playerapi "github.com/pefman/tower-duel/internal/api"
	entrypoint "github.com/pefman/tower-duel/internal/platform/cmd"
	"github.com/pefman/tower-duel/internal/platform/logging"
	"github.com/pefman/tower-duel/internal/platform/otel"
	"github.com/pefman/tower-duel/internal/players/sqlite"
)

// Config holds data API configuration.
type Config struct {
	Port      int    `env:"TOWERDUEL_API_PORT" envDefault:"8080"`
	PlayersDB string `env:"TOWERDUEL_PLAYERS_DB" envDefault:"data/players.db"`
	LogLevel  string `env:"TOWERDUEL_LOG_LEVEL" envDefault:"info"`
	Tracing   otel.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The data API port")
	fs.StringVar(&cfg.PlayersDB, "db", cfg.PlayersDB, "Path to the players SQLite database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.Tracing.Endpoint, "otel-endpoint", cfg.Tracing.Endpoint, "OTLP/HTTP endpoint URL; empty disables tracing")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.PlayersDB) == "" {
		return Config{}, fmt.Errorf("players database path is required")
	}
	return cfg, nil
}

// Run opens the player store and serves the data API until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named(entrypoint.ServiceAPI)

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, cfg.Tracing, logger, func(ctx context.Context) error {
		store, err := openStore(cfg.PlayersDB)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("close player store", zap.Error(err))
			}
		}()

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           playerapi.NewHandler(store, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("tower duel data api", zap.String("db", cfg.PlayersDB))
		return entrypoint.ServeHTTP(ctx, httpSrv, logger)
	})
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return sqlite.Open(path)
}
