// Package game parses game server flags and runs the match server.
package game

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pefman/tower-duel/internal/api"
	"github.com/pefman/tower-duel/internal/bot"
	"github.com/pefman/tower-duel/internal/engine"
	combat "github.com/pefman/tower-duel/internal/game"
	"github.com/pefman/tower-duel/internal/matchmaking"
	entrypoint "github.com/pefman/tower-duel/internal/platform/cmd"
	"github.com/pefman/tower-duel/internal/platform/logging"
	"github.com/pefman/tower-duel/internal/platform/otel"
	"github.com/pefman/tower-duel/internal/players"
	"github.com/pefman/tower-duel/internal/server"
	"github.com/pefman/tower-duel/internal/stats"
)

// Config holds game server configuration.
type Config struct {
	Port          int           `env:"TOWERDUEL_GAME_PORT" envDefault:"8081"`
	DataAPIBase   string        `env:"TOWERDUEL_DATA_API_BASE" envDefault:"http://localhost:8080"`
	TurnTimeout   time.Duration `env:"TOWERDUEL_TURN_TIMEOUT" envDefault:"30s"`
	QueueFallback time.Duration `env:"TOWERDUEL_QUEUE_FALLBACK" envDefault:"40s"`
	BotCooldown   time.Duration `env:"TOWERDUEL_BOT_COOLDOWN" envDefault:"5m"`
	BotFirstDelay time.Duration `env:"TOWERDUEL_BOT_FIRST_DELAY" envDefault:"5s"`
	BotThinkDelay time.Duration `env:"TOWERDUEL_BOT_THINK_DELAY" envDefault:"6s"`
	RulesFile     string        `env:"TOWERDUEL_RULES_FILE"`
	LogLevel      string        `env:"TOWERDUEL_LOG_LEVEL" envDefault:"info"`
	Tracing       otel.Config

	// Injected at build time, not from the environment.
	Version   string
	BuildTime string
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The game server port")
	fs.StringVar(&cfg.DataAPIBase, "data-api", cfg.DataAPIBase, "Base URL of the player data API; empty disables ratings")
	fs.DurationVar(&cfg.TurnTimeout, "turn-timeout", cfg.TurnTimeout, "Time a player has to finish a turn")
	fs.DurationVar(&cfg.QueueFallback, "queue-fallback", cfg.QueueFallback, "Wait before a queued player is offered the bot")
	fs.DurationVar(&cfg.BotCooldown, "bot-cooldown", cfg.BotCooldown, "Minimum gap between any two bot matches, server-wide")
	fs.DurationVar(&cfg.BotFirstDelay, "bot-first-delay", cfg.BotFirstDelay, "Bot pause before its first action of a turn")
	fs.DurationVar(&cfg.BotThinkDelay, "bot-think-delay", cfg.BotThinkDelay, "Bot pause between actions")
	fs.StringVar(&cfg.RulesFile, "rules", cfg.RulesFile, "Optional YAML combat ruleset replacing the built-in one")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.Tracing.Endpoint, "otel-endpoint", cfg.Tracing.Endpoint, "OTLP/HTTP endpoint URL; empty disables tracing")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// Run starts the game server and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named(entrypoint.ServiceGame)

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, cfg.Tracing, logger, func(ctx context.Context) error {
		srv, mm, err := build(cfg, logger)
		if err != nil {
			return err
		}
		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("tower duel game server",
			zap.String("version", cfg.Version),
			zap.String("data_api", cfg.DataAPIBase))
		err = entrypoint.ServeHTTP(ctx, httpSrv, logger)
		mm.Wait()
		return err
	})
}

func build(cfg Config, logger *zap.Logger) (*server.Server, *matchmaking.Coordinator, error) {
	resolver, err := loadResolver(cfg.RulesFile)
	if err != nil {
		return nil, nil, err
	}

	var store players.Store
	if base := strings.TrimSpace(cfg.DataAPIBase); base != "" {
		store = api.NewClient(base)
	} else {
		logger.Warn("no data API configured, matches will not be rated")
	}

	clock := engine.RealClock()
	rng := engine.NewRNG()
	b, err := bot.New(bot.Options{
		Clock:      clock,
		Rand:       rng,
		Logger:     logger,
		FirstDelay: cfg.BotFirstDelay,
		ThinkDelay: cfg.BotThinkDelay,
	})
	if err != nil {
		return nil, nil, err
	}

	hub := server.NewHub(logger)
	daily := stats.NewDaily(nil)
	mm := matchmaking.New(matchmaking.Options{
		Store:       store,
		Stats:       daily,
		Resolver:    resolver,
		Clock:       clock,
		Rand:        rng,
		Publisher:   hub,
		Logger:      logger,
		Bot:         b,
		TurnTimeout: cfg.TurnTimeout,
		Fallback:    cfg.QueueFallback,
		BotCooldown: cfg.BotCooldown,
	})
	srv := server.New(server.Options{
		Hub:         hub,
		Coordinator: mm,
		Store:       store,
		Daily:       daily,
		Logger:      logger,
		Version:     cfg.Version,
		BuildTime:   cfg.BuildTime,
	})
	return srv, mm, nil
}

func loadResolver(path string) (*combat.Resolver, error) {
	if strings.TrimSpace(path) == "" {
		return combat.NewResolver(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	rs, err := combat.ParseRuleset(data)
	if err != nil {
		return nil, err
	}
	return combat.NewResolver(rs), nil
}
