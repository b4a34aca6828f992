// Package main starts the tower duel game server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	gamecmd "github.com/pefman/tower-duel/internal/cmd/game"
)

// Build metadata injected via -ldflags at build time.
var (
	buildVersion = "dev"
	buildTime    = ""
)

func main() {
	cfg, err := gamecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	cfg.Version = buildVersion
	cfg.BuildTime = buildTime

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gamecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("game server: %v", err)
	}
}
