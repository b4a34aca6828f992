package cmd

import (
	"context"
	"flag"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/pefman/tower-duel/internal/platform/otel"
)

type testConfig struct {
	Address string `env:"TOWERDUEL_CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"TOWERDUEL_CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("TOWERDUEL_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("TOWERDUEL_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := testConfig{}
	if err := ParseConfig(&cfg); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
	if err := ParseArgs(fs, []string{"-address", "flag:9001"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("Address = %q, want flag value", cfg.Address)
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("Mode = %q, want env value", cfg.Mode)
	}
}

func TestParseRejectsNilInputs(t *testing.T) {
	if err := ParseArgs(nil, nil); err == nil {
		t.Fatal("expected ParseArgs to reject a nil parser")
	}
	if err := ParseConfig[testConfig](nil); err == nil {
		t.Fatal("expected ParseConfig to reject a nil target")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	ctx := context.Background()
	if err := RunWithTelemetry(ctx, "", otel.Config{}, nil, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(ctx, ServiceGame, otel.Config{}, nil, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeHTTP(ctx, srv, nil) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ServeHTTP = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeHTTP did not return after cancel")
	}
}
