package config

import (
	"testing"
	"time"
)

func TestParseEnvDefaultsAndOverrides(t *testing.T) {
	type cfg struct {
		Port    int           `env:"TOWERDUEL_TEST_PORT" envDefault:"8081"`
		Timeout time.Duration `env:"TOWERDUEL_TEST_TIMEOUT" envDefault:"30s"`
	}
	t.Setenv("TOWERDUEL_TEST_TIMEOUT", "5s")

	var c cfg
	if err := ParseEnv(&c); err != nil {
		t.Fatalf("ParseEnv: %v", err)
	}
	if c.Port != 8081 {
		t.Fatalf("Port = %d, want 8081", c.Port)
	}
	if c.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s, want 5s", c.Timeout)
	}
}

func TestParseEnvRejectsBadValue(t *testing.T) {
	type cfg struct {
		Port int `env:"TOWERDUEL_TEST_BAD_PORT"`
	}
	t.Setenv("TOWERDUEL_TEST_BAD_PORT", "not-a-number")

	var c cfg
	if err := ParseEnv(&c); err == nil {
		t.Fatal("expected parse error")
	}
}
