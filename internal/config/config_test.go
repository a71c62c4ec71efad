package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "relay.yaml")

	cfg, resolved, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if cfg.MaxClients != Default().MaxClients || cfg.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := "max_clients: 3\nonline_page_size: 5\nshutdown_timeout: 2s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RELAY_LOG_LEVEL", "debug")

	cfg, _, err := Load(&logger, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxClients != 3 || cfg.OnlinePageSize != 5 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("shutdown_timeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("env override not applied: %q", cfg.LogLevel)
	}
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Port: "6000", MaxClients: 2})

	if cfg.Port != "6000" || cfg.MaxClients != 2 {
		t.Fatalf("override not applied: %+v", cfg)
	}
	if cfg.OnlinePageSize != Default().OnlinePageSize {
		t.Fatalf("zero value overwrote default: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"port not numeric", func(c *Config) { c.Port = "http" }, true},
		{"port out of range", func(c *Config) { c.Port = "70000" }, true},
		{"no clients", func(c *Config) { c.MaxClients = 0 }, true},
		{"tiny lines", func(c *Config) { c.MaxLineBytes = 4 }, true},
		{"no page size", func(c *Config) { c.OnlinePageSize = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = "4242"
	if got := cfg.ListenAddr(); got != "127.0.0.1:4242" {
		t.Fatalf("ListenAddr = %q", got)
	}
}
