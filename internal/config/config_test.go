package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bad log level")
	}
}

func TestValidateGateways(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateways = []GatewayConfig{
		{Name: "prod", Host: "gw.example.com", User: "deploy"},
		{Name: "prod", Host: "gw2.example.com", User: "deploy"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate gateway name")
	}

	cfg.Gateways = cfg.Gateways[:1]
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gateways[0].Port != 22 {
		t.Fatalf("expected default port 22, got %d", cfg.Gateways[0].Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: json
ssh:
  connect_timeout: 5s
  connect_retries: 3
gateways:
  - name: prod
    host: gw.example.com
    user: deploy
    port: 2222
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader()
	loader.SetConfigFile(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.SSH.ConnectTimeout != 5*time.Second {
		t.Fatalf("unexpected connect timeout: %v", cfg.SSH.ConnectTimeout)
	}
	if cfg.SSH.ConnectRetries != 3 {
		t.Fatalf("unexpected connect retries: %d", cfg.SSH.ConnectRetries)
	}

	gw, ok := cfg.Gateway("prod")
	if !ok {
		t.Fatal("expected gateway 'prod'")
	}
	if gw.Host != "gw.example.com" || gw.Port != 2222 || gw.User != "deploy" {
		t.Fatalf("unexpected gateway: %+v", gw)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	loader := NewLoader()
	loader.SetConfigFile("/no/such/config.yaml")
	if _, err := loader.Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
