package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9100" || cfg.OpsAddress() != ":9101" {
		t.Fatalf("unexpected addresses %q %q", cfg.HTTPAddress(), cfg.OpsAddress())
	}
	if cfg.CallTimeout() != 30*time.Second || cfg.PingInterval() != 30*time.Second {
		t.Fatalf("unexpected websocket timings %s %s", cfg.CallTimeout(), cfg.PingInterval())
	}
	if !cfg.SmartCharging.Enabled || cfg.MinimumLimit() != 240 || cfg.SolarUnit() != "W" {
		t.Fatalf("unexpected smart charging defaults %+v", cfg.SmartCharging)
	}
	if cfg.SolarURL() != "" {
		t.Fatalf("expected client default solar url, got %q", cfg.SolarURL())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocpp.yaml")
	content := []byte(`
http:
  port: "9200"
ops:
  port: ""
solar:
  url: http://inverter.local/solar_api
  cacheSeconds: 2
smartCharging:
  minimumLimit: 500
auth:
  chargePoints:
    CP-1: "$2a$10$abcdefghijklmnopqrstuv"
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OCPP_CALL_TIMEOUT", "5")
	t.Setenv("SMART_CHARGING_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddress() != ":9200" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress())
	}
	if cfg.OpsAddress() != "" {
		t.Fatalf("expected ops listener disabled, got %q", cfg.OpsAddress())
	}
	if cfg.CallTimeout() != 5*time.Second || cfg.SolarCacheTTL() != 2*time.Second {
		t.Fatalf("unexpected timings %s %s", cfg.CallTimeout(), cfg.SolarCacheTTL())
	}
	if cfg.SmartCharging.Enabled || cfg.MinimumLimit() != 500 {
		t.Fatalf("unexpected smart charging %+v", cfg.SmartCharging)
	}
	if cfg.SolarURL() != "http://inverter.local/solar_api" {
		t.Fatalf("unexpected solar url %q", cfg.SolarURL())
	}
	if len(cfg.Auth.ChargePoints) != 1 || cfg.Auth.ChargePoints["CP-1"] == "" {
		t.Fatalf("unexpected charge point credentials %v", cfg.Auth.ChargePoints)
	}
}

func TestAccessorsFallBack(t *testing.T) {
	cfg := &Config{}
	cfg.HTTP.Port = "0.0.0.0:9000"
	cfg.WebSocket.WriteTimeoutSeconds = -1

	if cfg.HTTPAddress() != "0.0.0.0:9000" {
		t.Fatalf("unexpected address %q", cfg.HTTPAddress())
	}
	if cfg.WriteTimeout() != 15*time.Second || cfg.TickInterval() != 5*time.Second || cfg.RedisTTL() != 24*time.Hour {
		t.Fatalf("unexpected fallbacks %s %s %s", cfg.WriteTimeout(), cfg.TickInterval(), cfg.RedisTTL())
	}
}

func TestReadTimeoutOutlastsPingInterval(t *testing.T) {
	tests := []struct {
		name string
		ping int
		read int
		want time.Duration
	}{
		{"defaults", 0, 0, 60 * time.Second},
		{"long ping interval", 90, 0, 180 * time.Second},
		{"explicit timeout", 30, 45, 45 * time.Second},
		{"timeout below ping interval", 120, 60, 240 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.WebSocket.PingIntervalSeconds = tt.ping
			cfg.WebSocket.ReadTimeoutSeconds = tt.read
			if got := cfg.ReadTimeout(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			if cfg.ReadTimeout() <= cfg.PingInterval() {
				t.Fatalf("read timeout %s does not outlast ping interval %s", cfg.ReadTimeout(), cfg.PingInterval())
			}
		})
	}
}
