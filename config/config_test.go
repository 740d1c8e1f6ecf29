package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
capture:
  symbols:
    - BTCUSDT=100.0
store:
  base_uri: https://store.example
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Sweep.RetentionDays != DefaultRetentionDays {
		t.Fatalf("expected default retention %d, got %d", DefaultRetentionDays, cfg.Sweep.RetentionDays)
	}
	if cfg.Store.Retry.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", cfg.Store.Retry.MaxAttempts)
	}
	if cfg.Capture.Timeout != 10*time.Second {
		t.Fatalf("expected default capture timeout, got %v", cfg.Capture.Timeout)
	}
	if cfg.Capture.Exchange != "binance" {
		t.Fatalf("expected default exchange binance, got %q", cfg.Capture.Exchange)
	}
}

func TestLoadConfigRejectsBadSymbolSpec(t *testing.T) {
	path := writeConfig(t, `
capture:
  symbols:
    - BTCUSDT=nope
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadConfigRejectsUnknownExchange(t *testing.T) {
	path := writeConfig(t, `
capture:
  exchange: kraken
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("DEPTHFLOW_STORE_ID", "env-id")
	t.Setenv("DEPTHFLOW_STORE_KEY", "env-key")

	path := writeConfig(t, `
store:
  app_id: file-id
  app_key: file-key
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.AppID != "env-id" || cfg.Store.AppKey != "env-key" {
		t.Fatalf("env overrides not applied: %+v", cfg.Store)
	}
}

func TestLoadConfigMetricsRegion(t *testing.T) {
	path := writeConfig(t, `
logging:
  metrics_region: eu-west-1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.MetricsRegion != "eu-west-1" {
		t.Fatalf("metrics region not parsed: %+v", cfg.Logging)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
