package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
log_level: debug
cache:
  ttl: 10m
aggregator:
  round_timeout: 20s
providers:
  - id: serpapi-news
    type: serpapi
    api_key: key-a
    credibility: 0.9
    monthly_quota: 100
  - id: example-feed
    type: rss
    source_url: https://blog.example.com/rss.xml
    credibility: 0.6
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("cache ttl = %v, want 10m", cfg.Cache.TTL)
	}
	if cfg.Aggregator.RoundTimeout != 20*time.Second {
		t.Errorf("round timeout = %v, want 20s", cfg.Aggregator.RoundTimeout)
	}
	if cfg.Monitor.DefaultInterval != 5*time.Minute {
		t.Errorf("default interval = %v, want the 5m default", cfg.Monitor.DefaultInterval)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Providers))
	}

	limits := cfg.QuotaLimits()
	if limits["serpapi-news"] != 100 {
		t.Errorf("quota limit = %d, want 100", limits["serpapi-news"])
	}
	if _, metered := limits["example-feed"]; metered {
		t.Error("feed without quota should be unmetered")
	}
}

func TestLoadRejectsMissingAPIKey(t *testing.T) {
	content := `
providers:
  - id: broken
    type: serpapi
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("missing api_key accepted")
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	content := `
providers:
  - id: same
    type: rss
    source_url: https://a.example.com/rss
  - id: same
    type: rss
    source_url: https://b.example.com/rss
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("duplicate provider ids accepted")
	}
}

func TestLoadRejectsUnknownType(t *testing.T) {
	content := `
providers:
  - id: odd
    type: carrier-pigeon
`
	if _, err := Load(writeConfig(t, content)); err == nil {
		t.Fatal("unknown provider type accepted")
	}
}
