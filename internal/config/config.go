package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/newsradar-io/newsradar/pkg/providers"
)

const envPrefix = "NEWSRADAR"

// Config is everything the engine needs from the composing application.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Cache      CacheConfig          `mapstructure:"cache"`
	Aggregator AggregatorConfig     `mapstructure:"aggregator"`
	Monitor    MonitorConfig        `mapstructure:"monitor"`
	Store      StoreConfig          `mapstructure:"store"`
	Providers  []providers.Provider `mapstructure:"providers"`

	// PublishersFile points at the YAML/JSON notification sink registry.
	PublishersFile string `mapstructure:"publishers_file"`
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AggregatorConfig tunes aggregate rounds.
type AggregatorConfig struct {
	RoundTimeout time.Duration `mapstructure:"round_timeout"`
}

// MonitorConfig holds monitor defaults.
type MonitorConfig struct {
	DefaultInterval time.Duration `mapstructure:"default_interval"`
}

// StoreConfig locates the article store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// Load reads the config file (YAML) with environment overrides. A .env file
// next to the process is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional; absence is fine

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("aggregator.round_timeout", 30*time.Second)
	v.SetDefault("monitor.default_interval", 5*time.Minute)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.sanitize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// sanitize trims and normalizes fields before validation.
func (c *Config) sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.PublishersFile = strings.TrimSpace(c.PublishersFile)
	c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	c.Store.Path = strings.TrimSpace(c.Store.Path)

	for i := range c.Providers {
		p := &c.Providers[i]
		p.ID = strings.TrimSpace(p.ID)
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		p.Name = strings.TrimSpace(p.Name)
		p.BaseURL = strings.TrimSpace(p.BaseURL)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.SourceURL = strings.TrimSpace(p.SourceURL)
	}
}

// validate checks that the provider list is usable.
func (c *Config) validate() error {
	if len(c.Providers) == 0 {
		return errors.New("no providers configured")
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d]: id is required", i)
		}
		if p.Type == "" {
			return fmt.Errorf("provider %q: type is required", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate provider id %q", p.ID)
		}
		seen[p.ID] = struct{}{}

		switch p.Type {
		case providers.ProviderTypeSerpAPI, providers.ProviderTypeMediaStack:
			if p.APIKey == "" {
				return fmt.Errorf("provider %q: api_key is required for type %s", p.ID, p.Type)
			}
		case providers.ProviderTypeRSS, providers.ProviderTypeGoogleNews:
			if p.SourceURL == "" {
				return fmt.Errorf("provider %q: source_url is required for type %s", p.ID, p.Type)
			}
		default:
			return fmt.Errorf("provider %q: type %q is not supported", p.ID, p.Type)
		}

		if p.Credibility < 0 || p.Credibility > 1 {
			return fmt.Errorf("provider %q: credibility must be within [0,1]", p.ID)
		}
	}

	return nil
}

// QuotaLimits extracts the per-provider monthly budgets for the tracker.
func (c *Config) QuotaLimits() map[string]int {
	limits := make(map[string]int, len(c.Providers))
	for _, p := range c.Providers {
		if p.MonthlyQuota > 0 {
			limits[p.ID] = p.MonthlyQuota
		}
	}
	return limits
}
