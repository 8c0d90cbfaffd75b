package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/pkg/httpclient"
)

const (
	// Supported provider types.
	ProviderTypeSerpAPI    = "serpapi"
	ProviderTypeMediaStack = "mediastack"
	ProviderTypeRSS        = "rss"
	ProviderTypeGoogleNews = "google-news-sitemap"

	defaultUserAgent = "newsradar/1.0 (+https://github.com/newsradar-io/newsradar)"
)

// Provider is the static configuration for one external news source,
// supplied by the composing application's configuration layer.
type Provider struct {
	ID                 string            `mapstructure:"id" yaml:"id"`
	Type               string            `mapstructure:"type" yaml:"type"`
	Name               string            `mapstructure:"name" yaml:"name"`
	BaseURL            string            `mapstructure:"base_url" yaml:"base_url"`
	APIKey             string            `mapstructure:"api_key" yaml:"api_key"`
	SourceURL          string            `mapstructure:"source_url" yaml:"source_url"`
	Credibility        float64           `mapstructure:"credibility" yaml:"credibility"`
	MonthlyQuota       int               `mapstructure:"monthly_quota" yaml:"monthly_quota"`
	LatencyRank        int               `mapstructure:"latency_rank" yaml:"latency_rank"`
	CostRank           int               `mapstructure:"cost_rank" yaml:"cost_rank"`
	Enrich             bool              `mapstructure:"enrich" yaml:"enrich"`
	RequestDelayMillis int               `mapstructure:"request_delay_ms" yaml:"request_delay_ms"`
	Headers            map[string]string `mapstructure:"headers" yaml:"headers"`
}

// RequestDelay returns the configured delay between follow-up requests to
// this provider's site.
func (p Provider) RequestDelay() time.Duration {
	if p.RequestDelayMillis <= 0 {
		return 0
	}
	return time.Duration(p.RequestDelayMillis) * time.Millisecond
}

// SourceName returns the human-readable source name, falling back to the id.
func (p Provider) SourceName() string {
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.ID
}

// Headers builds the outbound request headers for a provider.
func Headers(cfg Provider) map[string]string {
	out := map[string]string{"User-Agent": defaultUserAgent}
	for k, v := range cfg.Headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// FetchResult is one provider's contribution to an aggregate round.
// Requests reports the quota units the call consumed so the tracker stays
// authoritative; Skipped counts malformed items dropped from the batch.
type FetchResult struct {
	Articles []domain.Article
	Requests int
	Skipped  int
}

// Fetcher normalizes one provider type's request/response into the
// canonical Article shape. A whole-call failure (network, bad status,
// undecodable body) is returned as an error; a single malformed item is
// skipped and counted, never fatal.
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, cfg Provider, q domain.Query) (FetchResult, error)
}

// FetcherRegistry resolves the fetcher implementation for a provider config.
type FetcherRegistry interface {
	FetcherFor(cfg Provider) (Fetcher, error)
}

type fetcherRegistry struct {
	fetchers map[string]Fetcher
	mu       sync.RWMutex
}

// NewFetcherRegistry builds a registry for the provided fetcher implementations.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchers: make(map[string]Fetcher, len(fetchers)),
	}

	for _, f := range fetchers {
		if f == nil {
			continue
		}
		reg.fetchers[strings.ToLower(strings.TrimSpace(f.ID()))] = f
	}

	return reg
}

// FetcherFor selects the fetcher for the given provider based on its type.
func (r *fetcherRegistry) FetcherFor(cfg Provider) (Fetcher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("provider %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(cfg.Type)
	if f, ok := r.fetchers[key]; ok {
		return f, nil
	}

	return nil, fmt.Errorf("no fetcher registered for provider type %q", cfg.Type)
}

// DefaultHTTPClient returns a tuned http client for provider fetchers.
func DefaultHTTPClient() httpclient.Client { return httpclient.NewRestyClient(15 * time.Second) }

// DefaultFetcherRegistry wires up the known provider fetchers.
func DefaultFetcherRegistry(client httpclient.Client) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}

	return NewFetcherRegistry(
		NewSerpAPIFetcher(client),
		NewMediaStackFetcher(client),
		NewRSSFetcher(client),
		NewGoogleNewsFetcher(client),
	)
}
