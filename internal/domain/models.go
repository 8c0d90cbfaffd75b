package domain

import "time"

// Domain contains the core models shared by providers, the aggregator and
// the monitor.

// Source identifies where an article originally came from.
type Source struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	ProviderID string `json:"provider_id"`
}

// Article is the canonical article shape every provider normalizes into.
// Immutable once fetched; two articles with an equal Fingerprint are the
// same real-world item regardless of which provider supplied them.
type Article struct {
	Fingerprint string         `json:"fingerprint"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Content     string         `json:"content,omitempty"`
	URL         string         `json:"url"`
	ImageURL    string         `json:"image_url,omitempty"`
	PublishedAt time.Time      `json:"published_at"`
	Source      Source         `json:"source"`
	Meta        map[string]any `json:"meta,omitempty"` // provider-specific, never used for identity
}

// Query is the canonical aggregation query every provider translates into
// its own request shape.
type Query struct {
	Text     string
	Category string
	Country  string
	Language string
	Limit    int
}

// ProviderStatus reports how a single provider fared in one aggregate round.
type ProviderStatus string

const (
	ProviderStatusSuccess  ProviderStatus = "success"
	ProviderStatusError    ProviderStatus = "error"
	ProviderStatusExcluded ProviderStatus = "quota_excluded"
)

// ProviderReport is the per-provider slice of the aggregate metadata.
type ProviderReport struct {
	Provider       string         `json:"provider"`
	Count          int            `json:"count"`
	Skipped        int            `json:"skipped,omitempty"`
	Status         ProviderStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	QuotaRemaining int            `json:"quota_remaining"`
}

// AggregateMetadata describes one aggregate round for observability.
// Callers inspect Sources to detect degraded rounds; an empty article list
// with every source errored or excluded is still a success-shaped result.
type AggregateMetadata struct {
	Sources      []ProviderReport `json:"sources"`
	Deduplicated int              `json:"deduplicated"`
	FromCache    bool             `json:"from_cache"`
}

// AggregateResult is what the aggregator returns for one query.
type AggregateResult struct {
	Articles []Article         `json:"articles"`
	Metadata AggregateMetadata `json:"metadata"`
}
