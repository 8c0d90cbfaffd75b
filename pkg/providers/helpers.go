package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/internal/fingerprint"
	"github.com/newsradar-io/newsradar/pkg/httpclient"
)

// responseSnippet returns a truncated snippet of the response body for error
// messages.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// fetchBody retrieves the given URL and returns its body, treating any
// non-200 status as an error.
func fetchBody(ctx context.Context, client httpclient.Client, rawURL, providerID string, headers map[string]string) ([]byte, error) {
	resp, err := client.Get(ctx, rawURL, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", providerID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d body: %s", providerID, resp.StatusCode(), responseSnippet(body))
	}

	return body, nil
}

// newArticle builds a canonical article and derives its fingerprint. Returns
// false when the item carries neither a URL nor a title, which makes it
// unidentifiable and therefore skipped.
func newArticle(cfg Provider, title, description, content, rawURL, imageURL string, publishedAt time.Time, meta map[string]any) (domain.Article, bool) {
	title = strings.TrimSpace(title)
	rawURL = strings.TrimSpace(rawURL)
	if title == "" && rawURL == "" {
		return domain.Article{}, false
	}

	sourceURL := strings.TrimSpace(cfg.SourceURL)
	if sourceURL == "" {
		sourceURL = strings.TrimSpace(cfg.BaseURL)
	}

	return domain.Article{
		Fingerprint: fingerprint.Fingerprint(title, rawURL, urlDomain(rawURL, sourceURL)),
		Title:       title,
		Description: strings.TrimSpace(description),
		Content:     strings.TrimSpace(content),
		URL:         rawURL,
		ImageURL:    strings.TrimSpace(imageURL),
		PublishedAt: publishedAt,
		Source: domain.Source{
			Name:       cfg.SourceName(),
			URL:        sourceURL,
			ProviderID: cfg.ID,
		},
		Meta: meta,
	}, true
}

// urlDomain extracts the host of the first parseable URL from the candidates.
func urlDomain(candidates ...string) string {
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			return strings.ToLower(u.Host)
		}
	}
	return ""
}

// parseTime attempts the given layouts in order and returns the zero time
// when none match.
func parseTime(raw string, layouts ...string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// clampLimit bounds a query limit to a provider's page-size ceiling, with a
// sensible default when the caller did not set one.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		return max
	}
	return limit
}
