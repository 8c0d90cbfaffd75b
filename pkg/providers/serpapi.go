package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newsradar-io/newsradar/pkg/httpclient"

	"github.com/newsradar-io/newsradar/internal/domain"
)

const (
	serpAPIDefaultBaseURL = "https://serpapi.com/search.json"
	serpAPIDefaultLimit   = 20
	serpAPIMaxLimit       = 100

	// SerpAPI renders dates like "07/30/2024, 07:54 AM, +0000 UTC".
	serpAPIDateLayout = "01/02/2006, 03:04 PM, -0700 MST"
)

// serpAPIResponse is the typed shape of a SerpAPI Google News search reply.
type serpAPIResponse struct {
	NewsResults []serpAPINewsResult `json:"news_results"`
	Error       string              `json:"error"`
}

type serpAPINewsResult struct {
	Position  int           `json:"position"`
	Title     string        `json:"title"`
	Link      string        `json:"link"`
	Snippet   string        `json:"snippet"`
	Thumbnail string        `json:"thumbnail"`
	Date      string        `json:"date"`
	Source    serpAPISource `json:"source"`
}

type serpAPISource struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// serpAPIFetcher normalizes SerpAPI's Google News engine into canonical
// articles.
type serpAPIFetcher struct {
	client httpclient.Client
}

// NewSerpAPIFetcher builds a fetcher for SerpAPI-backed providers.
func NewSerpAPIFetcher(client httpclient.Client) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &serpAPIFetcher{client: client}
}

func (f *serpAPIFetcher) ID() string {
	return ProviderTypeSerpAPI
}

// Fetch translates the canonical query into a SerpAPI request and normalizes
// the reply. Items without a title and link are skipped and counted.
func (f *serpAPIFetcher) Fetch(ctx context.Context, cfg Provider, q domain.Query) (FetchResult, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeSerpAPI) {
		return FetchResult{}, fmt.Errorf("serpapi fetcher received incompatible provider type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return FetchResult{}, fmt.Errorf("provider %q api_key is empty", cfg.ID)
	}

	base := cfg.BaseURL
	if strings.TrimSpace(base) == "" {
		base = serpAPIDefaultBaseURL
	}

	limit := clampLimit(q.Limit, serpAPIDefaultLimit, serpAPIMaxLimit)

	params := url.Values{}
	params.Set("engine", "google_news")
	params.Set("api_key", cfg.APIKey)
	params.Set("num", strconv.Itoa(limit))
	if text := strings.TrimSpace(q.Text); text != "" {
		params.Set("q", text)
	}
	if q.Category != "" {
		params.Set("topic_token", q.Category)
	}
	if q.Country != "" {
		params.Set("gl", strings.ToLower(q.Country))
	}
	if q.Language != "" {
		params.Set("hl", strings.ToLower(q.Language))
	}

	raw, err := fetchBody(ctx, f.client, base+"?"+params.Encode(), cfg.ID, Headers(cfg))
	if err != nil {
		return FetchResult{Requests: 1}, err
	}

	var resp serpAPIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return FetchResult{Requests: 1}, fmt.Errorf("decode serpapi response: %w", err)
	}
	if resp.Error != "" {
		return FetchResult{Requests: 1}, fmt.Errorf("serpapi error: %s", resp.Error)
	}

	result := FetchResult{Requests: 1, Articles: make([]domain.Article, 0, len(resp.NewsResults))}
	for _, item := range resp.NewsResults {
		publishedAt := parseTime(item.Date, serpAPIDateLayout, time.RFC3339)
		article, ok := newArticle(cfg,
			item.Title, item.Snippet, "", item.Link, item.Thumbnail, publishedAt,
			map[string]any{"position": item.Position, "source_name": item.Source.Name},
		)
		if !ok {
			result.Skipped++
			continue
		}
		if item.Source.Name != "" {
			article.Source.Name = item.Source.Name
			article.Source.ProviderID = cfg.ID
		}
		result.Articles = append(result.Articles, article)
		if len(result.Articles) >= limit {
			break
		}
	}

	return result, nil
}
