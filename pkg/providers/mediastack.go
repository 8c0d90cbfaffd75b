package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/pkg/httpclient"
)

const (
	mediaStackDefaultBaseURL = "http://api.mediastack.com/v1/news"
	mediaStackDefaultLimit   = 25
	mediaStackMaxLimit       = 100

	// MediaStack renders dates like "2024-07-30T07:54:00+00:00".
	mediaStackDateLayout = "2006-01-02T15:04:05-07:00"
)

// mediaStackResponse is the typed shape of a MediaStack /v1/news reply.
type mediaStackResponse struct {
	Pagination mediaStackPagination `json:"pagination"`
	Data       []mediaStackItem     `json:"data"`
	Error      *mediaStackError     `json:"error"`
}

type mediaStackPagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
	Total  int `json:"total"`
}

type mediaStackItem struct {
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Language    string `json:"language"`
	Country     string `json:"country"`
	PublishedAt string `json:"published_at"`
}

type mediaStackError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mediaStackFetcher normalizes the MediaStack news API into canonical
// articles.
type mediaStackFetcher struct {
	client httpclient.Client
}

// NewMediaStackFetcher builds a fetcher for MediaStack-backed providers.
func NewMediaStackFetcher(client httpclient.Client) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &mediaStackFetcher{client: client}
}

func (f *mediaStackFetcher) ID() string {
	return ProviderTypeMediaStack
}

// Fetch translates the canonical query into a MediaStack request and
// normalizes the reply. Items without a title and URL are skipped and
// counted.
func (f *mediaStackFetcher) Fetch(ctx context.Context, cfg Provider, q domain.Query) (FetchResult, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeMediaStack) {
		return FetchResult{}, fmt.Errorf("mediastack fetcher received incompatible provider type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return FetchResult{}, fmt.Errorf("provider %q api_key is empty", cfg.ID)
	}

	base := cfg.BaseURL
	if strings.TrimSpace(base) == "" {
		base = mediaStackDefaultBaseURL
	}

	limit := clampLimit(q.Limit, mediaStackDefaultLimit, mediaStackMaxLimit)

	params := url.Values{}
	params.Set("access_key", cfg.APIKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "published_desc")
	if text := strings.TrimSpace(q.Text); text != "" {
		params.Set("keywords", text)
	}
	if q.Category != "" {
		params.Set("categories", strings.ToLower(q.Category))
	}
	if q.Country != "" {
		params.Set("countries", strings.ToLower(q.Country))
	}
	if q.Language != "" {
		params.Set("languages", strings.ToLower(q.Language))
	}

	raw, err := fetchBody(ctx, f.client, base+"?"+params.Encode(), cfg.ID, Headers(cfg))
	if err != nil {
		return FetchResult{Requests: 1}, err
	}

	var resp mediaStackResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return FetchResult{Requests: 1}, fmt.Errorf("decode mediastack response: %w", err)
	}
	if resp.Error != nil {
		return FetchResult{Requests: 1}, fmt.Errorf("mediastack error %s: %s", resp.Error.Code, resp.Error.Message)
	}

	result := FetchResult{Requests: 1, Articles: make([]domain.Article, 0, len(resp.Data))}
	for _, item := range resp.Data {
		publishedAt := parseTime(item.PublishedAt, mediaStackDateLayout, time.RFC3339)
		article, ok := newArticle(cfg,
			item.Title, item.Description, "", item.URL, item.Image, publishedAt,
			map[string]any{"author": item.Author, "category": item.Category, "source_name": item.Source},
		)
		if !ok {
			result.Skipped++
			continue
		}
		if item.Source != "" {
			article.Source.Name = item.Source
		}
		result.Articles = append(result.Articles, article)
	}

	return result, nil
}
