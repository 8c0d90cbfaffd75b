package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/pkg/httpclient"
)

const googleNewsDefaultLimit = 100

// googleNewsFetcher normalizes Google News sitemap providers into canonical
// articles. Sitemaps have no query interface, so free-text matching and the
// limit are applied client-side.
type googleNewsFetcher struct {
	client httpclient.Client
}

// NewGoogleNewsFetcher builds a fetcher for Google News sitemap providers.
func NewGoogleNewsFetcher(client httpclient.Client) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &googleNewsFetcher{client: client}
}

func (f *googleNewsFetcher) ID() string {
	return ProviderTypeGoogleNews
}

// Fetch retrieves articles from a Google News sitemap provider, following
// sitemap indexes where necessary.
func (f *googleNewsFetcher) Fetch(ctx context.Context, cfg Provider, q domain.Query) (FetchResult, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeGoogleNews) {
		return FetchResult{}, fmt.Errorf("google news fetcher received incompatible provider type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.SourceURL) == "" {
		return FetchResult{}, fmt.Errorf("provider %q source_url is empty", cfg.ID)
	}

	headers := Headers(cfg)

	requests := 0
	urls, err := f.fetchSitemapURLs(ctx, cfg, cfg.SourceURL, headers, nil, &requests)
	if err != nil {
		return FetchResult{Requests: requests}, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = googleNewsDefaultLimit
	}
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	result := FetchResult{Requests: requests, Articles: make([]domain.Article, 0, len(urls))}
	for _, entry := range urls {
		loc := strings.TrimSpace(entry.Loc)
		title := strings.TrimSpace(entry.News.Title)
		if needle != "" && !strings.Contains(strings.ToLower(title), needle) {
			continue
		}

		article, ok := newArticle(cfg,
			title, "", "", loc, firstImageURL(entry.Images),
			parseTime(entry.News.PublicationDate, time.RFC3339),
			map[string]any{"keywords": parseKeywords(entry.News.Keywords)},
		)
		if !ok {
			result.Skipped++
			continue
		}
		result.Articles = append(result.Articles, article)

		if len(result.Articles) >= limit {
			break
		}
	}

	return result, nil
}

// fetchSitemapURLs resolves the given sitemap URL into article entries,
// following sitemap indexes if necessary. Each HTTP round trip is counted in
// requests for quota reporting.
func (f *googleNewsFetcher) fetchSitemapURLs(ctx context.Context, cfg Provider, url string, headers map[string]string, visited map[string]struct{}, requests *int) ([]googleNewsURL, error) {
	if visited == nil {
		visited = make(map[string]struct{})
	}
	if _, seen := visited[url]; seen {
		return nil, nil
	}
	visited[url] = struct{}{}

	*requests++
	raw, err := fetchBody(ctx, f.client, url, cfg.ID, headers)
	if err != nil {
		return nil, err
	}

	urls, err := parseGoogleNewsSitemap(raw)
	if err != nil {
		return nil, fmt.Errorf("decode google news sitemap: %w", err)
	}
	if len(urls) > 0 {
		return urls, nil
	}

	indexURLs, err := parseSitemapIndex(raw)
	if err != nil {
		return nil, fmt.Errorf("decode sitemap index: %w", err)
	}

	var all []googleNewsURL
	for _, indexURL := range indexURLs {
		indexURL = strings.TrimSpace(indexURL)
		if indexURL == "" {
			continue
		}

		nested, err := f.fetchSitemapURLs(ctx, cfg, indexURL, headers, visited, requests)
		if err != nil {
			return nil, err
		}
		all = append(all, nested...)
	}
	return all, nil
}

type googleNewsSitemap struct {
	URLs []googleNewsURL `xml:"url"`
}

type googleNewsURL struct {
	Loc    string            `xml:"loc"`
	News   googleNewsDetail  `xml:"news"`
	Images []googleNewsImage `xml:"image:image"`
}

type googleNewsDetail struct {
	PublicationDate string `xml:"publication_date"`
	Keywords        string `xml:"keywords"`
	Title           string `xml:"title"`
}

type googleNewsImage struct {
	Loc   string `xml:"image:loc"`
	Title string `xml:"image:title"`
}

type sitemapIndex struct {
	Sitemaps []sitemapIndexEntry `xml:"sitemap"`
}

type sitemapIndexEntry struct {
	Loc string `xml:"loc"`
}

// parseGoogleNewsSitemap parses the XML data into sitemap URL entries.
func parseGoogleNewsSitemap(data []byte) ([]googleNewsURL, error) {
	var sitemap googleNewsSitemap
	if err := xml.Unmarshal(data, &sitemap); err != nil {
		return nil, err
	}
	return sitemap.URLs, nil
}

// parseSitemapIndex parses an XML sitemap index file and returns the nested
// sitemap URLs.
func parseSitemapIndex(data []byte) ([]string, error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, entry := range index.Sitemaps {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// firstImageURL returns the first non-empty image URL from the list.
func firstImageURL(images []googleNewsImage) string {
	for _, img := range images {
		if loc := strings.TrimSpace(img.Loc); loc != "" {
			return loc
		}
	}
	return ""
}

// parseKeywords splits a comma-separated string of keywords into a slice of
// trimmed strings.
func parseKeywords(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if kw := strings.TrimSpace(part); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	if len(keywords) == 0 {
		return nil
	}
	return keywords
}
