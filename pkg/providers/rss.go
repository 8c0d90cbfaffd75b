package providers

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/pkg/httpclient"
)

const rssDefaultLimit = 50

// rssFetcher normalizes any RSS or Atom feed into canonical articles. Feeds
// have no server-side query support, so free-text matching and the limit are
// applied client-side after parsing.
type rssFetcher struct {
	client httpclient.Client
	parser *gofeed.Parser
}

// NewRSSFetcher builds a fetcher for RSS/Atom feed providers.
func NewRSSFetcher(client httpclient.Client) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &rssFetcher{
		client: client,
		parser: gofeed.NewParser(),
	}
}

func (f *rssFetcher) ID() string {
	return ProviderTypeRSS
}

func (f *rssFetcher) Fetch(ctx context.Context, cfg Provider, q domain.Query) (FetchResult, error) {
	if !strings.EqualFold(cfg.Type, ProviderTypeRSS) {
		return FetchResult{}, fmt.Errorf("rss fetcher received incompatible provider type %q", cfg.Type)
	}
	if strings.TrimSpace(cfg.SourceURL) == "" {
		return FetchResult{}, fmt.Errorf("provider %q source_url is empty", cfg.ID)
	}

	raw, err := fetchBody(ctx, f.client, cfg.SourceURL, cfg.ID, Headers(cfg))
	if err != nil {
		return FetchResult{Requests: 1}, err
	}

	feed, err := f.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return FetchResult{Requests: 1}, fmt.Errorf("parse %s feed: %w", cfg.ID, err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = rssDefaultLimit
	}
	needle := strings.ToLower(strings.TrimSpace(q.Text))

	result := FetchResult{Requests: 1, Articles: make([]domain.Article, 0, len(feed.Items))}
	for _, item := range feed.Items {
		if item == nil {
			result.Skipped++
			continue
		}

		if needle != "" && !matchesQuery(item, needle) {
			continue
		}

		link := strings.TrimSpace(item.Link)
		if link == "" {
			// Some feeds only carry a permalink-style GUID.
			if strings.HasPrefix(item.GUID, "http") {
				link = item.GUID
			}
		}

		article, ok := newArticle(cfg,
			item.Title, item.Description, item.Content, link, itemImage(item), publishedTime(item),
			rssMeta(feed, item),
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

// matchesQuery reports whether the feed item mentions the free-text query.
func matchesQuery(item *gofeed.Item, needle string) bool {
	return strings.Contains(strings.ToLower(item.Title), needle) ||
		strings.Contains(strings.ToLower(item.Description), needle)
}

// itemImage returns the item's image URL, checking the image block first and
// falling back to enclosures.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") && strings.TrimSpace(enc.URL) != "" {
			return enc.URL
		}
	}
	return ""
}

// publishedTime prefers the published timestamp and falls back to updated.
func publishedTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

// rssMeta collects the opaque provider-specific fields.
func rssMeta(feed *gofeed.Feed, item *gofeed.Item) map[string]any {
	meta := map[string]any{"guid": item.GUID}
	if feed != nil && feed.Title != "" {
		meta["feed_title"] = feed.Title
	}
	if len(item.Categories) > 0 {
		meta["categories"] = item.Categories
	}
	return meta
}
