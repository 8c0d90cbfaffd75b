package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/newsradar-io/newsradar/internal/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Tech Blog</title>
    <link>https://blog.example.com</link>
    <item>
      <title>Go 1.25 Released</title>
      <link>https://blog.example.com/go-125?utm_source=rss</link>
      <description>The Go team announced the release.</description>
      <guid>https://blog.example.com/go-125</guid>
      <pubDate>Mon, 02 Mar 2026 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Kernel Update Notes</title>
      <link>https://blog.example.com/kernel</link>
      <description>Scheduler changes landed.</description>
      <pubDate>Sun, 01 Mar 2026 08:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSFetch(t *testing.T) {
	srv := feedServer(t)

	f := NewRSSFetcher(DefaultHTTPClient())
	cfg := Provider{ID: "example-blog", Type: ProviderTypeRSS, Name: "Example Tech Blog", SourceURL: srv.URL}

	res, err := f.Fetch(context.Background(), cfg, domain.Query{})

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, res.Requests)
	assert.Equal(t, 2, len(res.Articles))

	a := res.Articles[0]
	assert.Equal(t, "Go 1.25 Released", a.Title)
	assert.Equal(t, "Example Tech Blog", a.Source.Name)
	assert.Equal(t, "example-blog", a.Source.ProviderID)
	assert.NotEqual(t, "", a.Fingerprint)
	assert.Equal(t, 2026, a.PublishedAt.Year())
}

func TestRSSFetchFreeTextFilter(t *testing.T) {
	srv := feedServer(t)

	f := NewRSSFetcher(DefaultHTTPClient())
	cfg := Provider{ID: "example-blog", Type: ProviderTypeRSS, SourceURL: srv.URL}

	res, err := f.Fetch(context.Background(), cfg, domain.Query{Text: "kernel"})

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(res.Articles))
	assert.Equal(t, "Kernel Update Notes", res.Articles[0].Title)
}

func TestRSSFetchLimit(t *testing.T) {
	srv := feedServer(t)

	f := NewRSSFetcher(DefaultHTTPClient())
	cfg := Provider{ID: "example-blog", Type: ProviderTypeRSS, SourceURL: srv.URL}

	res, err := f.Fetch(context.Background(), cfg, domain.Query{Limit: 1})

	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(res.Articles))
}

func TestRSSFetchUnparseableFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed"))
	}))
	defer srv.Close()

	f := NewRSSFetcher(DefaultHTTPClient())
	cfg := Provider{ID: "broken", Type: ProviderTypeRSS, SourceURL: srv.URL}

	_, err := f.Fetch(context.Background(), cfg, domain.Query{})
	assert.NotEqual(t, nil, err)
}
