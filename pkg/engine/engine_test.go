package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/newsradar-io/newsradar/internal/config"
	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/internal/store"
	"github.com/newsradar-io/newsradar/pkg/providers"
)

// feedHandler serves a mutable RSS document.
type feedHandler struct {
	mu    sync.Mutex
	items string
}

func (h *feedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	items := h.items
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Feed</title>` + items + `</channel></rss>`))
}

func (h *feedHandler) setItems(items string) {
	h.mu.Lock()
	h.items = items
	h.mu.Unlock()
}

func item(slug string) string {
	return `<item><title>Story ` + slug + `</title><link>https://example.com/` + slug + `</link></item>`
}

func testEngine(t *testing.T, feedURL string) *Engine {
	t.Helper()

	cfg := &config.Config{
		Cache:      config.CacheConfig{TTL: time.Minute},
		Aggregator: config.AggregatorConfig{RoundTimeout: 5 * time.Second},
		Monitor:    config.MonitorConfig{DefaultInterval: time.Minute},
		Providers: []providers.Provider{
			{ID: "test-feed", Type: providers.ProviderTypeRSS, SourceURL: feedURL},
		},
	}

	e, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func TestEngineAggregate(t *testing.T) {
	h := &feedHandler{items: item("a") + item("b")}
	srv := httptest.NewServer(h)
	defer srv.Close()

	e := testEngine(t, srv.URL)

	res := e.Aggregate(context.Background(), domain.Query{}, AggregateOptions{})
	if len(res.Articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(res.Articles))
	}
	if len(res.Metadata.Sources) != 1 || res.Metadata.Sources[0].Status != domain.ProviderStatusSuccess {
		t.Fatalf("metadata = %+v", res.Metadata)
	}
}

func TestEngineAggregateCached(t *testing.T) {
	h := &feedHandler{items: item("a")}
	srv := httptest.NewServer(h)
	defer srv.Close()

	e := testEngine(t, srv.URL)
	ctx := context.Background()

	first := e.Aggregate(ctx, domain.Query{Text: "story"}, AggregateOptions{UseCache: true})
	if first.Metadata.FromCache {
		t.Fatal("first call reported FromCache")
	}

	h.setItems(item("a") + item("b"))
	second := e.Aggregate(ctx, domain.Query{Text: "story"}, AggregateOptions{UseCache: true})
	if !second.Metadata.FromCache {
		t.Fatal("second call missed the cache")
	}
	if len(second.Articles) != len(first.Articles) {
		t.Error("cached result diverged from the original")
	}
}

func TestEngineMonitorLifecycle(t *testing.T) {
	h := &feedHandler{items: item("a")}
	srv := httptest.NewServer(h)
	defer srv.Close()

	e := testEngine(t, srv.URL)

	batches := make(chan []domain.Article, 16)
	handle, err := e.StartMonitoring(MonitorOptions{
		Interval:      30 * time.Millisecond,
		OnNewArticles: func(a []domain.Article) { batches <- a },
	})
	if err != nil {
		t.Fatalf("start monitoring: %v", err)
	}

	first := <-batches
	if len(first) != 1 {
		t.Fatalf("initial batch = %d, want 1", len(first))
	}

	h.setItems(item("a") + item("b"))

	select {
	case next := <-batches:
		if len(next) != 1 || next[0].Title != "Story b" {
			t.Fatalf("delta batch = %+v, want only Story b", next)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never reported the new article")
	}

	if len(e.MonitorStatus()) != 1 {
		t.Fatal("monitor missing from status")
	}

	stats, err := e.StopMonitoring(handle.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if stats.ArticlesFound != 2 {
		t.Errorf("articles found = %d, want 2", stats.ArticlesFound)
	}
	if got := e.StopAllMonitors(); got != 0 {
		t.Errorf("StopAllMonitors after stop = %d, want 0", got)
	}
}

func TestEngineArchivesArticles(t *testing.T) {
	h := &feedHandler{items: item("a") + item("b")}
	srv := httptest.NewServer(h)
	defer srv.Close()

	path := t.TempDir() + "/articles.db"
	cfg := &config.Config{
		Cache:      config.CacheConfig{TTL: time.Minute},
		Aggregator: config.AggregatorConfig{RoundTimeout: 5 * time.Second},
		Monitor:    config.MonitorConfig{DefaultInterval: time.Minute},
		Store:      config.StoreConfig{Path: path},
		Providers: []providers.Provider{
			{ID: "test-feed", Type: providers.ProviderTypeRSS, SourceURL: srv.URL},
		},
	}
	e, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	e.Aggregate(context.Background(), domain.Query{}, AggregateOptions{})
	e.Aggregate(context.Background(), domain.Query{}, AggregateOptions{}) // idempotent re-save
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	archive, err := store.OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	defer archive.Close()

	count, err := archive.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("archived articles = %d, want 2", count)
	}
}
