package aggregator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/newsradar-io/newsradar/internal/cache"
	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/internal/quota"
	"github.com/newsradar-io/newsradar/pkg/providers"
)

// scriptedFetcher returns canned results per provider id.
type scriptedFetcher struct {
	id      string
	results map[string]providers.FetchResult
	errs    map[string]error
}

func (f *scriptedFetcher) ID() string { return f.id }

func (f *scriptedFetcher) Fetch(_ context.Context, cfg providers.Provider, _ domain.Query) (providers.FetchResult, error) {
	if err := f.errs[cfg.ID]; err != nil {
		return providers.FetchResult{Requests: 1}, err
	}
	res := f.results[cfg.ID]
	if res.Requests == 0 {
		res.Requests = 1
	}
	return res, nil
}

func article(fp, title, providerID string) domain.Article {
	return domain.Article{
		Fingerprint: fp,
		Title:       title,
		URL:         "https://example.com/" + fp,
		Source:      domain.Source{Name: providerID, ProviderID: providerID},
	}
}

// brokenCache fails every operation; Get always misses.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (brokenCache) Set(context.Context, string, []byte, time.Duration) {}

func (brokenCache) Invalidate(context.Context, string) {}

func newTestAggregator(fetcher providers.Fetcher, cfgs []providers.Provider, tracker *quota.Tracker, c cache.Cache) *Aggregator {
	reg := providers.NewFetcherRegistry(fetcher)
	return New(cfgs, reg, tracker, c, nil, time.Second)
}

func TestAggregateMergesAndDeduplicates(t *testing.T) {
	// Provider A: 100 articles, one of them a duplicate of provider B's.
	// Provider B: 20 unique articles. Expect 119 out, 1 deduplicated.
	aArticles := make([]domain.Article, 0, 100)
	for i := 0; i < 99; i++ {
		aArticles = append(aArticles, article(fmt.Sprintf("a-%d", i), "A story", "prov-a"))
	}
	aArticles = append(aArticles, article("shared", "Shared story", "prov-a"))

	bArticles := make([]domain.Article, 0, 20)
	bArticles = append(bArticles, article("shared", "Shared story", "prov-b"))
	for i := 0; i < 19; i++ {
		bArticles = append(bArticles, article(fmt.Sprintf("b-%d", i), "B story", "prov-b"))
	}

	fetcher := &scriptedFetcher{
		id: "scripted",
		results: map[string]providers.FetchResult{
			"prov-a": {Articles: aArticles},
			"prov-b": {Articles: bArticles},
		},
	}
	cfgs := []providers.Provider{
		{ID: "prov-a", Type: "scripted"},
		{ID: "prov-b", Type: "scripted"},
	}

	agg := newTestAggregator(fetcher, cfgs, nil, nil)
	res := agg.Aggregate(context.Background(), domain.Query{Text: "story"}, Options{})

	if len(res.Articles) != 119 {
		t.Errorf("article count = %d, want 119", len(res.Articles))
	}
	if res.Metadata.Deduplicated != 1 {
		t.Errorf("deduplicated = %d, want 1", res.Metadata.Deduplicated)
	}
	// First-seen wins: provider A supplied "shared" first in balanced order.
	for _, a := range res.Articles {
		if a.Fingerprint == "shared" && a.Source.ProviderID != "prov-a" {
			t.Errorf("duplicate kept from %s, want first-seen prov-a", a.Source.ProviderID)
		}
	}
}

func TestAggregateExcludesExhaustedProvider(t *testing.T) {
	fetcher := &scriptedFetcher{
		id: "scripted",
		results: map[string]providers.FetchResult{
			"prov-a": {Articles: []domain.Article{article("a-1", "A", "prov-a")}},
			"prov-b": {Articles: []domain.Article{article("b-1", "B", "prov-b")}},
		},
	}
	cfgs := []providers.Provider{
		{ID: "prov-a", Type: "scripted"},
		{ID: "prov-b", Type: "scripted"},
	}

	tracker := quota.NewTracker(map[string]int{"prov-a": 1})
	if !tracker.Reserve("prov-a") {
		t.Fatal("setup: could not exhaust prov-a")
	}

	agg := newTestAggregator(fetcher, cfgs, tracker, nil)
	res := agg.Aggregate(context.Background(), domain.Query{}, Options{})

	if len(res.Articles) != 1 || res.Articles[0].Source.ProviderID != "prov-b" {
		t.Fatalf("expected only prov-b articles, got %+v", res.Articles)
	}

	var aReport, bReport *domain.ProviderReport
	for i := range res.Metadata.Sources {
		switch res.Metadata.Sources[i].Provider {
		case "prov-a":
			aReport = &res.Metadata.Sources[i]
		case "prov-b":
			bReport = &res.Metadata.Sources[i]
		}
	}
	if aReport == nil || aReport.Status != domain.ProviderStatusExcluded {
		t.Errorf("prov-a report = %+v, want quota_excluded", aReport)
	}
	if aReport != nil && aReport.QuotaRemaining != 0 {
		t.Errorf("prov-a quota remaining = %d, want 0", aReport.QuotaRemaining)
	}
	if bReport == nil || bReport.Status != domain.ProviderStatusSuccess {
		t.Errorf("prov-b report = %+v, want success", bReport)
	}
}

func TestAggregateProviderFailureNeverAbortsRound(t *testing.T) {
	fetcher := &scriptedFetcher{
		id: "scripted",
		results: map[string]providers.FetchResult{
			"prov-b": {Articles: []domain.Article{article("b-1", "B", "prov-b")}},
		},
		errs: map[string]error{"prov-a": errors.New("connection refused")},
	}
	cfgs := []providers.Provider{
		{ID: "prov-a", Type: "scripted"},
		{ID: "prov-b", Type: "scripted"},
	}

	agg := newTestAggregator(fetcher, cfgs, nil, nil)
	res := agg.Aggregate(context.Background(), domain.Query{}, Options{})

	if len(res.Articles) != 1 {
		t.Fatalf("expected prov-b's article despite prov-a failure, got %d", len(res.Articles))
	}
	for _, rep := range res.Metadata.Sources {
		if rep.Provider == "prov-a" {
			if rep.Status != domain.ProviderStatusError || rep.Error == "" {
				t.Errorf("prov-a report = %+v, want error status with message", rep)
			}
		}
	}
}

func TestAggregateAllProvidersFailStillSuccessShaped(t *testing.T) {
	fetcher := &scriptedFetcher{
		id:   "scripted",
		errs: map[string]error{"prov-a": errors.New("down"), "prov-b": errors.New("down")},
	}
	cfgs := []providers.Provider{
		{ID: "prov-a", Type: "scripted"},
		{ID: "prov-b", Type: "scripted"},
	}

	agg := newTestAggregator(fetcher, cfgs, nil, nil)
	res := agg.Aggregate(context.Background(), domain.Query{}, Options{})

	if len(res.Articles) != 0 {
		t.Errorf("expected empty result, got %d articles", len(res.Articles))
	}
	if len(res.Metadata.Sources) != 2 {
		t.Fatalf("expected 2 source reports, got %d", len(res.Metadata.Sources))
	}
	for _, rep := range res.Metadata.Sources {
		if rep.Status != domain.ProviderStatusError {
			t.Errorf("%s status = %s, want error", rep.Provider, rep.Status)
		}
	}
}

func TestAggregateCacheFastPath(t *testing.T) {
	fetcher := &scriptedFetcher{
		id: "scripted",
		results: map[string]providers.FetchResult{
			"prov-a": {Articles: []domain.Article{article("a-1", "A", "prov-a")}},
		},
	}
	cfgs := []providers.Provider{{ID: "prov-a", Type: "scripted"}}

	mem := cache.NewMemory()
	tracker := quota.NewTracker(map[string]int{"prov-a": 10})
	agg := newTestAggregator(fetcher, cfgs, tracker, mem)

	q := domain.Query{Text: "cached"}
	first := agg.Aggregate(context.Background(), q, Options{UseCache: true})
	if first.Metadata.FromCache {
		t.Fatal("first round reported FromCache")
	}

	second := agg.Aggregate(context.Background(), q, Options{UseCache: true})
	if !second.Metadata.FromCache {
		t.Fatal("second round missed the cache")
	}
	if tracker.Remaining("prov-a") != 9 {
		t.Errorf("cached round consumed quota: remaining = %d, want 9", tracker.Remaining("prov-a"))
	}
}

func TestAggregateCacheDegradation(t *testing.T) {
	fetcher := &scriptedFetcher{
		id: "scripted",
		results: map[string]providers.FetchResult{
			"prov-a": {Articles: []domain.Article{article("a-1", "A", "prov-a")}},
		},
	}
	cfgs := []providers.Provider{{ID: "prov-a", Type: "scripted"}}

	agg := newTestAggregator(fetcher, cfgs, nil, brokenCache{})
	res := agg.Aggregate(context.Background(), domain.Query{}, Options{UseCache: true})

	if len(res.Articles) != 1 {
		t.Errorf("broken cache backend changed results: got %d articles", len(res.Articles))
	}
	if res.Metadata.FromCache {
		t.Error("broken cache reported a hit")
	}
}

func TestAggregateMinCredibilityFilter(t *testing.T) {
	fetcher := &scriptedFetcher{
		id: "scripted",
		results: map[string]providers.FetchResult{
			"tabloid": {Articles: []domain.Article{article("t-1", "T", "tabloid")}},
			"wire":    {Articles: []domain.Article{article("w-1", "W", "wire")}},
		},
	}
	cfgs := []providers.Provider{
		{ID: "tabloid", Type: "scripted", Credibility: 0.3},
		{ID: "wire", Type: "scripted", Credibility: 0.9},
	}

	agg := newTestAggregator(fetcher, cfgs, nil, nil)
	res := agg.Aggregate(context.Background(), domain.Query{}, Options{MinCredibility: 0.5})

	if len(res.Articles) != 1 || res.Articles[0].Source.ProviderID != "wire" {
		t.Fatalf("credibility filter kept %+v, want only wire", res.Articles)
	}
}

func TestOrderProvidersPolicies(t *testing.T) {
	cfgs := []providers.Provider{
		{ID: "a", Credibility: 0.5, LatencyRank: 3, CostRank: 1},
		{ID: "b", Credibility: 0.9, LatencyRank: 1, CostRank: 3},
		{ID: "c", Credibility: 0.7, LatencyRank: 2, CostRank: 2},
	}

	cases := []struct {
		policy string
		want   []string
	}{
		{PriorityBalanced, []string{"a", "b", "c"}},
		{PriorityQuality, []string{"b", "c", "a"}},
		{PrioritySpeed, []string{"b", "c", "a"}},
		{PriorityCost, []string{"a", "c", "b"}},
		{"", []string{"a", "b", "c"}},
	}

	for _, tc := range cases {
		got := orderProviders(cfgs, tc.policy)
		for i, id := range tc.want {
			if got[i].ID != id {
				t.Errorf("policy %q position %d: got %s, want %s", tc.policy, i, got[i].ID, id)
			}
		}
	}
}
