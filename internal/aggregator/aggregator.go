package aggregator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newsradar-io/newsradar/internal/cache"
	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/internal/fingerprint"
	"github.com/newsradar-io/newsradar/internal/logger"
	"github.com/newsradar-io/newsradar/internal/quota"
	"github.com/newsradar-io/newsradar/pkg/providers"
)

// Source priority policies. They order providers before concatenation; they
// never reorder or rescore individual articles.
const (
	PriorityBalanced = "balanced"
	PriorityQuality  = "quality"
	PrioritySpeed    = "speed"
	PriorityCost     = "cost"
)

const defaultRoundTimeout = 30 * time.Second

// Options tune one aggregate round.
type Options struct {
	UseCache       bool
	CacheTTL       time.Duration
	SourcePriority string
	MinCredibility float64
}

// Aggregator orchestrates one fan-out/fan-in round across all eligible
// providers: quota gate, concurrent fetch, priority-ordered merge, dedup,
// cache.
type Aggregator struct {
	providers    []providers.Provider
	registry     providers.FetcherRegistry
	quota        *quota.Tracker
	cache        cache.Cache
	log          logger.Logger
	roundTimeout time.Duration
}

// New builds an Aggregator. The provider slice order is the balanced-policy
// ordering and is never mutated.
func New(cfgs []providers.Provider, registry providers.FetcherRegistry, tracker *quota.Tracker, c cache.Cache, log logger.Logger, roundTimeout time.Duration) *Aggregator {
	if registry == nil {
		registry = providers.DefaultFetcherRegistry(nil)
	}
	if tracker == nil {
		tracker = quota.NewTracker(nil)
	}
	if c == nil {
		c = cache.NewMemory()
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if roundTimeout <= 0 {
		roundTimeout = defaultRoundTimeout
	}

	return &Aggregator{
		providers:    cfgs,
		registry:     registry,
		quota:        tracker,
		cache:        c,
		log:          log,
		roundTimeout: roundTimeout,
	}
}

// Aggregate runs one round for the query. The result is always
// success-shaped: provider failures and quota exclusions degrade their
// contribution to zero and surface only in the metadata.
func (a *Aggregator) Aggregate(ctx context.Context, q domain.Query, opts Options) domain.AggregateResult {
	key := cache.QueryKey(q, opts.SourcePriority, opts.MinCredibility)

	if opts.UseCache {
		if raw, ok := a.cache.Get(ctx, key); ok {
			var cached domain.AggregateResult
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.Metadata.FromCache = true
				return cached
			}
			a.log.WarnObj("cache entry undecodable, refetching", "cache_decode_error", map[string]any{"key": key})
		}
	}

	ordered := orderProviders(a.providers, opts.SourcePriority)

	type slot struct {
		cfg    providers.Provider
		result providers.FetchResult
		err    error
		ran    bool
	}
	slots := make([]slot, len(ordered))

	roundCtx, cancel := context.WithTimeout(ctx, a.roundTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for i, cfg := range ordered {
		slots[i].cfg = cfg

		if !a.quota.Reserve(cfg.ID) {
			continue
		}
		slots[i].ran = true

		wg.Add(1)
		go func(i int, cfg providers.Provider) {
			defer wg.Done()

			fetcher, err := a.registry.FetcherFor(cfg)
			if err != nil {
				slots[i].err = err
				return
			}
			slots[i].result, slots[i].err = fetcher.Fetch(roundCtx, cfg, q)
		}(i, cfg)
	}
	wg.Wait()

	merged := make([]domain.Article, 0, 64)
	reports := make([]domain.ProviderReport, 0, len(slots))
	for i := range slots {
		s := &slots[i]

		if s.ran && s.result.Requests > 0 {
			a.quota.Record(s.cfg.ID, s.result.Requests)
		}

		report := domain.ProviderReport{
			Provider:       s.cfg.ID,
			QuotaRemaining: a.quota.Remaining(s.cfg.ID),
		}
		switch {
		case !s.ran:
			report.Status = domain.ProviderStatusExcluded
		case s.err != nil:
			report.Status = domain.ProviderStatusError
			report.Error = s.err.Error()
			a.log.WarnObj("provider fetch failed", "provider_fetch_error", map[string]any{
				"provider_id": s.cfg.ID,
				"error":       s.err.Error(),
			})
		default:
			report.Status = domain.ProviderStatusSuccess
			report.Count = len(s.result.Articles)
			report.Skipped = s.result.Skipped
			merged = append(merged, s.result.Articles...)
		}
		reports = append(reports, report)
	}

	before := len(merged)
	deduped := fingerprint.Dedupe(merged)
	removed := before - len(deduped)

	if opts.MinCredibility > 0 {
		deduped = filterByCredibility(deduped, ordered, opts.MinCredibility)
	}

	result := domain.AggregateResult{
		Articles: deduped,
		Metadata: domain.AggregateMetadata{
			Sources:      reports,
			Deduplicated: removed,
		},
	}

	if opts.UseCache {
		if raw, err := json.Marshal(result); err == nil {
			a.cache.Set(ctx, key, raw, opts.CacheTTL)
		}
	}

	a.log.InfoObj("aggregate round complete", "aggregate_round", map[string]any{
		"articles":     len(result.Articles),
		"deduplicated": result.Metadata.Deduplicated,
		"providers":    len(reports),
	})

	return result
}

// filterByCredibility drops articles whose provider's static credibility
// score falls below the floor. Unknown providers are kept.
func filterByCredibility(articles []domain.Article, cfgs []providers.Provider, min float64) []domain.Article {
	scores := make(map[string]float64, len(cfgs))
	for _, cfg := range cfgs {
		scores[cfg.ID] = cfg.Credibility
	}

	out := articles[:0]
	for _, a := range articles {
		if score, known := scores[a.Source.ProviderID]; known && score < min {
			continue
		}
		out = append(out, a)
	}
	return out
}

// orderProviders applies the source priority policy. Each policy is a static
// ordering over per-provider config fields; balanced keeps the configured
// order.
func orderProviders(cfgs []providers.Provider, policy string) []providers.Provider {
	out := make([]providers.Provider, len(cfgs))
	copy(out, cfgs)

	switch strings.ToLower(strings.TrimSpace(policy)) {
	case PriorityQuality:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Credibility > out[j].Credibility })
	case PrioritySpeed:
		sort.SliceStable(out, func(i, j int) bool { return out[i].LatencyRank < out[j].LatencyRank })
	case PriorityCost:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CostRank < out[j].CostRank })
	default: // balanced
	}
	return out
}
