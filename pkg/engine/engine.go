// Package engine composes the aggregation and monitoring components into
// the surface the hosting application talks to: a pull API (Aggregate) and
// a push API (StartMonitoring / StopMonitoring / StopAllMonitors).
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/newsradar-io/newsradar/internal/aggregator"
	"github.com/newsradar-io/newsradar/internal/cache"
	"github.com/newsradar-io/newsradar/internal/config"
	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/internal/enrich"
	"github.com/newsradar-io/newsradar/internal/logger"
	"github.com/newsradar-io/newsradar/internal/monitor"
	"github.com/newsradar-io/newsradar/internal/quota"
	"github.com/newsradar-io/newsradar/internal/store"
	"github.com/newsradar-io/newsradar/pkg/providers"
	"github.com/newsradar-io/newsradar/pkg/publishers"
)

// Engine is the assembled news aggregation and monitoring component.
type Engine struct {
	cfg      *config.Config
	log      logger.Logger
	agg      *aggregator.Aggregator
	monitors *monitor.Registry
	enricher *enrich.Enricher
	pubs     []publishers.Publisher
	archive  *store.BoltStore
}

// New wires the engine from configuration: HTTP client, fetcher registry,
// quota tracker, cache backend, aggregator, monitor registry and the
// configured notification publishers.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	client := providers.DefaultHTTPClient()
	registry := providers.DefaultFetcherRegistry(client)
	tracker := quota.NewTracker(cfg.QuotaLimits())

	var c cache.Cache
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisFromURL(cfg.Cache.RedisURL, log)
		if err != nil {
			return nil, fmt.Errorf("cache backend: %w", err)
		}
		c = redisCache
	} else {
		c = cache.NewMemory()
	}

	agg := aggregator.New(cfg.Providers, registry, tracker, c, log, cfg.Aggregator.RoundTimeout)

	var pubs []publishers.Publisher
	if cfg.PublishersFile != "" {
		reg, err := publishers.LoadRegistry(cfg.PublishersFile)
		if err != nil {
			return nil, fmt.Errorf("publishers registry: %w", err)
		}
		pubs, err = publishers.BuildAll(ctx, publishers.DefaultRegistry(), reg.Enabled(), log)
		if err != nil {
			return nil, fmt.Errorf("build publishers: %w", err)
		}
	}

	var archive *store.BoltStore
	if cfg.Store.Path != "" {
		opened, err := store.OpenBolt(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("article store: %w", err)
		}
		archive = opened
	}

	return &Engine{
		cfg:      cfg,
		log:      log,
		agg:      agg,
		monitors: monitor.NewRegistry(agg, log),
		enricher: enrich.New(client, log),
		pubs:     pubs,
		archive:  archive,
	}, nil
}

// AggregateOptions tune one pull-style aggregation call.
type AggregateOptions struct {
	UseCache       bool
	SourcePriority string
	MinCredibility float64
	EnrichMetadata bool
}

// Aggregate runs one aggregation round. The result is always
// success-shaped; inspect the metadata for degraded providers.
func (e *Engine) Aggregate(ctx context.Context, q domain.Query, opts AggregateOptions) domain.AggregateResult {
	result := e.agg.Aggregate(ctx, q, aggregator.Options{
		UseCache:       opts.UseCache,
		CacheTTL:       e.cfg.Cache.TTL,
		SourcePriority: opts.SourcePriority,
		MinCredibility: opts.MinCredibility,
	})

	if opts.EnrichMetadata && !result.Metadata.FromCache {
		result.Articles = e.enrichByProvider(ctx, result.Articles)
	}

	if e.archive != nil && !result.Metadata.FromCache {
		saved, err := e.archive.Save(ctx, result.Articles)
		if err != nil {
			e.log.WarnObj("article archive save failed", "archive_error", map[string]any{
				"error": err.Error(),
			})
		} else if saved > 0 {
			e.log.DebugObj("archived new articles", "archive_save", map[string]any{
				"saved": saved,
			})
		}
	}

	return result
}

// enrichByProvider scrapes page metadata for articles from providers
// flagged enrich in their config.
func (e *Engine) enrichByProvider(ctx context.Context, articles []domain.Article) []domain.Article {
	flagged := make(map[string]providers.Provider)
	for _, p := range e.cfg.Providers {
		if p.Enrich {
			flagged[p.ID] = p
		}
	}
	if len(flagged) == 0 {
		return articles
	}

	out := make([]domain.Article, len(articles))
	copy(out, articles)

	// Group indexes per provider so each group honors its request delay.
	groups := make(map[string][]int)
	for i, a := range out {
		if _, ok := flagged[a.Source.ProviderID]; ok {
			groups[a.Source.ProviderID] = append(groups[a.Source.ProviderID], i)
		}
	}

	for providerID, idxs := range groups {
		subset := make([]domain.Article, len(idxs))
		for i, idx := range idxs {
			subset[i] = out[idx]
		}
		enriched := e.enricher.Enrich(ctx, flagged[providerID], subset)
		for i, idx := range idxs {
			out[idx] = enriched[i]
		}
	}
	return out
}

// MonitorOptions configure one monitoring subscription.
type MonitorOptions struct {
	Query          domain.Query
	Interval       time.Duration
	SourcePriority string
	MinCredibility float64
	OnNewArticles  func([]domain.Article)
	OnError        func(error)

	// ExtraPublishers are dispatched in addition to the engine's
	// configured sinks.
	ExtraPublishers []publishers.Publisher
}

// StartMonitoring creates a monitor that re-aggregates the query on every
// interval (caching bypassed) and reports only newly seen articles.
func (e *Engine) StartMonitoring(opts MonitorOptions) (monitor.Handle, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = e.cfg.Monitor.DefaultInterval
	}

	sinks := make([]publishers.Publisher, 0, len(e.pubs)+len(opts.ExtraPublishers))
	sinks = append(sinks, e.pubs...)
	sinks = append(sinks, opts.ExtraPublishers...)

	return e.monitors.Start(monitor.Options{
		Query:          opts.Query,
		Interval:       interval,
		SourcePriority: opts.SourcePriority,
		MinCredibility: opts.MinCredibility,
		OnNewArticles:  opts.OnNewArticles,
		OnError:        opts.OnError,
		Publishers:     sinks,
	})
}

// StopMonitoring stops one monitor and returns its final stats.
func (e *Engine) StopMonitoring(id string) (monitor.Stats, error) {
	return e.monitors.Stop(id)
}

// StopAllMonitors stops every active monitor and returns the count stopped.
func (e *Engine) StopAllMonitors() int {
	return e.monitors.StopAll()
}

// MonitorStatus returns stats snapshots for all active monitors.
func (e *Engine) MonitorStatus() []monitor.Stats {
	return e.monitors.Status()
}

// Close stops every monitor and releases the article store.
func (e *Engine) Close() error {
	e.monitors.StopAll()
	if e.archive != nil {
		return e.archive.Close()
	}
	return nil
}
