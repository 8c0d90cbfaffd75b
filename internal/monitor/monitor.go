package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/newsradar-io/newsradar/internal/aggregator"
	"github.com/newsradar-io/newsradar/internal/domain"
	"github.com/newsradar-io/newsradar/internal/logger"
	"github.com/newsradar-io/newsradar/pkg/publishers"
)

const defaultInterval = 5 * time.Minute

// Options configure one monitor subscription.
type Options struct {
	Query          domain.Query
	Interval       time.Duration
	SourcePriority string
	MinCredibility float64

	// OnNewArticles receives each batch of newly seen articles, at most
	// once per batch. OnError receives tick-level failures. Both are
	// optional and invoked from the monitor's own goroutine.
	OnNewArticles func([]domain.Article)
	OnError       func(error)

	// Publishers are the notification sinks (webhooks, queues) that get a
	// new_articles event per batch. Delivery is parallel, fire-and-forget.
	Publishers []publishers.Publisher
}

// Stats is the observable state of one monitor.
type Stats struct {
	ID              string    `json:"id"`
	Query           string    `json:"query"`
	StartedAt       time.Time `json:"started_at"`
	ChecksPerformed int       `json:"checks_performed"`
	ArticlesFound   int       `json:"articles_found"`
	Errors          int       `json:"errors"`
	LastCheckAt     time.Time `json:"last_check_at"`
	Running         bool      `json:"running"`
}

// monitor is one running subscription. The seen set is owned exclusively by
// the monitor's tick path and grows without bound for the monitor's
// lifetime; an article is never reported twice while tracked.
type monitor struct {
	id   string
	opts Options
	agg  *aggregator.Aggregator
	log  logger.Logger

	seen map[string]struct{}

	mu    sync.Mutex
	stats Stats

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// run is the monitor loop: one check per interval until stopped. The
// initial check already ran synchronously in Start. A failing tick is
// counted and reported, never fatal.
func (m *monitor) run() {
	defer close(m.done)

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick performs one aggregation round with caching bypassed, diffs the
// result against the seen set and forwards only the delta. The seen set is
// updated only on a successful round, so a failed round re-reports nothing
// and loses nothing.
func (m *monitor) tick() {
	ctx := context.Background()

	result := m.agg.Aggregate(ctx, m.opts.Query, aggregator.Options{
		UseCache:       false, // the monitor needs fresh data every tick
		SourcePriority: m.opts.SourcePriority,
		MinCredibility: m.opts.MinCredibility,
	})

	now := time.Now()

	if roundFailed(result) {
		m.mu.Lock()
		m.stats.ChecksPerformed++
		m.stats.Errors++
		m.stats.LastCheckAt = now
		m.mu.Unlock()

		err := fmt.Errorf("monitor %s: every provider failed or was excluded", m.id)
		m.log.WarnObj("monitor tick degraded", "monitor_tick_error", map[string]any{
			"monitor_id": m.id,
			"sources":    len(result.Metadata.Sources),
		})
		if m.opts.OnError != nil {
			m.opts.OnError(err)
		}
		m.dispatch(publishers.Event{
			Type:      publishers.EventTypeMonitorError,
			MonitorID: m.id,
			Error:     err.Error(),
			Timestamp: now,
		})
		return
	}

	var fresh []domain.Article
	for _, a := range result.Articles {
		if _, ok := m.seen[a.Fingerprint]; !ok {
			fresh = append(fresh, a)
		}
	}
	for _, a := range result.Articles {
		m.seen[a.Fingerprint] = struct{}{}
	}

	m.mu.Lock()
	m.stats.ChecksPerformed++
	m.stats.ArticlesFound += len(fresh)
	m.stats.LastCheckAt = now
	m.mu.Unlock()

	if len(fresh) == 0 {
		return
	}

	m.log.InfoObj("monitor found new articles", "monitor_new_articles", map[string]any{
		"monitor_id": m.id,
		"count":      len(fresh),
	})

	if m.opts.OnNewArticles != nil {
		m.opts.OnNewArticles(fresh)
	}
	m.dispatch(publishers.Event{
		Type:      publishers.EventTypeNewArticles,
		MonitorID: m.id,
		Count:     len(fresh),
		Articles:  fresh,
		Timestamp: now,
	})
}

// dispatch delivers the event to every publisher in parallel. Each delivery
// has its own timeout; a failure is logged and never reaches the tick.
func (m *monitor) dispatch(evt publishers.Event) {
	if len(m.opts.Publishers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, pub := range m.opts.Publishers {
		if pub == nil {
			continue
		}
		wg.Add(1)
		go func(pub publishers.Publisher) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), publishers.DefaultTimeout)
			defer cancel()

			if err := pub.Publish(ctx, evt); err != nil {
				m.log.WarnObj("notification delivery failed", "monitor_publish_error", map[string]any{
					"monitor_id": m.id,
					"publisher":  pub.ID(),
					"error":      err.Error(),
				})
			}
		}(pub)
	}
	wg.Wait()
}

// snapshot returns a copy of the stats.
func (m *monitor) snapshot(running bool) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stats
	s.Running = running
	return s
}

// stop requests shutdown and waits for the loop to exit. An in-flight tick
// completes; nothing is scheduled after.
func (m *monitor) stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	<-m.done
}

// roundFailed reports whether every provider in the round errored or was
// quota-excluded. An empty round with at least one healthy provider is not
// a failure, just a quiet query.
func roundFailed(result domain.AggregateResult) bool {
	if len(result.Metadata.Sources) == 0 {
		return true
	}
	for _, rep := range result.Metadata.Sources {
		if rep.Status == domain.ProviderStatusSuccess {
			return false
		}
	}
	return true
}
