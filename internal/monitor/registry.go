package monitor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newsradar-io/newsradar/internal/aggregator"
	"github.com/newsradar-io/newsradar/internal/logger"
)

// ErrUnknownMonitor is returned when stopping a monitor id that is not
// active. Passing a bad id is a programmer error and fails fast.
var ErrUnknownMonitor = errors.New("unknown monitor id")

// Registry owns every active monitor. It is an explicit dependency of the
// composing application, not ambient global state; independent registries
// never share monitors.
type Registry struct {
	agg *aggregator.Aggregator
	log logger.Logger

	mu       sync.Mutex
	monitors map[string]*monitor
}

// NewRegistry builds a Registry driving the given aggregator.
func NewRegistry(agg *aggregator.Aggregator, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Registry{
		agg:      agg,
		log:      log,
		monitors: make(map[string]*monitor),
	}
}

// Handle identifies a started monitor and can stop it directly.
type Handle struct {
	ID   string
	Stop func() (Stats, error)
}

// Start creates a monitor, performs one synchronous initial check, then
// schedules periodic checks at the configured interval. Monitors are fully
// independent: separate seen sets, separate schedules.
func (r *Registry) Start(opts Options) (Handle, error) {
	if r.agg == nil {
		return Handle{}, errors.New("registry has no aggregator")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}

	m := &monitor{
		id:     uuid.NewString(),
		opts:   opts,
		agg:    r.agg,
		log:    r.log,
		seen:   make(map[string]struct{}),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		stats: Stats{
			Query:     opts.Query.Text,
			StartedAt: time.Now(),
		},
	}
	m.stats.ID = m.id

	r.mu.Lock()
	r.monitors[m.id] = m
	r.mu.Unlock()

	// Immediate synchronous first check, then the periodic schedule.
	m.tick()
	go m.run()

	r.log.InfoObj("monitor started", "monitor_started", map[string]any{
		"monitor_id": m.id,
		"query":      opts.Query.Text,
		"interval":   opts.Interval.String(),
	})

	id := m.id
	return Handle{
		ID:   id,
		Stop: func() (Stats, error) { return r.Stop(id) },
	}, nil
}

// Stop halts the monitor, removes it from the registry and returns its
// final stats. Stopping an unknown (or already stopped) id fails with
// ErrUnknownMonitor.
func (r *Registry) Stop(id string) (Stats, error) {
	r.mu.Lock()
	m, ok := r.monitors[id]
	if ok {
		delete(r.monitors, id)
	}
	r.mu.Unlock()

	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrUnknownMonitor, id)
	}

	m.stop()

	r.log.InfoObj("monitor stopped", "monitor_stopped", map[string]any{
		"monitor_id": id,
	})
	return m.snapshot(false), nil
}

// StopAll stops every active monitor and returns how many were stopped.
func (r *Registry) StopAll() int {
	r.mu.Lock()
	active := make([]*monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		active = append(active, m)
	}
	r.monitors = make(map[string]*monitor)
	r.mu.Unlock()

	for _, m := range active {
		m.stop()
	}

	if len(active) > 0 {
		r.log.InfoObj("all monitors stopped", "monitors_stopped", map[string]any{
			"count": len(active),
		})
	}
	return len(active)
}

// Status returns a stats snapshot for every active monitor.
func (r *Registry) Status() []Stats {
	r.mu.Lock()
	active := make([]*monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		active = append(active, m)
	}
	r.mu.Unlock()

	out := make([]Stats, 0, len(active))
	for _, m := range active {
		out = append(out, m.snapshot(true))
	}
	return out
}
