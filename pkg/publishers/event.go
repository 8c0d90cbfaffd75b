package publishers

import (
	"context"
	"time"

	"github.com/newsradar-io/newsradar/internal/domain"
)

// Event types emitted by the monitoring engine.
const (
	EventTypeNewArticles  = "new_articles"
	EventTypeMonitorError = "monitor_error"
)

// DefaultTimeout bounds a single delivery attempt. There are no retries:
// delivery is at-most-once.
const DefaultTimeout = 5 * time.Second

// Event is the notification payload delivered to webhooks and queues when a
// monitor detects new articles or a degraded tick.
type Event struct {
	Type      string           `json:"type"`
	MonitorID string           `json:"monitor_id,omitempty"`
	Count     int              `json:"count,omitempty"`
	Articles  []domain.Article `json:"articles,omitempty"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Publisher delivers events to one configured sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}
