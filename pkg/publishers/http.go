package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newsradar-io/newsradar/pkg/httpclient"
)

// httpPublisher POSTs the event as JSON to a configured webhook URL.
// Delivery is at-most-once: a non-2xx response or transport error is
// reported back and never retried.
type httpPublisher struct {
	id      string
	url     string
	method  string
	headers map[string]string
	client  httpclient.Client
	log     Logger
}

// newHTTPPublisher creates a webhook publisher from its config entry.
func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}

	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range cfg.HTTP.Headers {
		headers[k] = v
	}

	return &httpPublisher{
		id:      cfg.ID,
		url:     cfg.HTTP.URL,
		method:  cfg.HTTP.Method,
		headers: headers,
		client:  httpclient.NewRestyClient(timeout),
		log:     ensureLogger(log),
	}, nil
}

// NewHTTPPublisher builds a webhook publisher for a bare URL with default
// method, headers and timeout. Useful when the caller manages its own sink
// list instead of a config file.
func NewHTTPPublisher(id, url string, log Logger) (Publisher, error) {
	cfg := sanitizePublisherConfig(PublisherConfig{
		ID:   id,
		Type: TypeHTTP,
		HTTP: &HTTPPublisherConfig{URL: url},
	})
	if err := validatePublisherConfig(cfg); err != nil {
		return nil, err
	}
	return newHTTPPublisher(context.Background(), cfg, log)
}

func (p *httpPublisher) ID() string   { return p.id }
func (p *httpPublisher) Type() string { return TypeHTTP }

// Publish sends the event to the webhook URL.
func (p *httpPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	resp, err := p.client.Post(ctx, p.url, p.headers, payload)
	if err != nil {
		p.log.ErrorObj("http publisher send failed", "publisher_http_error", map[string]any{
			"publisher_id": p.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("post event to %s: %w", p.url, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		p.log.ErrorObj("http publisher got non-2xx response", "publisher_http_error", map[string]any{
			"publisher_id": p.id,
			"status":       resp.StatusCode(),
		})
		return fmt.Errorf("webhook %s returned status %d", p.url, resp.StatusCode())
	}

	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"publisher_id": p.id,
		"event_type":   evt.Type,
	})
	return nil
}
