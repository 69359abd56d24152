// Package webhook implements an HTTP webhook notifier
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/newthinker/argus/internal/notifier"
)

const defaultTimeout = 30 * time.Second

// Webhook posts the digest as JSON to a URL
type Webhook struct {
	url     string
	headers map[string]string
	client  *resty.Client
}

// New creates a new Webhook notifier
func New(url string, headers map[string]string) *Webhook {
	return &Webhook{
		url:     url,
		headers: headers,
		client:  resty.New().SetTimeout(defaultTimeout),
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Init(cfg notifier.Config) error {
	if url, ok := cfg.Params["url"].(string); ok {
		w.url = url
	}
	if headers, ok := cfg.Params["headers"].(map[string]string); ok {
		w.headers = headers
	}

	if w.url == "" {
		return fmt.Errorf("webhook: url is required")
	}

	if w.client == nil {
		w.client = resty.New().SetTimeout(defaultTimeout)
	}

	return nil
}

func (w *Webhook) Send(ctx context.Context, d notifier.Digest) error {
	payload := map[string]any{
		"type":    "run_digest",
		"subject": notifier.Subject(d),
		"digest":  d,
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeaders(w.headers).
		SetBody(payload).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode())
	}
	return nil
}
