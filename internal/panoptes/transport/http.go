package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vaibhaw-/panoptes/internal/panoptes/config"
	"github.com/vaibhaw-/panoptes/internal/panoptes/event"
)

const httpRetryBase = 100 * time.Millisecond

// HTTPSink POSTs each event as JSON to a collector endpoint.
type HTTPSink struct {
	client     *http.Client
	endpoint   string
	timeout    time.Duration
	maxRetries uint64
	headers    map[string]string
}

func NewHTTPSink(cfg config.HTTPCfg, client *http.Client) *HTTPSink {
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	var retries uint64
	if cfg.MaxRetries > 0 {
		retries = uint64(cfg.MaxRetries)
	}
	return &HTTPSink{
		client:     client,
		endpoint:   cfg.Endpoint,
		timeout:    timeout,
		maxRetries: retries,
		headers:    cfg.Headers,
	}
}

func (s *HTTPSink) Name() string { return "http" }

// Send is a no-op when no endpoint is configured. Network errors and 5xx
// responses are retried up to maxRetries times with exponential backoff.
func (s *HTTPSink) Send(ctx context.Context, ev event.Event) error {
	if s.endpoint == "" {
		return nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(httpRetryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return s.post(ctx, body)
	})
}

func (s *HTTPSink) post(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("post %s: %w", s.endpoint, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("post %s: status %d", s.endpoint, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("post %s: status %d", s.endpoint, resp.StatusCode)
	}
	return nil
}
