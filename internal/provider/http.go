package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/medscan-app/medscan/internal/common"
)

// httpClient is the shared request machinery under every provider
// client: JSON POST with bearer credential, per-attempt timeout,
// retry-with-backoff, structured request logging.
type httpClient struct {
	name   string
	cfg    common.ProviderConfig
	hc     *http.Client
	logger *slog.Logger

	// sleep is injectable so tests can assert backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func newHTTPClient(name string, cfg common.ProviderConfig, logger *slog.Logger) *httpClient {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 2 * cfg.RequestTimeout
	}
	return &httpClient{
		name:   name,
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay is the wait after a failed attempt (1-based):
// min(2^attempt seconds, 10s).
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(1<<uint(attempt)) * time.Second
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// postJSON sends one request and classifies the response. A 4xx maps
// to a non-retryable ProviderError, a 5xx to a retryable one, and a
// transport failure to ErrNetworkUnavailable.
func (c *httpClient) postJSON(ctx context.Context, url string, body any) ([]byte, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		return nil, common.NewAppError("PROVIDER_ENCODE", "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, common.NewAppError("PROVIDER_REQUEST", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	c.logger.Debug("provider.http.request",
		"provider", c.name,
		"req_id", reqID,
		"document_id", common.DocumentIDFromContext(ctx),
		"content_length", len(bs),
	)

	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Warn("provider.http.send_error",
			"provider", c.name, "req_id", reqID,
			"error", err, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("%w: %s: %v", common.ErrNetworkUnavailable, c.name, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("provider.http.body_close_error", "provider", c.name, "error", cerr)
		}
	}()

	raw, _ := io.ReadAll(resp.Body)

	c.logger.Debug("provider.http.response",
		"provider", c.name,
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, &common.ProviderError{
			Provider:   c.name,
			StatusCode: resp.StatusCode,
			Body:       string(raw[:min(len(raw), 2048)]),
		}
	}
	return raw, nil
}

// callWithRetry runs postJSON under the client's retry policy: up to
// MaxAttempts attempts, backoff min(2^attempt, 10s) between them.
// Non-retryable failures (4xx, parse) return immediately.
func (c *httpClient) callWithRetry(ctx context.Context, url string, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		raw, err := c.postJSON(ctx, url, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !common.IsRetryable(err) {
			c.logger.Warn("provider.retry.non_retryable",
				"provider", c.name, "attempt", attempt, "error", err)
			return nil, err
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}
		delay := backoffDelay(attempt)
		c.logger.Info("provider.retry.backoff",
			"provider", c.name, "attempt", attempt, "delay", delay)
		if serr := c.sleep(ctx, delay); serr != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}
