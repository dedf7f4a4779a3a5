// Package slmpd fetches the SLMPD calls-for-service page and parses its table.
package slmpd

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/police-calls-etl/internal/config"
	"github.com/couchcryptid/police-calls-etl/internal/domain"
	"github.com/couchcryptid/police-calls-etl/internal/observability"
	"github.com/rotisserie/eris"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Client fetches the calls-for-service listing.
type Client struct {
	url        string
	userAgent  string
	retries    int
	httpClient *http.Client
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a client for cfg.SourceURL.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		url:       cfg.SourceURL,
		userAgent: cfg.SourceUserAgent,
		retries:   cfg.FetchRetries,
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		backoff: initialBackoff,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch downloads the page and returns every row with enough cells as a
// record, all stamped with the same capture time. Transport failures and 5xx
// or 429 responses are retried with exponential backoff; other statuses and
// a page without the calls table fail immediately.
func (c *Client) Fetch(ctx context.Context) (domain.Batch, error) {
	backoff := c.backoff
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying source fetch", "attempt", attempt, "backoff", backoff, "error", lastErr)
			if !sleepWithContext(ctx, backoff) {
				return domain.Batch{}, ctx.Err()
			}
			backoff = nextBackoff(backoff, maxBackoff)
		}

		body, retryable, err := c.get(ctx)
		if err != nil {
			c.metrics.FetchRequests.WithLabelValues("error").Inc()
			lastErr = err
			if !retryable || ctx.Err() != nil {
				return domain.Batch{}, err
			}
			continue
		}
		c.metrics.FetchRequests.WithLabelValues("success").Inc()

		batch, err := ParseCalls(body, domain.CapturedNow())
		if err != nil {
			return domain.Batch{}, err
		}
		c.metrics.RecordsParsed.Add(float64(batch.Len()))
		c.metrics.RowsRejected.Add(float64(batch.Skipped))
		c.logger.Debug("source page parsed", "records", batch.Len(), "skipped_rows", batch.Skipped)
		return batch, nil
	}
	return domain.Batch{}, eris.Wrapf(lastErr, "fetch %s: giving up after %d attempts", c.url, c.retries+1)
}

// get returns the page body, or an error and whether another attempt may help.
func (c *Client) get(ctx context.Context) ([]byte, bool, error) {
	start := time.Now()
	defer func() { c.metrics.FetchDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, eris.Wrapf(err, "get %s", c.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, eris.Errorf("source returned status %d: %s", resp.StatusCode, snippet)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, eris.Wrap(err, "read body")
	}
	return body, false, nil
}

func nextBackoff(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
