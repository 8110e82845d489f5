// Package retryhttp wraps outbound HTTP calls with bounded retries and
// exponential backoff. It is payload-agnostic and shared by every
// integration client in this layer.
package retryhttp

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"tutorgate.org/internal/obs"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
)

// Request describes one outbound call. Body, if set, is replayed on every
// attempt.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Client issues HTTP requests, retrying 429 and 5xx responses as well as
// network-level failures. 2xx and any other 4xx return immediately.
type Client struct {
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Client with the default retry policy: three retries with
// 500ms, 1s, 2s backoff.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		HTTPClient: hc,
		MaxRetries: defaultMaxRetries,
		BaseDelay:  defaultBaseDelay,
		sleep:      sleepContext,
	}
}

// Do performs the call. On exhausted retries it returns the last response
// (for status-based failures) or the last network error.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
		if err != nil {
			return nil, err
		}
		for k, vals := range req.Header {
			for _, v := range vals {
				httpReq.Header.Add(k, v)
			}
		}

		resp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			if attempt < c.MaxRetries {
				if waitErr := c.backoff(ctx, attempt, httpReq.URL.Host); waitErr != nil {
					return nil, waitErr
				}
				continue
			}
			return nil, err
		}

		if !retryable(resp.StatusCode) || attempt >= c.MaxRetries {
			return resp, nil
		}

		// drain so the connection can be reused across attempts
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if waitErr := c.backoff(ctx, attempt, httpReq.URL.Host); waitErr != nil {
			return nil, waitErr
		}
	}
}

func (c *Client) backoff(ctx context.Context, attempt int, host string) error {
	obs.CountUpstreamRetry(host)
	return c.sleep(ctx, c.BaseDelay*(1<<attempt))
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
