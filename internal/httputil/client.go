// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/article-harvester/pkg/types"
)

// Client is the one HTTP client of a run. Every request it sends first
// waits on a shared limiter so consecutive requests are at least
// RequestDelay apart, across search and download alike.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	limiter   *rate.Limiter
}

// NewClient builds a client from cfg. A zero RequestDelay disables spacing.
func NewClient(cfg types.HTTPConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: cfg.UserAgent,
		limiter:   NewLimiter(cfg.RequestDelay),
	}
}

// NewLimiter returns a limiter that admits one event per every, burst 1.
func NewLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// Do waits for the limiter, sets the User-Agent if absent, and sends req.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return c.HTTP.Do(req)
}

// Get sends a throttled GET with the given extra headers. It does not retry.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req)
}

// GetJSON fetches rawURL with 429 retries and decodes a 200 response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, v any) error {
	resp, err := c.getWithRetry(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// GetBody fetches rawURL with 429 retries and returns the body of a 200 response.
func (c *Client) GetBody(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	resp, err := c.getWithRetry(ctx, rawURL, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", rawURL, err)
	}
	return data, nil
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := DoWithRetry(ctx, c, req, 0)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", req.URL.Redacted(), err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &StatusError{URL: req.URL.Redacted(), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.StatusCode)
}
