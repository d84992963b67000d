// Package clients holds the outbound transport clients: the retrying HTTP
// dispatch client, the GraphQL enrichment client and the event publisher.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPConfig controls the dispatch client's transport-level retries.
type HTTPConfig struct {
	// Timeout bounds each individual request attempt.
	Timeout time.Duration `mapstructure:"timeout"`

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `mapstructure:"max_retries"`

	// Backoff is the exponential backoff factor: attempt n waits
	// Backoff * 2^n.
	Backoff time.Duration `mapstructure:"backoff"`

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration `mapstructure:"max_backoff"`

	// RetryStatuses are the response codes that trigger a retry.
	RetryStatuses []int `mapstructure:"retry_statuses"`
}

// DefaultHTTPConfig mirrors the historical dispatch defaults: 5 retries,
// 100ms backoff factor, retry on 500/501/502/503.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:       60 * time.Second,
		MaxRetries:    5,
		Backoff:       100 * time.Millisecond,
		MaxBackoff:    10 * time.Second,
		RetryStatuses: []int{500, 501, 502, 503},
	}
}

// HTTPClient issues relay dispatch calls with retry and exponential backoff.
// A non-2xx response after retries is surfaced as an error.
type HTTPClient struct {
	client *retryablehttp.Client
}

// NewHTTPClient builds an HTTPClient from cfg.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	retryable := make(map[int]bool, len(cfg.RetryStatuses))
	for _, s := range cfg.RetryStatuses {
		retryable[s] = true
	}

	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = cfg.MaxRetries
	c.HTTPClient.Timeout = cfg.Timeout
	c.RetryWaitMin = cfg.Backoff
	c.RetryWaitMax = cfg.MaxBackoff
	c.Backoff = func(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
		wait := min << uint(attemptNum)
		if wait > max || wait <= 0 {
			return max
		}
		return wait
	}
	c.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if err != nil {
			return true, nil
		}
		return resp != nil && retryable[resp.StatusCode], nil
	}

	return &HTTPClient{client: c}
}

// Call issues an HTTP request carrying body as JSON and discards the
// response body. A nil body is sent as an empty JSON object.
func (c *HTTPClient) Call(ctx context.Context, method, url string, headers map[string]string, body map[string]interface{}) error {
	if body == nil {
		body = map[string]interface{}{}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}
	_, err = c.do(ctx, method, url, headers, payload)
	return err
}

// do runs one retried request and returns the response body.
func (c *HTTPClient) do(ctx context.Context, method, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request for %s: %w", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%s %s returned status %d", method, url, resp.StatusCode)
	}
	return respBody, nil
}
