// Package httpclient wraps github.com/worldline-go/klient into the pooled,
// retrying HTTP client every adapter is built from, per spec §4.3. Grounded
// on the teacher's internal/service/llm/openai/openai.go construction of
// *klient.Client and internal/server/discover.go's klientForConfig helper.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/worldline-go/klient"

	"github.com/rakunlabs/inference-gateway/internal/apierr"
)

// Config mirrors the wire HttpConfig shape from spec §6.
type Config struct {
	TimeoutSecs        int    `cfg:"timeout_secs" default:"60"`
	ConnectTimeoutSecs int    `cfg:"connect_timeout_secs" default:"30"`
	MaxRetries         int    `cfg:"max_retries" default:"3"`
	RetryBackoffMS     int    `cfg:"retry_backoff_ms" default:"250"`
	KeepAliveSecs      *int   `cfg:"keep_alive_secs"`
	MaxIdleConnections *int   `cfg:"max_idle_connections"`
}

// Client is the shared pooled client built once per adapter.
type Client struct {
	cfg    Config
	base   string
	klient *klient.Client
}

// New builds a Client from the common HttpConfig plus fixed default headers
// (Authorization, OpenAI-Organization, ...) set at construction.
func New(baseURL string, cfg Config, headers http.Header, proxy string, insecureSkipVerify bool) (*Client, error) {
	opts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(headers),
		klient.WithDisableEnvValues(true),
	}
	if proxy != "" {
		opts = append(opts, klient.WithProxy(proxy))
	}
	if insecureSkipVerify {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	c, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("build http client: %w", err)
	}

	c.HTTP.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second

	return &Client{cfg: cfg, base: baseURL, klient: c}, nil
}

// HTTP exposes the underlying *http.Client for callers (e.g. streaming
// reads, reverse proxying) that need raw access.
func (c *Client) HTTP() *http.Client {
	return c.klient.HTTP
}

// PostJSON posts body (already-marshalled JSON) to path joined onto the
// base URL, retrying only on transport timeout, connection failure, or
// 5xx, with exponential backoff backoff_ms * 2^(attempt-1). 4xx responses
// are surfaced immediately without retry.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte) ([]byte, int, error) {
	url := joinURL(c.base, path)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, 0, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		respBody, status, err := c.do(req)
		if err == nil && status < 500 {
			return respBody, status, nil
		}

		if err != nil && !isRetryable(err) {
			return nil, status, err
		}

		lastErr = err
		if lastErr == nil {
			lastErr = apierr.ProviderRequestFailed(status, string(respBody))
		}

		if attempt <= c.cfg.MaxRetries {
			backoff := time.Duration(c.cfg.RetryBackoffMS) * time.Millisecond * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}
	}

	return nil, 0, lastErr
}

// Get issues a GET with no retry.
func (c *Client) Get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(c.base, path), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	return c.do(req)
}

// PostStream issues a POST and returns the raw response for the caller to
// scan as SSE. Streams are never retried.
func (c *Client) PostStream(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.base, path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.klient.HTTP.Do(req)
	if err != nil {
		return nil, mapTransportErr(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, apierr.ProviderRequestFailed(resp.StatusCode, string(data))
	}

	return resp, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.klient.HTTP.Do(req)
	if err != nil {
		return nil, 0, mapTransportErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, apierr.ProviderInvalidResponse(err.Error())
	}

	return data, resp.StatusCode, nil
}

func mapTransportErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierr.ProviderTimeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return apierr.ProviderConnectionFailed(err.Error())
	}

	return apierr.ProviderRequestFailed(0, err.Error())
}

func isRetryable(err error) bool {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail.Code == "provider_timeout" || apiErr.Detail.Code == "provider_connection_failed"
	}
	return true
}

func joinURL(base, path string) string {
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	for len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return base + "/" + path
}

// DecodeJSON is a convenience helper adapters use after PostJSON/Get.
func DecodeJSON[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, apierr.ProviderInvalidResponse(err.Error())
	}
	return &v, nil
}
