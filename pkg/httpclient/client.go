package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/bramble/pkg/metrics"
)

const (
	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Client wraps the HTTP client with logging, metrics and size limits.
// Requests carry no timeout of their own; callers bound them through the context.
type Client struct {
	client *http.Client
	logger ectologger.Logger
}

// Config holds HTTP client configuration
type Config struct {
	MaxIdleConns       int
	IdleConnTimeout    time.Duration
	DisableCompression bool
	UserAgent          string
}

// DefaultConfig returns default HTTP client configuration
func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
		UserAgent:       "bramble/1.0",
	}
}

// NewClient creates a new HTTP client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		MaxIdleConns:       cfg.MaxIdleConns,
		IdleConnTimeout:    cfg.IdleConnTimeout,
		DisableCompression: cfg.DisableCompression,
	}

	return &Client{
		client: &http.Client{Transport: &userAgentTransport{base: transport, userAgent: cfg.UserAgent}},
		logger: logger,
	}
}

// NewClientWith wraps an existing http.Client, e.g. an httptest server's client
func NewClientWith(client *http.Client, logger ectologger.Logger) *Client {
	return &Client{client: client, logger: logger}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// Response represents an HTTP response
type Response struct {
	StatusCode  int           `json:"status_code"`
	Header      http.Header   `json:"headers"`
	Body        []byte        `json:"-"`
	ContentType string        `json:"content_type"`
	Duration    time.Duration `json:"duration_ms"`
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes an HTTP request and returns the response
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	start := time.Now()

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		metrics.HTTPRequestsTotal.WithLabelValues(req.Method, "error").Inc()
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", req.Method, req.URL.String())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	metrics.HTTPRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(req.Method).Observe(duration.Seconds())

	if resp.ContentLength > MaxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes (max %d)", resp.ContentLength, MaxResponseSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)
	}

	c.logger.WithContext(ctx).Debugf("HTTP %s %s -> %d (%s)", req.Method, req.URL.String(), resp.StatusCode, duration)

	return &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    duration,
	}, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.Do(ctx, req)
}
