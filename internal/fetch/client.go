package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/html/charset"
)

const (
	// defaultMaxRetries is the number of attempts when WithRetry is not used.
	defaultMaxRetries = 3

	// defaultBackoff is the wait before the second attempt.
	defaultBackoff = time.Second

	// defaultMaxBodySize limits bodies read by Get.
	defaultMaxBodySize = 20 * 1024 * 1024
)

// Getter fetches a URL and returns its status and body.
// Pages and sitemaps are read through it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*Response, error)
}

// Opener starts a streamed fetch. The caller closes the response body.
// Assets are downloaded through it.
type Opener interface {
	Open(ctx context.Context, rawURL string) (*http.Response, error)
}

// Response is a fully read HTTP response.
type Response struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the HTTP status code.
	StatusCode int

	// ContentType is the Content-Type header.
	ContentType string

	// Body is the response body, truncated to the client's max body size.
	Body []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns a *StatusError for non-2xx responses and nil otherwise.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &StatusError{URL: r.URL, StatusCode: r.StatusCode}
}

// IsHTML reports whether the Content-Type may hold an HTML document.
// A missing header is treated as HTML.
func (r *Response) IsHTML() bool {
	if r.ContentType == "" {
		return true
	}
	ct := strings.ToLower(r.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// Redirected reports whether the response was served from another URL.
func (r *Response) Redirected() bool {
	return r.FinalURL != "" && r.FinalURL != r.URL
}

// HTML returns the body converted to UTF-8 according to the Content-Type
// header, <meta charset> or byte order mark.
func (r *Response) HTML() ([]byte, error) {
	return DecodeHTML(r.Body, r.ContentType)
}

// DecodeHTML converts an HTML body to UTF-8.
func DecodeHTML(body []byte, contentType string) ([]byte, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}
	return io.ReadAll(reader)
}

// Client issues rate-limited GET requests with bounded retries.
// Transport failures, 429 and 5xx responses are retried with exponential
// backoff; every other response is returned to the caller as is.
type Client struct {
	http        *http.Client
	limiter     *HostLimiter
	logger      *slog.Logger
	maxRetries  int
	backoff     time.Duration
	maxBodySize int64
	requests    atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLimiter sets the per-host rate limiter.
func WithLimiter(l *HostLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry sets the number of attempts and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxRetries = attempts
		}
		if backoff >= 0 {
			c.backoff = backoff
		}
	}
}

// WithMaxBodySize limits the bytes read by Get.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// NewClient creates a Client. Without options it uses http.DefaultClient,
// no rate limit, three attempts from a one second backoff.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:        http.DefaultClient,
		logger:      slog.Default(),
		maxRetries:  defaultMaxRetries,
		backoff:     defaultBackoff,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL and reads the body. Non-2xx responses are returned
// with their status code; an error means no usable response was received.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Open fetches rawURL without reading the body.
func (c *Client) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, rawURL)
}

// Requests returns the number of HTTP requests sent, retries included.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		c.requests.Add(1)
		resp, err := c.http.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", rawURL, err)
		case retryableStatus(resp.StatusCode) && attempt < c.maxRetries:
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // draining for connection reuse
			resp.Body.Close()
			lastErr = &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		default:
			return resp, nil
		}

		if attempt == c.maxRetries {
			break
		}
		c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt, "backoff", backoff, "error", lastErr)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}

	return nil, lastErr
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
