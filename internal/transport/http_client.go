package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
)

// HTTPClient fetches listing pages and documents from publisher sites.
// It retries transient failures with exponential backoff and spaces
// requests out with a politeness delay shared across all callers.
type HTTPClient struct {
	client         *http.Client
	downloadClient *http.Client
	userAgent      string
	logger         *events.Logger

	maxRetries int
	retryDelay time.Duration

	rateMu      sync.Mutex
	rateDelay   time.Duration
	lastRequest time.Time
}

// NewHTTPClient creates an HTTP client from config.
func NewHTTPClient(cfg *config.HTTPConfig, logger *events.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		// Downloads get a longer budget; the timeout covers the whole
		// transfer, not just the status line.
		downloadClient: &http.Client{
			Timeout:   cfg.DownloadTimeout,
			Transport: transport,
		},
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		rateDelay:  cfg.RateDelay,
		logger:     logger.WithField("component", "http_client"),
	}
}

// Get fetches a page body into memory. Non-2xx statuses are returned
// as *models.HTTPError.
func (c *HTTPClient) Get(ctx context.Context, rawURL string, hdr http.Header) (*Response, error) {
	c.logger.WithFields(map[string]interface{}{
		"method": "GET",
		"url":    rawURL,
	}).Debug("Fetching page")

	var result *Response
	err := c.retry(ctx, func() error {
		resp, err := c.doRequest(ctx, c.client, "GET", rawURL, hdr)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if httpErr := statusError(rawURL, resp); httpErr != nil {
			drain(resp.Body)
			return httpErr
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		result = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
			FinalURL:   resp.Request.URL.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"url":    rawURL,
		"status": result.StatusCode,
		"size":   len(result.Body),
	}).Debug("Fetched page")

	return result, nil
}

// Head issues a HEAD request. Unlike Get, the status is reported
// without classification: callers probing for the existence of dated
// archives treat 404 as an expected miss, not a failure. Only
// transient statuses are retried.
func (c *HTTPClient) Head(ctx context.Context, rawURL string, hdr http.Header) (*Response, error) {
	c.logger.WithFields(map[string]interface{}{
		"method": "HEAD",
		"url":    rawURL,
	}).Debug("Probing URL")

	var result *Response
	err := c.retry(ctx, func() error {
		resp, err := c.doRequest(ctx, c.client, "HEAD", rawURL, hdr)
		if err != nil {
			return err
		}
		drain(resp.Body)
		_ = resp.Body.Close()

		if c.isRetryable(resp.StatusCode) {
			return &models.HTTPError{
				URL:        rawURL,
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
			}
		}

		result = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			FinalURL:   resp.Request.URL.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Download issues a GET for a document payload. The body is returned
// unread so large documents stream to disk; retries cover only the
// status line, never a partially read body.
func (c *HTTPClient) Download(ctx context.Context, rawURL string, hdr http.Header) (*Download, error) {
	c.logger.WithField("url", rawURL).Debug("Starting download")

	var result *Download
	err := c.retry(ctx, func() error {
		resp, err := c.doRequest(ctx, c.downloadClient, "GET", rawURL, hdr)
		if err != nil {
			return err
		}

		if httpErr := statusError(rawURL, resp); httpErr != nil {
			drain(resp.Body)
			_ = resp.Body.Close()
			return httpErr
		}

		result = &Download{
			Body:          resp.Body,
			StatusCode:    resp.StatusCode,
			ContentType:   resp.Header.Get("Content-Type"),
			ContentLength: headerContentLength(resp.Header),
			FinalURL:      resp.Request.URL.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// doRequest executes a single attempt with default headers applied.
func (c *HTTPClient) doRequest(ctx context.Context, client *http.Client, method, rawURL string, hdr http.Header) (*http.Response, error) {
	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for key, values := range hdr {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// throttle enforces the politeness delay between requests across all
// workers sharing this client.
func (c *HTTPClient) throttle(ctx context.Context) error {
	if c.rateDelay <= 0 {
		return nil
	}

	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	wait := c.rateDelay - time.Since(c.lastRequest)
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.lastRequest = time.Now()
	return nil
}

// retry executes a function with exponential backoff.
func (c *HTTPClient) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2 // Exponential backoff
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !c.isRetryableError(err) {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// isRetryable checks if an HTTP status code is retryable.
func (c *HTTPClient) isRetryable(status int) bool {
	return status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

// isRetryableError checks if an error is worth another attempt.
// Permanent and blocking statuses fail immediately so the caller can
// escalate instead of hammering the site.
func (c *HTTPClient) isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) {
		return c.isRetryable(httpErr.StatusCode)
	}

	// Network errors are retryable
	return true
}

// statusError converts a non-2xx response into an HTTPError.
func statusError(rawURL string, resp *http.Response) *models.HTTPError {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	return &models.HTTPError{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
	}
}

// drain consumes a bounded amount of a failed response body so the
// connection can be reused.
func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
}

func headerContentLength(hdr http.Header) int64 {
	raw := hdr.Get("Content-Length")
	if raw == "" {
		return -1
	}
	length, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || length < 0 {
		return -1
	}
	return length
}
