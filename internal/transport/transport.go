package transport

import (
	"context"
	"io"
	"net/http"
)

// Client is the HTTP surface used by discovery and fetching. All
// methods classify non-2xx statuses as *models.HTTPError after
// exhausting retries on transient failures.
type Client interface {
	// Get fetches a page body into memory. Intended for listing pages
	// and JSON APIs, not document payloads.
	Get(ctx context.Context, url string, hdr http.Header) (*Response, error)

	// Head issues a HEAD request and returns status and headers only.
	Head(ctx context.Context, url string, hdr http.Header) (*Response, error)

	// Download issues a GET for a document payload. The caller owns
	// the returned body and must close it.
	Download(ctx context.Context, url string, hdr http.Header) (*Download, error)

	// Close releases idle connections.
	Close() error
}

// Response holds a buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FinalURL is the request URL after redirects, used to resolve
	// relative links found in the body.
	FinalURL string
}

// Download holds a streaming HTTP response for a document payload.
type Download struct {
	Body        io.ReadCloser
	StatusCode  int
	ContentType string

	// ContentLength is -1 when the server did not declare one.
	ContentLength int64
	FinalURL      string
}

// ContentLengthFor issues a HEAD request and returns the declared
// Content-Length, or -1 when the server does not expose one. Used to
// short-circuit re-downloads of immutable documents.
func ContentLengthFor(ctx context.Context, client Client, url string, hdr http.Header) int64 {
	resp, err := client.Head(ctx, url, hdr)
	if err != nil {
		return -1
	}
	return headerContentLength(resp.Header)
}
