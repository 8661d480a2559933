// Package fetch retrieves the bytes behind manifest entries. It owns
// the acquisition strategies and the escalation between them; what to
// do with the bytes stays with the caller.
package fetch

import (
	"context"
	"io"
	"net/url"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// Payload is one fetched document. The caller owns Body and must close
// it. Size is the server-declared length, -1 when undeclared; the
// authoritative size is whatever the caller streams out.
type Payload struct {
	Body io.ReadCloser
	Size int64

	// Notices records acquisition detours worth surfacing in reports,
	// e.g. that a fetch escalated to the browser or used a fallback URL.
	Notices []string
}

// Fetcher retrieves the bytes behind one manifest entry.
type Fetcher interface {
	Fetch(ctx context.Context, src *sources.Source, entry *models.ManifestEntry) (*Payload, error)
}

// PageSession is one browser tab, satisfied by transport.Page.
type PageSession interface {
	Navigate(ctx context.Context, url string) error
	FetchBytes(ctx context.Context, url string) ([]byte, string, error)
	Close() error
}

// Browser opens tabs for rendered fetching.
type Browser interface {
	NewPage(ctx context.Context) (PageSession, error)
}

// urlPath extracts the path component used for document-extension
// expectations. The expectation follows what was requested, not where
// a redirect landed.
func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
