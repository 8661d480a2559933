package manifest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// PageDiscoverer walks static listing pages and collects document
// links in document order. Listings that refuse plain clients are
// retried through the rendered browser before giving up.
type PageDiscoverer struct {
	Client   transport.Client
	Renderer Renderer
	Logger   *events.Logger
}

func (d *PageDiscoverer) Discover(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	var entries []models.ManifestEntry
	seen := make(map[string]bool)

	for _, pageURL := range src.Pages {
		page, err := d.listing(ctx, src, pageURL)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", pageURL, err)
		}
		entries = append(entries, collectEntries(src, page, seen)...)
	}

	return entries, nil
}

// listingPage is fetched markup plus the URL to resolve links against.
type listingPage struct {
	baseURL string
	body    []byte
}

// listing fetches one listing page. Browser-required sources go
// straight to the renderer; everything else tries plain HTTP first and
// escalates on any failure.
func (d *PageDiscoverer) listing(ctx context.Context, src *sources.Source, pageURL string) (*listingPage, error) {
	if !src.BrowserRequired {
		page, err := d.direct(ctx, src, pageURL)
		if err == nil {
			return page, nil
		}
		if d.Renderer == nil || ctx.Err() != nil {
			return nil, err
		}
		d.Logger.WithError(err).WithFields(map[string]interface{}{
			"source": src.ID,
			"url":    pageURL,
		}).Warn("plain listing fetch failed, rendering in browser")
	} else if d.Renderer == nil {
		return nil, models.ErrBrowserUnavailable
	}

	markup, err := d.Renderer.RenderHTML(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	body := []byte(markup)
	if models.IsAccessDeniedPage(body) {
		return nil, fmt.Errorf("%w: rendered listing is an access-denied page", models.ErrBlocked)
	}

	// Rendered pages report no redirect chain; links resolve against
	// the requested URL.
	return &listingPage{baseURL: pageURL, body: body}, nil
}

func (d *PageDiscoverer) direct(ctx context.Context, src *sources.Source, pageURL string) (*listingPage, error) {
	resp, err := d.Client.Get(ctx, pageURL, listingHeaders(src))
	if err != nil {
		return nil, err
	}
	if models.IsAccessDeniedPage(resp.Body) {
		return nil, fmt.Errorf("%w: listing is an access-denied page", models.ErrBlocked)
	}
	return &listingPage{baseURL: resp.FinalURL, body: resp.Body}, nil
}

func listingHeaders(src *sources.Source) http.Header {
	if src.Referer == "" {
		return nil
	}
	hdr := http.Header{}
	hdr.Set("Referer", src.Referer)
	return hdr
}

// collectEntries extracts, resolves, filters and classifies the links
// on one page. seen spans pages so a document linked from several
// listings appears once, at its first position.
func collectEntries(src *sources.Source, page *listingPage, seen map[string]bool) []models.ManifestEntry {
	base, err := url.Parse(page.baseURL)
	if err != nil {
		base = nil
	}

	var entries []models.ManifestEntry
	for _, a := range extractAnchors(page.body) {
		resolved, ok := resolveLink(base, a.href)
		if !ok || seen[resolved] {
			continue
		}
		if !isCandidate(src, resolved) {
			continue
		}
		seen[resolved] = true

		class, note := classify(src, resolved)
		entries = append(entries, models.ManifestEntry{
			ResourceURL:    resolved,
			DisplayName:    displayName(a.text, resolved),
			Classification: class,
			Note:           note,
		})
	}
	return entries
}

// isCandidate decides whether a resolved link is worth a manifest
// entry at all. A configured link pattern is authoritative; without
// one, anything that looks like a document is a candidate.
func isCandidate(src *sources.Source, resolved string) bool {
	if p := src.Pattern(); p != nil {
		return p.MatchString(resolved)
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return models.ExpectsDocument(u.Path)
}

// resolveLink turns an href into an absolute http(s) URL with the
// fragment stripped. Anchors, mailto and javascript links resolve to
// nothing.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}

	ref.Fragment = ""
	return ref.String(), true
}

type anchor struct {
	href string
	text string
}

// extractAnchors returns every <a href> in document order. html.Parse
// repairs broken markup rather than failing, so real-world listing
// pages always yield something.
func extractAnchors(body []byte) []anchor {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var anchors []anchor
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attrValue(n, "href"); ok {
				anchors = append(anchors, anchor{href: href, text: innerText(n)})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return anchors
}

func attrValue(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func innerText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	// Markup splits titles across nested nodes; collapse to one line.
	return strings.Join(strings.Fields(sb.String()), " ")
}
