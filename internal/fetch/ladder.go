package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// Escalation tiers reported through OnEscalate.
const (
	TierRendered = "rendered"
	TierFallback = "fallback"
)

// Ladder escalates between fetch strategies: plain HTTP first, a
// browser session when the server refuses non-browser clients, and
// finally the source's curated fallback URL. Manual documents are
// never fetched.
type Ladder struct {
	direct   Fetcher
	rendered Fetcher // nil when no browser endpoint is configured
	logger   *events.Logger

	// OnEscalate observes tier changes when set.
	OnEscalate func(entry *models.ManifestEntry, tier string)
}

func NewLadder(direct, rendered Fetcher, logger *events.Logger) *Ladder {
	return &Ladder{
		direct:   direct,
		rendered: rendered,
		logger:   logger.WithField("component", "fetch"),
	}
}

func (l *Ladder) Fetch(ctx context.Context, src *sources.Source, entry *models.ManifestEntry) (*Payload, error) {
	if doc := manualDocFor(src, entry); doc != nil {
		return nil, manualRequired(doc)
	}

	var (
		notices []string
		lastErr error
		tried   = map[string]bool{}
	)

	useRendered := src.BrowserRequired
	blockedEscalation := false

	if !useRendered {
		payload, err := l.direct.Fetch(ctx, src, entry)
		tried[entry.ResourceURL] = true
		if err == nil {
			return withNotices(payload, notices), nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		if isBlocked(err) {
			l.logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.ID,
				"url":    entry.ResourceURL,
			}).Warn("Direct fetch blocked, escalating to browser session")
			useRendered = true
			blockedEscalation = true
		}
	}

	if useRendered {
		if l.rendered == nil {
			lastErr = fmt.Errorf("%w: cannot fetch %s", models.ErrBrowserUnavailable, entry.ResourceURL)
		} else {
			if blockedEscalation {
				l.escalated(entry, TierRendered)
				notices = append(notices, "direct fetch blocked; retried in a browser session")
			}
			payload, err := l.rendered.Fetch(ctx, src, entry)
			tried[entry.ResourceURL] = true
			if err == nil {
				return withNotices(payload, notices), nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			l.logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.ID,
				"url":    entry.ResourceURL,
			}).Warn("Rendered fetch failed")
		}
	}

	// The curated list only helps when it names a URL we have not
	// already tried.
	if doc := fallbackDocFor(src, entry); doc != nil && !tried[doc.URL] {
		l.logger.WithFields(map[string]interface{}{
			"source":       src.ID,
			"url":          entry.ResourceURL,
			"fallback_url": doc.URL,
		}).Warn("Retrying with curated fallback URL")
		l.escalated(entry, TierFallback)

		fbEntry := *entry
		fbEntry.ResourceURL = doc.URL
		payload, err := l.direct.Fetch(ctx, src, &fbEntry)
		if err == nil {
			notices = append(notices, fmt.Sprintf("fetched from %s; fallback list verified %s", doc.URL, src.Fallback.VerifiedAt))
			return withNotices(payload, notices), nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (l *Ladder) escalated(entry *models.ManifestEntry, tier string) {
	if l.OnEscalate != nil {
		l.OnEscalate(entry, tier)
	}
}

func withNotices(p *Payload, notices []string) *Payload {
	if len(notices) > 0 {
		p.Notices = append(notices, p.Notices...)
	}
	return p
}

// isBlocked reports whether the error means the server refused a
// non-browser client rather than the document being absent or broken.
func isBlocked(err error) bool {
	if errors.Is(err, models.ErrBlocked) {
		return true
	}
	var httpErr *models.HTTPError
	return errors.As(err, &httpErr) && httpErr.Blocked()
}

func manualDocFor(src *sources.Source, entry *models.ManifestEntry) *sources.ManualDoc {
	for i := range src.Manual {
		if src.Manual[i].URL == entry.ResourceURL {
			return &src.Manual[i]
		}
	}
	return nil
}

func manualRequired(doc *sources.ManualDoc) error {
	if doc.Guidance == "" {
		return fmt.Errorf("%w: %s", models.ErrManualRequired, doc.URL)
	}
	return fmt.Errorf("%w: %s", models.ErrManualRequired, doc.Guidance)
}

// fallbackDocFor locates the curated counterpart of an entry, matching
// by URL first and display name second.
func fallbackDocFor(src *sources.Source, entry *models.ManifestEntry) *sources.CuratedDoc {
	if src.Fallback == nil {
		return nil
	}
	for i := range src.Fallback.Docs {
		if src.Fallback.Docs[i].URL == entry.ResourceURL {
			return &src.Fallback.Docs[i]
		}
	}
	for i := range src.Fallback.Docs {
		if strings.EqualFold(src.Fallback.Docs[i].Name, entry.DisplayName) {
			return &src.Fallback.Docs[i]
		}
	}
	return nil
}
