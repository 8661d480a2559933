package manifest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// Builder routes each source to its discoverer and assembles the
// ordered, classified manifest. When live discovery fails or comes
// back empty and the source carries a curated list, the list stands
// in for the listing and the manifest is marked accordingly.
type Builder struct {
	page    *PageDiscoverer
	paged   *PagedDiscoverer
	probe   *ProbeDiscoverer
	github  *GitHubDiscoverer
	curated *CuratedDiscoverer
	manual  *ManualDiscoverer
	logger  *events.Logger
}

// NewBuilder wires the standard discoverer set. renderer may be nil
// when no browser endpoint is configured; browser-required sources
// then fail discovery unless they carry a curated list.
func NewBuilder(client transport.Client, renderer Renderer, cfg *config.Config, logger *events.Logger) *Builder {
	log := logger.WithField("component", "manifest")

	return &Builder{
		page:    &PageDiscoverer{Client: client, Renderer: renderer, Logger: log},
		paged:   &PagedDiscoverer{Client: client, MaxPages: cfg.Sync.MaxPages, Logger: log},
		probe:   &ProbeDiscoverer{Client: client, Months: cfg.Sync.ProbeMonths, Logger: log},
		github:  &GitHubDiscoverer{Client: client, Token: githubToken(cfg), Logger: log},
		curated: &CuratedDiscoverer{},
		manual:  &ManualDiscoverer{},
		logger:  log,
	}
}

// Build discovers and classifies every document the source lists.
// maxPages, when positive, overrides the configured pagination bound
// for paged sources. Failures are source-level: the caller gets either
// a complete manifest or an error, never a partial one.
func (b *Builder) Build(ctx context.Context, src *sources.Source, maxPages int) (*models.Manifest, error) {
	disc, err := b.discovererFor(src, maxPages)
	if err != nil {
		return nil, &models.SourceError{Code: models.ErrCodeConfig, SourceID: src.ID, Err: err}
	}

	m := &models.Manifest{SourceID: src.ID}

	entries, err := disc.Discover(ctx, src)
	if err != nil && ctx.Err() != nil {
		// Interrupted, not a discovery miss. Never degrade to the
		// curated list on cancellation.
		return nil, &models.SourceError{Code: models.ErrCodeDiscovery, SourceID: src.ID, Err: err}
	}

	if err != nil || len(entries) == 0 {
		fb := src.Fallback
		if fb != nil && len(fb.Docs) > 0 && src.Kind != sources.KindCurated {
			if err != nil {
				b.logger.WithError(err).WithField("source", src.ID).
					Warn("live discovery failed, using curated list")
			} else {
				b.logger.WithField("source", src.ID).
					Warn("live discovery found no documents, using curated list")
			}
			entries = curatedEntries(src)
			m.FallbackUsed = true
			m.Notices = append(m.Notices, fmt.Sprintf(
				"live discovery unavailable for %s; used curated URL list last verified %s",
				src.ID, fb.VerifiedAt))
		} else if err != nil {
			return nil, &models.SourceError{Code: models.ErrCodeDiscovery, SourceID: src.ID, Err: err}
		}
	}

	// Manual companion documents ride along on any source kind. The
	// manual discoverer already emitted them for purely manual sources.
	if src.Kind != sources.KindManual {
		entries = appendManual(entries, src)
	}

	now := time.Now().UTC()
	for i := range entries {
		entries[i].SourceID = src.ID
		if entries[i].DiscoveredAt.IsZero() {
			entries[i].DiscoveredAt = now
		}
	}
	m.Entries = entries
	m.BuiltAt = now

	if err := m.Validate(); err != nil {
		return nil, &models.SourceError{Code: models.ErrCodeDiscovery, SourceID: src.ID, Err: err}
	}

	downloadable, skipped, unresolved := m.Counts()
	b.logger.WithFields(map[string]interface{}{
		"source":       src.ID,
		"downloadable": downloadable,
		"skipped":      skipped,
		"unresolved":   unresolved,
	}).Info("manifest built")

	return m, nil
}

func (b *Builder) discovererFor(src *sources.Source, maxPages int) (Discoverer, error) {
	switch src.Kind {
	case sources.KindPage:
		return b.page, nil
	case sources.KindPaged:
		if maxPages > 0 && maxPages != b.paged.MaxPages {
			override := *b.paged
			override.MaxPages = maxPages
			return &override, nil
		}
		return b.paged, nil
	case sources.KindProbe:
		return b.probe, nil
	case sources.KindGitHub:
		return b.github, nil
	case sources.KindCurated:
		return b.curated, nil
	case sources.KindManual:
		return b.manual, nil
	default:
		return nil, fmt.Errorf("no discoverer for source kind %q", src.Kind)
	}
}

// appendManual adds the source's manual documents, skipping any URL the
// discoverer already produced.
func appendManual(entries []models.ManifestEntry, src *sources.Source) []models.ManifestEntry {
	if len(src.Manual) == 0 {
		return entries
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.ResourceURL] = true
	}
	for _, doc := range src.Manual {
		if seen[doc.URL] {
			continue
		}
		seen[doc.URL] = true
		entries = append(entries, manualEntry(doc))
	}
	return entries
}

// classify sorts a discovered URL against the source's extension set.
// Non-matching links stay in the manifest as skipped so no discovered
// link is ever dropped from the record.
func classify(src *sources.Source, rawURL string) (models.Classification, string) {
	if src.MatchesExtensions(rawURL) {
		return models.ClassDownloadable, ""
	}
	ext := urlExt(rawURL)
	if ext == "" {
		return models.ClassSkipped, "no file extension; source syncs documents only"
	}
	return models.ClassSkipped, fmt.Sprintf("extension %s not in sync set", ext)
}

func urlExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(u.Path))
}

// displayName prefers the anchor text; a name derived from the URL's
// filename is the fallback.
func displayName(text, rawURL string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text != "" {
		return truncateName(text)
	}
	return nameFromURL(rawURL)
}

const maxDisplayName = 120

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxDisplayName {
		return name
	}
	return string(runes[:maxDisplayName])
}

// nameFromURL turns a URL's filename into a readable title, e.g.
// "zero_trust_maturity_model_v2_508.pdf" -> "Zero Trust Maturity Model
// V2 508".
func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return rawURL
	}

	base := path.Base(u.Path)
	if decoded, err := url.PathUnescape(base); err == nil {
		base = decoded
	}

	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = strings.NewReplacer("-", " ", "_", " ").Replace(stem)
	stem = strings.Join(strings.Fields(stem), " ")
	if stem == "" {
		return base
	}

	return cases.Title(language.AmericanEnglish).String(stem)
}

func githubToken(cfg *config.Config) string {
	if cfg.GitHub.Token != "" {
		return cfg.GitHub.Token
	}
	return os.Getenv("GITHUB_TOKEN")
}
