package manifest

import (
	"context"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// CuratedDiscoverer emits the source's own maintained document list.
// Used for publishers with no crawlable listing surface, where the
// verified URL set is the listing.
type CuratedDiscoverer struct{}

func (CuratedDiscoverer) Discover(_ context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	if src.Fallback == nil || len(src.Fallback.Docs) == 0 {
		return nil, models.ErrNoFallbackList
	}
	return curatedEntries(src), nil
}

// curatedEntries builds entries from the source's curated list. Also
// used by the builder when live discovery degrades to the list.
func curatedEntries(src *sources.Source) []models.ManifestEntry {
	entries := make([]models.ManifestEntry, 0, len(src.Fallback.Docs))
	for _, doc := range src.Fallback.Docs {
		class, note := classify(src, doc.URL)
		entries = append(entries, models.ManifestEntry{
			ResourceURL:    doc.URL,
			DisplayName:    doc.Name,
			Classification: class,
			Note:           note,
		})
	}
	return entries
}

// ManualDiscoverer handles sources whose documents sit behind license
// walls or WAFs that defeat every automated path. Entries surface in
// the download report as manual_required with the source's guidance.
type ManualDiscoverer struct{}

func (ManualDiscoverer) Discover(_ context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	entries := make([]models.ManifestEntry, 0, len(src.Manual))
	for _, doc := range src.Manual {
		entries = append(entries, manualEntry(doc))
	}
	return entries, nil
}

// manualEntry classifies a manual document downloadable so it gets a
// download result; the fetch plan resolves it as manual_required.
func manualEntry(doc sources.ManualDoc) models.ManifestEntry {
	note := "manual download required"
	if doc.Guidance != "" {
		note += ": " + doc.Guidance
	}
	return models.ManifestEntry{
		ResourceURL:    doc.URL,
		DisplayName:    doc.Name,
		Classification: models.ClassDownloadable,
		Note:           note,
	}
}
