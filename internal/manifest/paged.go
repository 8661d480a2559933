package manifest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// PagedDiscoverer sweeps a page-numbered listing until it runs dry or
// hits the page bound. Page numbers start at 0, matching the common
// CMS convention where ?page=0 is the first page.
type PagedDiscoverer struct {
	Client transport.Client
	// MaxPages bounds the sweep; 0 and 1 both mean first page only.
	MaxPages int
	Logger   *events.Logger
}

func (d *PagedDiscoverer) Discover(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	limit := d.MaxPages
	if limit < 1 {
		limit = 1
	}

	var entries []models.ManifestEntry
	seen := make(map[string]bool)

	for page := 0; page < limit; page++ {
		pageURL := strings.ReplaceAll(src.PageTemplate, "{page}", strconv.Itoa(page))

		resp, err := d.Client.Get(ctx, pageURL, listingHeaders(src))
		if err != nil {
			if page == 0 {
				return nil, fmt.Errorf("listing page %d: %w", page, err)
			}
			if ctx.Err() != nil {
				return nil, err
			}
			// Past the first page a fetch failure ends the sweep; what
			// was already found is a usable manifest.
			d.Logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.ID,
				"page":   page,
			}).Warn("pagination sweep stopped early")
			break
		}

		found := collectEntries(src, &listingPage{baseURL: resp.FinalURL, body: resp.Body}, seen)
		if len(found) == 0 {
			// Listings past the end either 404, come back empty, or
			// repeat earlier documents; all three yield nothing new.
			d.Logger.WithFields(map[string]interface{}{
				"source": src.ID,
				"page":   page,
			}).Debug("listing ran dry")
			break
		}
		entries = append(entries, found...)
	}

	if len(entries) == 0 {
		return nil, errors.New("no documents found on any listing page")
	}

	return entries, nil
}
