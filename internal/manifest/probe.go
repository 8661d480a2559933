package manifest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// ProbeDiscoverer locates archives whose names follow a publishing
// schedule, e.g. U_SRG-STIG_Library_July_2025.zip. It walks the months
// newest-first and takes the first name the server confirms. A probe
// is HEAD-only and bounded, so a source that skipped a few months
// costs a handful of cheap requests, not a crawl.
type ProbeDiscoverer struct {
	Client transport.Client
	// Months is the window size when the source does not set its own.
	Months int
	Logger *events.Logger
	// Now is a clock override for tests; nil means time.Now.
	Now func() time.Time
}

func (d *ProbeDiscoverer) Discover(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error) {
	spec := src.Probe

	months := spec.Months
	if months <= 0 {
		months = d.Months
	}
	if months <= 0 {
		months = 1
	}

	// Anchor on the first of the month so stepping back never
	// normalizes through a short month.
	now := time.Now().UTC()
	if d.Now != nil {
		now = d.Now().UTC()
	}
	cursor := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	newest := cursor

	for i := 0; i < months; i++ {
		name := candidateName(spec.NameTemplate, cursor)
		probeURL := spec.BaseURL + name

		resp, err := d.Client.Head(ctx, probeURL, listingHeaders(src))
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("probe %s: %w", probeURL, err)
			}
			// An unreachable candidate is a miss, not a failure; the
			// window is the bound either way.
			d.Logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.ID,
				"url":    probeURL,
			}).Debug("probe request failed")
			cursor = cursor.AddDate(0, -1, 0)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			d.Logger.WithFields(map[string]interface{}{
				"source": src.ID,
				"url":    probeURL,
				"misses": i,
			}).Info("probe located dated archive")

			return []models.ManifestEntry{{
				ResourceURL:    probeURL,
				DisplayName:    name,
				Classification: models.ClassDownloadable,
			}}, nil
		}

		d.Logger.WithFields(map[string]interface{}{
			"source": src.ID,
			"url":    probeURL,
			"status": resp.StatusCode,
		}).Debug("probe miss")

		cursor = cursor.AddDate(0, -1, 0)
	}

	// Every month in the window missed. That is an answer, not a
	// failure: the run continues and the report shows what was probed.
	oldest := cursor.AddDate(0, 1, 0)
	return []models.ManifestEntry{{
		DisplayName:    spec.NameTemplate,
		Classification: models.ClassUnresolved,
		Note: fmt.Sprintf("no dated archive found; probed %d months from %s back to %s",
			months, monthLabel(newest), monthLabel(oldest)),
	}}, nil
}

func candidateName(template string, t time.Time) string {
	name := strings.ReplaceAll(template, "{month}", t.Month().String())
	return strings.ReplaceAll(name, "{year}", strconv.Itoa(t.Year()))
}

func monthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", t.Month(), t.Year())
}
