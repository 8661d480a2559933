package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// RenderedFetcher retrieves documents through a browser tab. The tab
// first loads a site page so the document request carries whatever
// cookies the anti-bot check set, then pulls the bytes in-page.
type RenderedFetcher struct {
	Browser Browser
	Logger  *events.Logger
}

func NewRenderedFetcher(browser Browser, logger *events.Logger) *RenderedFetcher {
	return &RenderedFetcher{
		Browser: browser,
		Logger:  logger.WithField("fetcher", "rendered"),
	}
}

func (f *RenderedFetcher) Fetch(ctx context.Context, src *sources.Source, entry *models.ManifestEntry) (*Payload, error) {
	page, err := f.Browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open browser tab: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	if warm := warmupURL(src); warm != "" {
		if err := page.Navigate(ctx, warm); err != nil {
			return nil, fmt.Errorf("navigate %s: %w", warm, err)
		}
	}

	data, contentType, err := page.FetchBytes(ctx, entry.ResourceURL)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDownload, entry.ResourceURL)
	}
	if models.IsBlockPage(urlPath(entry.ResourceURL), contentType, data) {
		return nil, fmt.Errorf("%w: browser session still served a block page for %s", models.ErrBlocked, entry.ResourceURL)
	}

	f.Logger.WithFields(map[string]interface{}{
		"url":   entry.ResourceURL,
		"bytes": len(data),
	}).Debug("fetched through browser session")

	return &Payload{
		Body: io.NopCloser(bytes.NewReader(data)),
		Size: int64(len(data)),
	}, nil
}

// warmupURL picks the page to load before requesting the document.
func warmupURL(src *sources.Source) string {
	if len(src.Pages) > 0 {
		return src.Pages[0]
	}
	return src.Referer
}
