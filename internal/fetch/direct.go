package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

// sniffLen is how much of the body gets buffered to spot block pages
// served with a 200 before any bytes reach disk.
const sniffLen = 1024

// DirectFetcher streams documents over plain HTTP.
type DirectFetcher struct {
	Client transport.Client
	Logger *events.Logger
}

func NewDirectFetcher(client transport.Client, logger *events.Logger) *DirectFetcher {
	return &DirectFetcher{
		Client: client,
		Logger: logger.WithField("fetcher", "direct"),
	}
}

func (f *DirectFetcher) Fetch(ctx context.Context, src *sources.Source, entry *models.ManifestEntry) (*Payload, error) {
	var hdr http.Header
	if src.Referer != "" {
		hdr = http.Header{}
		hdr.Set("Referer", src.Referer)
	}

	dl, err := f.Client.Download(ctx, entry.ResourceURL, hdr)
	if err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, readErr := io.ReadFull(dl.Body, head)
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		_ = dl.Body.Close()
		return nil, fmt.Errorf("read %s: %w", entry.ResourceURL, readErr)
	}
	head = head[:n]

	if n == 0 {
		_ = dl.Body.Close()
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDownload, entry.ResourceURL)
	}

	if models.IsBlockPage(urlPath(entry.ResourceURL), dl.ContentType, head) {
		_ = dl.Body.Close()
		f.Logger.WithFields(map[string]interface{}{
			"url":          entry.ResourceURL,
			"content_type": dl.ContentType,
		}).Debug("response looks like a block page")
		return nil, fmt.Errorf("%w: %s served an HTML page where a document was expected", models.ErrBlocked, entry.ResourceURL)
	}

	return &Payload{
		Body: &sniffedBody{
			Reader: io.MultiReader(bytes.NewReader(head), dl.Body),
			source: dl.Body,
		},
		Size: dl.ContentLength,
	}, nil
}

// sniffedBody re-attaches buffered head bytes in front of the rest of
// the stream while closing the underlying connection body.
type sniffedBody struct {
	io.Reader
	source io.ReadCloser
}

func (b *sniffedBody) Close() error {
	return b.source.Close()
}
