// Package manifest discovers candidate documents for each source and
// classifies them into an ordered manifest. Discovery is read-only:
// nothing here touches local storage or sync state.
package manifest

import (
	"context"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// Discoverer lists candidate documents for one source. Implementations
// are generic over source configuration; site-specific selector logic
// does not belong here.
type Discoverer interface {
	Discover(ctx context.Context, src *sources.Source) ([]models.ManifestEntry, error)
}

// Renderer supplies fully rendered page markup for listings that block
// plain HTTP clients. Satisfied by transport.CDPClient. Nil means no
// browser endpoint is configured.
type Renderer interface {
	RenderHTML(ctx context.Context, url string) (string, error)
}
