package manifest_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/manifest"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

func newTestBuilder(t *testing.T, client transport.Client) *manifest.Builder {
	t.Helper()
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
	return manifest.NewBuilder(client, nil, config.DefaultConfig(), logger)
}

func curatedSource() *sources.Source {
	return &sources.Source{
		ID:    "memos",
		Label: "Policy Memoranda",
		Kind:  sources.KindCurated,
		Fallback: &sources.FallbackSpec{
			VerifiedAt: "2026-02-26",
			Docs: []sources.CuratedDoc{
				{Name: "M-22-09", URL: "https://example.gov/memos/M-22-09.pdf"},
				{Name: "M-25-04", URL: "https://example.gov/memos/M-25-04.pdf"},
			},
		},
	}
}

func listingSource() *sources.Source {
	return &sources.Source{
		ID:         "library",
		Label:      "Document Library",
		Kind:       sources.KindPage,
		Pages:      []string{"https://example.gov/library/"},
		Extensions: []string{"pdf"},
	}
}

func TestBuildCuratedSource(t *testing.T) {
	builder := newTestBuilder(t, transport.NewMockClient())

	m, err := builder.Build(context.Background(), curatedSource(), 0)

	require.NoError(t, err)
	assert.Equal(t, "memos", m.SourceID)
	assert.False(t, m.FallbackUsed)
	assert.Empty(t, m.Notices)
	assert.False(t, m.BuiltAt.IsZero())

	require.Len(t, m.Entries, 2)
	for _, e := range m.Entries {
		assert.Equal(t, "memos", e.SourceID)
		assert.False(t, e.DiscoveredAt.IsZero())
		assert.Equal(t, models.ClassDownloadable, e.Classification)
	}
	assert.Equal(t, "M-22-09", m.Entries[0].DisplayName)
	assert.Equal(t, "M-25-04", m.Entries[1].DisplayName)
}

func TestBuildFallsBackWhenListingFails(t *testing.T) {
	src := listingSource()
	src.Fallback = &sources.FallbackSpec{
		VerifiedAt: "2026-03-01",
		Docs: []sources.CuratedDoc{
			{Name: "Security Rule", URL: "https://example.gov/files/securityrule.pdf"},
		},
	}

	// Listing URL never configured, so every fetch of it fails
	builder := newTestBuilder(t, transport.NewMockClient())

	m, err := builder.Build(context.Background(), src, 0)

	require.NoError(t, err)
	assert.True(t, m.FallbackUsed)
	require.Len(t, m.Notices, 1)
	assert.Contains(t, m.Notices[0], "2026-03-01")
	assert.Contains(t, m.Notices[0], "library")

	require.Len(t, m.Entries, 1)
	assert.Equal(t, "Security Rule", m.Entries[0].DisplayName)
}

func TestBuildFallsBackWhenListingEmpty(t *testing.T) {
	src := listingSource()
	src.Fallback = &sources.FallbackSpec{
		VerifiedAt: "2026-03-01",
		Docs: []sources.CuratedDoc{
			{Name: "Security Rule", URL: "https://example.gov/files/securityrule.pdf"},
		},
	}

	client := transport.NewMockClient()
	client.AddPage("https://example.gov/library/", "<html><body>under construction</body></html>")

	builder := newTestBuilder(t, client)
	m, err := builder.Build(context.Background(), src, 0)

	require.NoError(t, err)
	assert.True(t, m.FallbackUsed)
	require.Len(t, m.Entries, 1)
}

func TestBuildListingFailureWithoutFallback(t *testing.T) {
	builder := newTestBuilder(t, transport.NewMockClient())

	_, err := builder.Build(context.Background(), listingSource(), 0)

	require.Error(t, err)
	var srcErr *models.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, models.ErrCodeDiscovery, srcErr.Code)
	assert.Equal(t, "library", srcErr.SourceID)
}

func TestBuildNeverFallsBackOnCancel(t *testing.T) {
	src := listingSource()
	src.Fallback = &sources.FallbackSpec{
		VerifiedAt: "2026-03-01",
		Docs: []sources.CuratedDoc{
			{Name: "Security Rule", URL: "https://example.gov/files/securityrule.pdf"},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := newTestBuilder(t, transport.NewMockClient())
	_, err := builder.Build(ctx, src, 0)

	require.Error(t, err)
	var srcErr *models.SourceError
	require.ErrorAs(t, err, &srcErr)
}

func TestBuildManualDocsRideAlong(t *testing.T) {
	src := listingSource()
	src.Manual = []sources.ManualDoc{
		{
			Name:     "Reference Architecture",
			URL:      "https://example.gov/restricted/ra.pdf",
			Guidance: "download in a browser and place under content/library/",
		},
	}

	client := transport.NewMockClient()
	client.AddPage("https://example.gov/library/",
		`<a href="/files/strategy.pdf">Strategy</a>`)

	builder := newTestBuilder(t, client)
	m, err := builder.Build(context.Background(), src, 0)

	require.NoError(t, err)
	require.Len(t, m.Entries, 2)

	assert.Equal(t, "Strategy", m.Entries[0].DisplayName)

	manual := m.Entries[1]
	assert.Equal(t, "Reference Architecture", manual.DisplayName)
	assert.Equal(t, models.ClassDownloadable, manual.Classification)
	assert.Contains(t, manual.Note, "manual download required")
	assert.Contains(t, manual.Note, "download in a browser")
	assert.Equal(t, "library", manual.SourceID)
}

func TestBuildManualDocAlreadyDiscovered(t *testing.T) {
	src := listingSource()
	src.Manual = []sources.ManualDoc{
		{Name: "Strategy (manual)", URL: "https://example.gov/files/strategy.pdf"},
	}

	client := transport.NewMockClient()
	client.AddPage("https://example.gov/library/",
		`<a href="/files/strategy.pdf">Strategy</a>`)

	builder := newTestBuilder(t, client)
	m, err := builder.Build(context.Background(), src, 0)

	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "Strategy", m.Entries[0].DisplayName)
}

func TestBuildManualOnCuratedSource(t *testing.T) {
	src := curatedSource()
	src.Manual = []sources.ManualDoc{
		{Name: "Classified Annex", URL: "https://example.gov/restricted/annex.pdf"},
	}

	builder := newTestBuilder(t, transport.NewMockClient())
	m, err := builder.Build(context.Background(), src, 0)

	require.NoError(t, err)
	require.Len(t, m.Entries, 3)
	assert.Equal(t, "Classified Annex", m.Entries[2].DisplayName)
}

func TestBuildMaxPagesOverride(t *testing.T) {
	src := &sources.Source{
		ID:           "pubs",
		Label:        "Publication Index",
		Kind:         sources.KindPaged,
		PageTemplate: "https://example.gov/pubs?page={page}",
		Extensions:   []string{"pdf"},
	}

	client := transport.NewMockClient()
	client.AddPage("https://example.gov/pubs?page=0", `<a href="/files/a.pdf">A</a>`)
	client.AddPage("https://example.gov/pubs?page=1", `<a href="/files/b.pdf">B</a>`)
	client.AddPage("https://example.gov/pubs?page=2", `<a href="/files/c.pdf">C</a>`)

	builder := newTestBuilder(t, client)

	// Default configuration stops after the first page
	m, err := builder.Build(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 1)

	// A per-run override widens the sweep without sticking
	m, err = builder.Build(context.Background(), src, 3)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 3)

	m, err = builder.Build(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Len(t, m.Entries, 1)
}

func TestBuildProbeMissesYieldUnresolvedManifest(t *testing.T) {
	src := &sources.Source{
		ID:    "stig-library",
		Label: "STIG Compilation Library",
		Kind:  sources.KindProbe,
		Probe: &sources.ProbeSpec{
			BaseURL:      "https://example.mil/zips/",
			NameTemplate: "Library_{month}_{year}.zip",
			Months:       2,
		},
	}

	builder := newTestBuilder(t, transport.NewMockClient())
	m, err := builder.Build(context.Background(), src, 0)

	require.NoError(t, err)
	require.Len(t, m.Entries, 1)

	downloadable, skipped, unresolved := m.Counts()
	assert.Equal(t, 0, downloadable)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 1, unresolved)
	assert.False(t, m.FallbackUsed)
	assert.NoError(t, m.Validate())
}

func TestBuildUnknownKind(t *testing.T) {
	src := &sources.Source{ID: "feed", Label: "Feed", Kind: "rss"}

	builder := newTestBuilder(t, transport.NewMockClient())
	_, err := builder.Build(context.Background(), src, 0)

	require.Error(t, err)
	var srcErr *models.SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, models.ErrCodeConfig, srcErr.Code)
}
