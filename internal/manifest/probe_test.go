package manifest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
	"github.com/ColonelPanicX/comply-with-me/internal/transport"
)

const probeBase = "https://example.mil/zips/"

func probeSource(months int) *sources.Source {
	return &sources.Source{
		ID:    "stig-library",
		Label: "STIG Compilation Library",
		Kind:  sources.KindProbe,
		Probe: &sources.ProbeSpec{
			BaseURL:      probeBase,
			NameTemplate: "Library_{month}_{year}.zip",
			Months:       months,
		},
	}
}

func august2026() time.Time {
	return time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)
}

func TestProbeHitAfterMisses(t *testing.T) {
	client := transport.NewMockClient()
	client.AddHead(probeBase+"Library_July_2026.zip", 200)

	d := &ProbeDiscoverer{Client: client, Months: 24, Logger: testLogger(), Now: august2026}
	entries, err := d.Discover(context.Background(), probeSource(0))

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, probeBase+"Library_July_2026.zip", entries[0].ResourceURL)
	assert.Equal(t, "Library_July_2026.zip", entries[0].DisplayName)
	assert.Equal(t, models.ClassDownloadable, entries[0].Classification)

	// Newest month first, stop at the hit
	assert.Equal(t, []string{
		probeBase + "Library_August_2026.zip",
		probeBase + "Library_July_2026.zip",
	}, client.HeadRequests)
}

func TestProbeAllMissesUnresolved(t *testing.T) {
	client := transport.NewMockClient()

	d := &ProbeDiscoverer{Client: client, Months: 24, Logger: testLogger(), Now: august2026}
	entries, err := d.Discover(context.Background(), probeSource(3))

	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, models.ClassUnresolved, e.Classification)
	assert.Empty(t, e.ResourceURL)
	assert.Equal(t, "Library_{month}_{year}.zip", e.DisplayName)
	assert.Contains(t, e.Note, "probed 3 months")
	assert.Contains(t, e.Note, "August 2026")
	assert.Contains(t, e.Note, "June 2026")

	assert.Len(t, client.HeadRequests, 3)
}

func TestProbeSourceWindowOverridesDefault(t *testing.T) {
	client := transport.NewMockClient()

	d := &ProbeDiscoverer{Client: client, Months: 24, Logger: testLogger(), Now: august2026}
	_, err := d.Discover(context.Background(), probeSource(2))

	require.NoError(t, err)
	assert.Len(t, client.HeadRequests, 2)
}

func TestProbeMissStatusWithoutError(t *testing.T) {
	client := transport.NewMockClient()
	client.AddHead(probeBase+"Library_August_2026.zip", 404)
	client.AddHead(probeBase+"Library_July_2026.zip", 200)

	d := &ProbeDiscoverer{Client: client, Logger: testLogger(), Now: august2026}
	entries, err := d.Discover(context.Background(), probeSource(2))

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, probeBase+"Library_July_2026.zip", entries[0].ResourceURL)
}

func TestProbeRequestErrorCountsAsMiss(t *testing.T) {
	client := transport.NewMockClient()
	client.AddHeadError(probeBase+"Library_August_2026.zip", errors.New("connection reset"))
	client.AddHead(probeBase+"Library_July_2026.zip", 200)

	d := &ProbeDiscoverer{Client: client, Logger: testLogger(), Now: august2026}
	entries, err := d.Discover(context.Background(), probeSource(2))

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, probeBase+"Library_July_2026.zip", entries[0].ResourceURL)
}

func TestProbeCancelledContextAborts(t *testing.T) {
	client := transport.NewMockClient()
	client.AddHeadError(probeBase+"Library_August_2026.zip", context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &ProbeDiscoverer{Client: client, Logger: testLogger(), Now: august2026}
	_, err := d.Discover(ctx, probeSource(6))

	require.Error(t, err)
	assert.Len(t, client.HeadRequests, 1)
}

func TestProbeMonthWalkFromLateMonthDays(t *testing.T) {
	// Anchoring on day 1 keeps the walk from skipping short months:
	// stepping back from March 31 must probe February, not normalize
	// into early March.
	client := transport.NewMockClient()

	d := &ProbeDiscoverer{
		Client: client,
		Logger: testLogger(),
		Now: func() time.Time {
			return time.Date(2026, time.March, 31, 8, 0, 0, 0, time.UTC)
		},
	}
	_, err := d.Discover(context.Background(), probeSource(3))

	require.NoError(t, err)
	assert.Equal(t, []string{
		probeBase + "Library_March_2026.zip",
		probeBase + "Library_February_2026.zip",
		probeBase + "Library_January_2026.zip",
	}, client.HeadRequests)
}

func TestProbeDefaultsToSingleMonth(t *testing.T) {
	client := transport.NewMockClient()

	// Neither the source nor the discoverer sets a window
	d := &ProbeDiscoverer{Client: client, Logger: testLogger(), Now: august2026}
	entries, err := d.Discover(context.Background(), probeSource(0))

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ClassUnresolved, entries[0].Classification)
	assert.Len(t, client.HeadRequests, 1)
}
