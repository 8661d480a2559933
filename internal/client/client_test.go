package client

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

func testLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.SetDataDir(t.TempDir())
	return cfg
}

func newTestClient(t *testing.T, cfg *config.Config) *Client {
	t.Helper()

	c, err := New(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Sources.Add(&sources.Source{
		ID:         "agency-docs",
		Label:      "Agency Document Library",
		Kind:       sources.KindPage,
		Pages:      []string{"https://agency.example.gov/library/"},
		Extensions: []string{"pdf"},
	}))
	return c
}

func seedFile(t *testing.T, c *Client, rel string, data []byte) {
	t.Helper()

	full := filepath.Join(c.content.BaseDir(), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func TestNewClientWiring(t *testing.T) {
	cfg := testConfig(t)
	c := newTestClient(t, cfg)

	assert.NotNil(t, c.Sync)
	assert.NotNil(t, c.State)
	assert.False(t, c.BrowserConnected())

	// Built-in catalog is registered before any overlay.
	_, err := c.Sources.Get("fedramp")
	assert.NoError(t, err)

	states, err := c.State.ListStates()
	require.NoError(t, err)
	assert.Empty(t, states)
}

func TestNewClientRejectsUnknownStateBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.StateBackend = "etcd"

	_, err := New(cfg, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestNewClientSQLiteBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.StateBackend = "sqlite"

	c := newTestClient(t, cfg)
	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 baseline"))

	st, err := c.Adopt(context.Background(), "agency-docs")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Adopted)

	loaded, err := c.State.LoadState("agency-docs")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.RecordCount())
}

func TestNewClientLoadsSourcesOverlay(t *testing.T) {
	overlay := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(overlay, []byte(`sources:
  - id: county-records
    label: County Records Office
    kind: page
    pages:
      - https://records.example.gov/filings/
    extensions:
      - pdf
`), 0o644))

	cfg := testConfig(t)
	cfg.Storage.SourcesFile = overlay

	c := newTestClient(t, cfg)

	src, err := c.Sources.Get("county-records")
	require.NoError(t, err)
	assert.Equal(t, "County Records Office", src.Label)
}

func TestStatusUnknownSource(t *testing.T) {
	c := newTestClient(t, testConfig(t))

	_, err := c.Status(context.Background(), "no-such-source")
	assert.ErrorIs(t, err, models.ErrSourceUnknown)
}

func TestStatusEmptyTree(t *testing.T) {
	c := newTestClient(t, testConfig(t))

	st, err := c.Status(context.Background(), "agency-docs")
	require.NoError(t, err)

	assert.Equal(t, 0, st.Files())
	assert.Empty(t, st.Missing)
	assert.Zero(t, st.DiskBytes)
}

func TestStatusCountsUntrackedAndIgnoresArtifacts(t *testing.T) {
	c := newTestClient(t, testConfig(t))

	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 baseline"))
	seedFile(t, c, "agency-docs/_known-urls.txt", []byte("https://agency.example.gov/docs/baseline.pdf\n"))
	seedFile(t, c, "agency-docs/controls.pdf.tmp.1234", []byte("partial"))

	st, err := c.Status(context.Background(), "agency-docs")
	require.NoError(t, err)

	assert.Equal(t, 1, st.Untracked)
	assert.Equal(t, 0, st.Fresh)
	assert.Equal(t, int64(len("%PDF-1.7 baseline")), st.DiskBytes)
}

func TestAdoptRecordsUntrackedFiles(t *testing.T) {
	c := newTestClient(t, testConfig(t))
	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 baseline"))

	st, err := c.Adopt(context.Background(), "agency-docs")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Adopted)
	assert.Equal(t, 0, st.Untracked)

	loaded, err := c.State.LoadState("agency-docs")
	require.NoError(t, err)
	rec, ok := loaded.Lookup("baseline.pdf")
	require.True(t, ok)
	assert.Len(t, rec.ContentHash, 64)
	assert.Equal(t, int64(len("%PDF-1.7 baseline")), rec.Size)

	// Once adopted the file reads back as fresh.
	again, err := c.Status(context.Background(), "agency-docs")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Fresh)
	assert.Equal(t, 0, again.Untracked)
}

func TestStatusDetectsModifiedAndMissing(t *testing.T) {
	c := newTestClient(t, testConfig(t))
	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 rev 1"))
	seedFile(t, c, "agency-docs/controls.pdf", []byte("%PDF-1.7 controls"))

	_, err := c.Adopt(context.Background(), "agency-docs")
	require.NoError(t, err)

	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 rev 2"))
	require.NoError(t, os.Remove(filepath.Join(c.content.BaseDir(), "agency-docs", "controls.pdf")))

	st, err := c.Status(context.Background(), "agency-docs")
	require.NoError(t, err)

	assert.Equal(t, 1, st.Modified)
	assert.Equal(t, 0, st.Fresh)
	assert.Equal(t, []string{"controls.pdf"}, st.Missing)
}

func TestStatusAllCoversRegisteredSources(t *testing.T) {
	c := newTestClient(t, testConfig(t))

	statuses, err := c.StatusAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, statuses)

	ids := make(map[string]bool, len(statuses))
	for _, st := range statuses {
		ids[st.SourceID] = true
	}
	assert.True(t, ids["agency-docs"])
	assert.True(t, ids["fedramp"])
}

func TestStateManagerListStates(t *testing.T) {
	c := newTestClient(t, testConfig(t))
	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 baseline"))

	_, err := c.Adopt(context.Background(), "agency-docs")
	require.NoError(t, err)

	states, err := c.State.ListStates()
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "agency-docs", states[0].SourceID)
	assert.Equal(t, 1, states[0].Documents)
}

func TestStateManagerReset(t *testing.T) {
	c := newTestClient(t, testConfig(t))
	seedFile(t, c, "agency-docs/baseline.pdf", []byte("%PDF-1.7 baseline"))

	_, err := c.Adopt(context.Background(), "agency-docs")
	require.NoError(t, err)

	require.NoError(t, c.State.Reset("agency-docs"))

	st, err := c.Status(context.Background(), "agency-docs")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Untracked)
	assert.Equal(t, 0, st.Fresh)
}
