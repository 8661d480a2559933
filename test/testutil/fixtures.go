package testutil

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/ColonelPanicX/comply-with-me/internal/config"
	"github.com/ColonelPanicX/comply-with-me/internal/events"
	"github.com/ColonelPanicX/comply-with-me/internal/models"
	"github.com/ColonelPanicX/comply-with-me/internal/sources"
)

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// TestConfigWithDir creates a test configuration rooted at dataDir.
func TestConfigWithDir(dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.SetDataDir(dataDir)
	cfg.HTTP.MaxRetries = 1
	cfg.HTTP.RetryDelay = 10 * time.Millisecond
	cfg.HTTP.RateDelay = 0
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	cfg.Log.Color = false
	return cfg
}

// PDFBytes builds a distinct minimal PDF-looking payload. The marker
// makes each document's hash unique.
func PDFBytes(marker string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	b.WriteString("% " + marker + "\n")
	b.WriteString("1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n")
	b.WriteString("trailer\n<</Root 1 0 R>>\n%%EOF\n")
	return b.Bytes()
}

// ZIPBytes builds a payload with a ZIP local-file header.
func ZIPBytes(marker string) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x50, 0x4B, 0x03, 0x04}) // PK\x03\x04
	b.WriteString(marker)
	return b.Bytes()
}

// SampleDocuments maps document names to payloads for seeding servers
// and stores.
var SampleDocuments = map[string][]byte{
	"security-baseline.pdf": PDFBytes("security baseline rev 5"),
	"control-catalog.pdf":   PDFBytes("control catalog"),
	"assessment-plan.pdf":   PDFBytes("assessment plan"),
	"poam-template.xlsx":    ZIPBytes("poam workbook"),
	"stig-library.zip":      ZIPBytes("quarterly stig library"),
}

// ListingPage renders an HTML listing that links the given hrefs.
func ListingPage(title string, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(title)
	b.WriteString("</title></head><body>\n<h1>")
	b.WriteString(title)
	b.WriteString("</h1>\n<ul>\n")
	for _, href := range hrefs {
		name := href
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`+"\n", href, name)
	}
	b.WriteString("</ul>\n</body></html>")
	return b.String()
}

// BlockPageHTML is a portal refusal served with a 200 status, the way
// some publishers answer non-browser clients.
const BlockPageHTML = `<html><head><title>Access Denied</title></head>
<body><h1>Access Denied</h1><p>You don't have permission to access this resource.</p></body></html>`

// PageSourceFixture defines a page-kind source against a test server.
func PageSourceFixture(id, baseURL string, listingPaths ...string) *sources.Source {
	pages := make([]string, len(listingPaths))
	for i, p := range listingPaths {
		pages[i] = baseURL + p
	}
	return &sources.Source{
		ID:         id,
		Label:      "Fixture " + id,
		Kind:       sources.KindPage,
		Pages:      pages,
		Extensions: []string{"pdf", "xlsx", "zip"},
	}
}

// CuratedSourceFixture defines a curated-kind source with a verified
// URL list.
func CuratedSourceFixture(id string, verifiedAt string, urls ...string) *sources.Source {
	docs := make([]sources.CuratedDoc, len(urls))
	for i, u := range urls {
		name := u
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		docs[i] = sources.CuratedDoc{Name: name, URL: u}
	}
	return &sources.Source{
		ID:         id,
		Label:      "Fixture " + id,
		Kind:       sources.KindCurated,
		Extensions: []string{"pdf", "xlsx", "zip"},
		Fallback: &sources.FallbackSpec{
			VerifiedAt: verifiedAt,
			Docs:       docs,
		},
	}
}

// SampleSourceState provides a populated state for store tests.
func SampleSourceState() *models.SourceState {
	st := models.NewSourceState("fixture-source")
	st.Record("security-baseline.pdf",
		"a665a45920422f9d417e4867efdc4fb8a04a1f3fff1fa07e998e86f7f7a27ae3",
		2048, "https://agency.example.gov/docs/security-baseline.pdf")
	st.Record("control-catalog.pdf",
		"b444ac06613fc8d63795be9ad0beaf55011936ac076d87f5e685b2e1c6f6a7f0",
		4096, "https://agency.example.gov/docs/control-catalog.pdf")
	st.LastRunID = "run-fixture-0001"
	st.LastSyncTime = time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	return st
}
